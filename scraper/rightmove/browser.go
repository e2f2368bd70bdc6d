package rightmove

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"rental-sync/utils"
)

// BrowserTransport runs requests as fetch() calls inside a headless Chrome
// tab opened on the site origin, so they carry the site's own cookies and
// headers. Requests are serialised on the single tab.
type BrowserTransport struct {
	mu            sync.Mutex
	tabCtx        context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	timeout       time.Duration
	logger        *utils.Logger
}

type fetchResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// NewBrowserTransport starts Chrome and loads origin once.
func NewBrowserTransport(origin, chromeBin, userAgent string, timeout time.Duration, logger *utils.Logger) (*BrowserTransport, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[rightmove] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	warmCtx, cancelWarm := context.WithTimeout(tabCtx, 60*time.Second)
	defer cancelWarm()
	if err := chromedp.Run(warmCtx, chromedp.Navigate(origin)); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, eris.Wrapf(err, "open %s in browser", origin)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserTransport{
		tabCtx:        tabCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// Get evaluates fetch(rawURL) in the origin tab.
func (b *BrowserTransport) Get(ctx context.Context, rawURL string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(b.tabCtx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	script := fmt.Sprintf(`fetch(%q, {headers: {"Accept": "application/json"}, credentials: "include"})
		.then(async r => ({status: r.status, body: await r.text()}))`, rawURL)

	var res fetchResult
	err := chromedp.Run(runCtx, chromedp.Evaluate(script, &res,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return nil, eris.Wrapf(err, "browser fetch %s", rawURL)
	}

	b.logger.Debug("[rightmove] browser GET %s -> %d", rawURL, res.Status)
	if res.Status < http.StatusOK || res.Status >= http.StatusMultipleChoices {
		return nil, &StatusError{URL: rawURL, Code: res.Status}
	}
	return []byte(res.Body), nil
}

// Close shuts the browser down.
func (b *BrowserTransport) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
