package rightmove

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/rotisserie/eris"

	"rental-sync/utils"
)

// Transport performs a GET against a JSON endpoint and returns the body.
// A non-2xx status is returned as *StatusError.
type Transport interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http status %d", e.URL, e.Code)
}

// TransportConfig configures the HTTP transport.
type TransportConfig struct {
	Origin      string
	UserAgent   string
	Parallelism int
	Timeout     time.Duration
}

// CollyTransport issues requests through a shared colly collector so that
// every clone shares one parallelism limit and one HTTP client.
type CollyTransport struct {
	collector *colly.Collector
	tripper   *contextRoundTripper
	nextID    atomic.Uint64
	origin    string
	randomUA  bool
	logger    *utils.Logger
}

// requestIDHeader carries the Get call a request belongs to from the colly
// callback to the round tripper. It is stripped before the request is sent.
const requestIDHeader = "X-Rental-Sync-Request"

// contextRoundTripper cancels a request when the context of the Get call
// that issued it is done.
type contextRoundTripper struct {
	base     http.RoundTripper
	contexts sync.Map // request id -> context.Context
}

func (rt *contextRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	id := req.Header.Get(requestIDHeader)
	if id == "" {
		return rt.base.RoundTrip(req)
	}

	ctx := req.Context()
	if v, ok := rt.contexts.Load(id); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		context.AfterFunc(v.(context.Context), cancel)
	}
	out := req.Clone(ctx)
	out.Header.Del(requestIDHeader)
	return rt.base.RoundTrip(out)
}

// NewCollyTransport builds the parent collector. An empty UserAgent rotates
// a random browser user agent per request.
func NewCollyTransport(cfg TransportConfig, logger *utils.Logger) (*CollyTransport, error) {
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)

	contexts := &contextRoundTripper{base: http.DefaultTransport}
	c.WithTransport(contexts)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: parallelism}); err != nil {
		return nil, eris.Wrap(err, "set colly limit rule")
	}

	return &CollyTransport{
		collector: c,
		tripper:   contexts,
		origin:    cfg.Origin,
		randomUA:  cfg.UserAgent == "",
		logger:    logger,
	}, nil
}

// Get fetches rawURL on a one-off clone of the parent collector. Cancelling
// ctx aborts the request even while it is in flight.
func (t *CollyTransport) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	id := strconv.FormatUint(t.nextID.Add(1), 10)
	t.tripper.contexts.Store(id, reqCtx)
	defer t.tripper.contexts.Delete(id)

	c := t.collector.Clone()
	if t.randomUA {
		extensions.RandomUserAgent(c)
	}

	var (
		body   []byte
		status int
		reqErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		r.Headers.Set(requestIDHeader, id)
		if t.origin != "" {
			r.Headers.Set("Referer", t.origin+"/")
		}
		t.logger.Debug("[rightmove] GET %s", r.URL.String())
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		reqErr = err
	})

	visitErr := c.Visit(rawURL)
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if status != 0 && (status < http.StatusOK || status >= http.StatusMultipleChoices) {
		return nil, &StatusError{URL: rawURL, Code: status}
	}
	if reqErr != nil {
		return nil, eris.Wrapf(reqErr, "GET %s", rawURL)
	}
	if visitErr != nil {
		return nil, eris.Wrapf(visitErr, "GET %s", rawURL)
	}
	return body, nil
}
