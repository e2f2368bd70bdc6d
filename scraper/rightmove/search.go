package rightmove

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"rental-sync/metrics"
	"rental-sync/models"
	"rental-sync/utils"
)

// SearchConfig holds the pagination and concurrency settings of a Searcher.
type SearchConfig struct {
	BaseURL        string
	PageSize       int
	MaxResults     int // provider ceiling on the retrievable offset
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RetryDelay     time.Duration // first back-off; doubles per attempt
}

// FetchState tracks a single Fetch call.
type FetchState int

const (
	StateNotStarted FetchState = iota
	StateFirstPageFetched
	StateFanOutPending
	StateFanOutComplete
	StateDone
	StateFailed
)

func (s FetchState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateFirstPageFetched:
		return "FirstPageFetched"
	case StateFanOutPending:
		return "FanOutPending"
	case StateFanOutComplete:
		return "FanOutComplete"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// Searcher retrieves rental search results for a location, one page per
// request.
type Searcher struct {
	transport Transport
	cfg       SearchConfig
	logger    *utils.Logger
	retry     *utils.RetryConfig
}

type searchResponse struct {
	Properties *[]models.RawListing `json:"properties"`
}

// NewSearcher creates a Searcher. Zero page size or ceiling fall back to the
// provider defaults of 24 and 1000.
func NewSearcher(transport Transport, cfg SearchConfig, logger *utils.Logger) *Searcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 24
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 1000
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "?")
	return &Searcher{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryDelay,
			Logger:      logger,
		},
	}
}

// PageURL builds the search URL for the page starting at offset.
func (s *Searcher) PageURL(locationID string, offset int) string {
	params := url.Values{}
	params.Set("areaSizeUnit", "sqm")
	params.Set("channel", "RENT")
	params.Set("currencyCode", "GBP")
	params.Set("includeSSTC", "false")
	params.Set("index", strconv.Itoa(offset))
	params.Set("isFetching", "false")
	params.Set("locationIdentifier", locationID)
	params.Set("numberOfPropertiesPerPage", strconv.Itoa(s.cfg.PageSize))
	params.Set("radius", "0.0")
	params.Set("sortType", "6")
	params.Set("viewType", "LIST")
	return s.cfg.BaseURL + "?" + params.Encode()
}

// Offsets returns the offsets fetched after page 0 for targetCount results.
// Offsets at or past the provider ceiling are never included.
func (s *Searcher) Offsets(targetCount int) []int {
	var offsets []int
	for offset := s.cfg.PageSize; offset < targetCount; offset += s.cfg.PageSize {
		if offset >= s.cfg.MaxResults {
			break
		}
		offsets = append(offsets, offset)
	}
	return offsets
}

// FetchPage retrieves and decodes a single page. Failures are returned as
// *models.PageFetchError.
func (s *Searcher) FetchPage(ctx context.Context, locationID string, offset int) ([]models.RawListing, error) {
	var page []models.RawListing
	err := s.retry.Do(ctx, fmt.Sprintf("search page %d", offset), func() error {
		start := time.Now()
		body, err := s.transport.Get(ctx, s.PageURL(locationID, offset))
		metrics.PageLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		page, err = decodeSearchPage(body)
		return err
	})
	if err != nil {
		metrics.PageErrors.Inc()
		return nil, &models.PageFetchError{LocationID: locationID, Offset: offset, Err: err}
	}

	metrics.PagesFetched.Inc()
	metrics.ListingsFetched.Add(float64(len(page)))
	return page, nil
}

// Fetch retrieves up to targetCount listings for locationID. Page 0 is
// fetched first; the remaining pages run concurrently and are appended in
// the order they complete. Any failed page fails the whole fetch and no
// partial results are returned.
func (s *Searcher) Fetch(ctx context.Context, locationID string, targetCount int) ([]models.RawListing, error) {
	state := StateNotStarted
	transition := func(next FetchState) {
		s.logger.Debug("[rightmove] fetch %s: %s -> %s", locationID, state, next)
		state = next
	}

	first, err := s.FetchPage(ctx, locationID, 0)
	if err != nil {
		transition(StateFailed)
		return nil, err
	}
	transition(StateFirstPageFetched)

	results := make([]models.RawListing, 0, len(first))
	results = append(results, first...)

	offsets := s.Offsets(targetCount)
	if len(offsets) == 0 {
		transition(StateDone)
		s.logger.Info("[rightmove] Found %d properties for %s", len(results), locationID)
		return results, nil
	}

	transition(StateFanOutPending)
	s.logger.Info("[rightmove] Scheduling %d more page(s) for %s", len(offsets), locationID)

	pool, _ := utils.NewWorkerPool(ctx, s.cfg.MaxConcurrency, s.cfg.RateLimitMs)
	pages := make(chan []models.RawListing, len(offsets))
	for _, offset := range offsets {
		pool.Submit(func(jobCtx context.Context) error {
			page, err := s.FetchPage(jobCtx, locationID, offset)
			if err != nil {
				return err
			}
			pages <- page
			return nil
		})
	}

	err = pool.Wait()
	close(pages)
	if err != nil {
		transition(StateFailed)
		var pfe *models.PageFetchError
		if errors.As(err, &pfe) {
			return nil, pfe
		}
		return nil, &models.PageFetchError{LocationID: locationID, Offset: -1, Err: err}
	}
	transition(StateFanOutComplete)

	for page := range pages {
		results = append(results, page...)
	}

	transition(StateDone)
	s.logger.Info("[rightmove] Found %d properties for %s", len(results), locationID)
	return results, nil
}

func decodeSearchPage(body []byte) ([]models.RawListing, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload searchResponse
	if err := dec.Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "decode search payload")
	}
	if payload.Properties == nil {
		return nil, eris.New("search payload has no properties field")
	}
	return *payload.Properties, nil
}
