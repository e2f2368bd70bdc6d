// Package traveltime looks up public-transport commute times from a fixed
// origin to each listing using the TravelTime time-filter API.
package traveltime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"

	"rental-sync/models"
	"rental-sync/utils"
)

const (
	originID        = "Origin"
	maxTravelTime   = 10800
	arrivalPeriod   = "weekday_morning"
	defaultMode     = "public_transport"
	defaultBatch    = 2000
	defaultEndpoint = "https://api.traveltimeapp.com/v4/time-filter"
)

// Config holds API credentials and the commute origin.
type Config struct {
	URL       string
	AppID     string
	APIKey    string
	OriginLat float64
	OriginLng float64
	BatchSize int
	Timeout   time.Duration
}

// Coords is a WGS84 point.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a named point in a request payload.
type Location struct {
	ID     string `json:"id"`
	Coords Coords `json:"coords"`
}

type transportation struct {
	Type string `json:"type"`
}

type oneToMany struct {
	ID                  string         `json:"id"`
	DepartureLocationID string         `json:"departure_location_id"`
	ArrivalLocationIDs  []string       `json:"arrival_location_ids"`
	Transportation      transportation `json:"transportation"`
	TravelTime          int            `json:"travel_time"`
	ArrivalTimePeriod   string         `json:"arrival_time_period"`
	Properties          []string       `json:"properties"`
}

// Payload is a time-filter request body.
type Payload struct {
	ArrivalSearches struct {
		OneToMany []oneToMany `json:"one_to_many"`
	} `json:"arrival_searches"`
	Locations []Location `json:"locations"`
}

type response struct {
	Results []struct {
		SearchID  string `json:"search_id"`
		Locations []struct {
			ID         string `json:"id"`
			Properties []struct {
				TravelTime *float64 `json:"travel_time"`
				Distance   *float64 `json:"distance"`
			} `json:"properties"`
		} `json:"locations"`
		Unreachable []string `json:"unreachable"`
	} `json:"results"`
}

// Result is the commute from the origin to one destination. Distance is nil
// when the API did not report one.
type Result struct {
	TravelTime float64
	Distance   *float64
}

// BuildPayload creates a one-to-many arrival search from origin to every
// destination.
func BuildPayload(searchID string, origin Coords, destinations []Location) Payload {
	ids := make([]string, len(destinations))
	for i, d := range destinations {
		ids[i] = d.ID
	}

	var p Payload
	p.ArrivalSearches.OneToMany = []oneToMany{{
		ID:                  searchID,
		DepartureLocationID: originID,
		ArrivalLocationIDs:  ids,
		Transportation:      transportation{Type: defaultMode},
		TravelTime:          maxTravelTime,
		ArrivalTimePeriod:   arrivalPeriod,
		Properties:          []string{"travel_time", "distance"},
	}}
	p.Locations = append([]Location{{ID: originID, Coords: origin}}, destinations...)
	return p
}

// Client posts time-filter searches.
type Client struct {
	cfg       Config
	collector *colly.Collector
	logger    *utils.Logger
}

func NewClient(cfg Config, logger *utils.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = defaultEndpoint
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatch
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	return &Client{cfg: cfg, collector: c, logger: logger}
}

// Lookup returns the commute for every reachable destination, keyed by id.
// Destinations are sent in batches of at most BatchSize.
func (c *Client) Lookup(ctx context.Context, destinations []Location) (map[string]Result, error) {
	results := make(map[string]Result, len(destinations))
	origin := Coords{Lat: c.cfg.OriginLat, Lng: c.cfg.OriginLng}

	for start, batch := 0, 1; start < len(destinations); start, batch = start+c.cfg.BatchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + c.cfg.BatchSize
		if end > len(destinations) {
			end = len(destinations)
		}

		payload := BuildPayload(strconv.Itoa(batch), origin, destinations[start:end])
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrap(err, "encode time-filter payload")
		}

		raw, err := c.post(body)
		if err != nil {
			return nil, eris.Wrapf(err, "time-filter batch %d", batch)
		}

		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, eris.Wrapf(err, "decode time-filter batch %d", batch)
		}
		unreachable := 0
		for _, r := range resp.Results {
			unreachable += len(r.Unreachable)
			for _, loc := range r.Locations {
				if len(loc.Properties) == 0 || loc.Properties[0].TravelTime == nil {
					continue
				}
				results[loc.ID] = Result{
					TravelTime: *loc.Properties[0].TravelTime,
					Distance:   loc.Properties[0].Distance,
				}
			}
		}
		c.logger.Info("[traveltime] Batch %d: %d destinations, %d unreachable", batch, end-start, unreachable)
	}
	return results, nil
}

// Enrich looks up travel_time and distance for listings that have
// coordinates but no travel_time yet. It returns copies of the listings
// that received a value.
func (c *Client) Enrich(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	var pending []*models.Listing
	var destinations []Location
	for _, l := range listings {
		if l.TravelTime != nil || l.Latitude == nil || l.Longitude == nil {
			continue
		}
		pending = append(pending, l)
		destinations = append(destinations, Location{
			ID:     l.ID,
			Coords: Coords{Lat: *l.Latitude, Lng: *l.Longitude},
		})
	}
	if len(pending) == 0 {
		c.logger.Info("[traveltime] No listings need travel times")
		return nil, nil
	}

	results, err := c.Lookup(ctx, destinations)
	if err != nil {
		return nil, err
	}

	var out []*models.Listing
	for _, l := range pending {
		res, ok := results[l.ID]
		if !ok {
			continue
		}
		u := l.Clone()
		u.TravelTime = models.Float(res.TravelTime)
		if res.Distance != nil {
			u.Distance = models.Float(*res.Distance)
		}
		out = append(out, u)
	}
	c.logger.Info("[traveltime] Travel times found for %d of %d listings", len(out), len(pending))
	return out, nil
}

func (c *Client) post(body []byte) ([]byte, error) {
	col := c.collector.Clone()

	var (
		resp   []byte
		status int
		reqErr error
	)
	col.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Content-Type", "application/json")
		r.Headers.Set("Accept", "application/json")
		r.Headers.Set("X-Application-Id", c.cfg.AppID)
		r.Headers.Set("X-Api-Key", c.cfg.APIKey)
	})
	col.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		resp = r.Body
	})
	col.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		reqErr = err
	})

	visitErr := col.PostRaw(c.cfg.URL, body)
	col.Wait()

	if status != 0 && (status < http.StatusOK || status >= http.StatusMultipleChoices) {
		return nil, eris.Errorf("POST %s: http status %d", c.cfg.URL, status)
	}
	if reqErr != nil {
		return nil, eris.Wrapf(reqErr, "POST %s", c.cfg.URL)
	}
	if visitErr != nil {
		return nil, eris.Wrapf(visitErr, "POST %s", c.cfg.URL)
	}
	return resp, nil
}
