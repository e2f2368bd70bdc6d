package rightmove

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"rental-sync/models"
	"rental-sync/utils"
)

// Resolver turns free-text queries into location identifiers using the
// typeahead endpoint.
type Resolver struct {
	transport Transport
	baseURL   string
	logger    *utils.Logger
}

type typeAheadResponse struct {
	Locations *[]typeAheadLocation `json:"typeAheadLocations"`
}

type typeAheadLocation struct {
	LocationIdentifier string `json:"locationIdentifier"`
	DisplayName        string `json:"displayName"`
}

// NewResolver creates a Resolver against baseURL, e.g.
// https://www.rightmove.co.uk/typeAhead/uknostreet.
func NewResolver(transport Transport, baseURL string, logger *utils.Logger) *Resolver {
	return &Resolver{
		transport: transport,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// TokenizeQuery converts a query to the typeahead path form: upper-cased,
// split into two-character groups joined by "/".
//
//	"london"  -> "LO/ND/ON"
//	"bath"    -> "BA/TH"
//	"leeds"   -> "LE/ED/S"
func TokenizeQuery(query string) string {
	runes := []rune(strings.ToUpper(query))
	groups := make([]string, 0, (len(runes)+1)/2)
	for i := 0; i < len(runes); i += 2 {
		end := i + 2
		if end > len(runes) {
			end = len(runes)
		}
		groups = append(groups, url.PathEscape(string(runes[i:end])))
	}
	return strings.Trim(strings.Join(groups, "/"), "/")
}

// Resolve returns location identifiers in the provider's order, most likely
// match first. No matches yields an empty slice and a nil error.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]string, error) {
	token := TokenizeQuery(strings.TrimSpace(query))
	if token == "" {
		return nil, &models.ResolutionError{Query: query, Err: eris.New("empty query")}
	}

	endpoint := r.baseURL + "/" + token + "/"
	body, err := r.transport.Get(ctx, endpoint)
	if err != nil {
		return nil, &models.ResolutionError{Query: query, Err: err}
	}

	var payload typeAheadResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &models.ResolutionError{Query: query, Err: eris.Wrap(err, "decode typeahead payload")}
	}
	if payload.Locations == nil {
		return nil, &models.ResolutionError{Query: query, Err: eris.New("typeahead payload has no typeAheadLocations field")}
	}

	ids := make([]string, 0, len(*payload.Locations))
	for i, loc := range *payload.Locations {
		if loc.LocationIdentifier == "" {
			return nil, &models.ResolutionError{Query: query, Err: eris.Errorf("typeahead entry %d has no locationIdentifier", i)}
		}
		ids = append(ids, loc.LocationIdentifier)
	}

	r.logger.Info("[rightmove] Resolved %q to %d location(s)", query, len(ids))
	if len(ids) > 0 {
		r.logger.Debug("[rightmove] Best match for %q: %s", query, ids[0])
	}
	return ids, nil
}
