package location

import (
	"context"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/bwise1/ride_pinpoint/util"
	"github.com/google/uuid"
)

// DebouncedSearchQuery turns keystrokes into at most one search per quiet
// period. The controller owns the timer and cancellation; this type owns the
// query rules and the call to the backend.
type DebouncedSearchQuery struct {
	client     lookup.AddressSearchClient
	delay      time.Duration
	minLength  int
	maxResults int
}

func NewDebouncedSearchQuery(client lookup.AddressSearchClient, s Settings) *DebouncedSearchQuery {
	return &DebouncedSearchQuery{
		client:     client,
		delay:      s.SearchDebounce,
		minLength:  s.MinQueryLength,
		maxResults: s.MaxSuggestions,
	}
}

// Prepare sanitizes raw and reports whether it is long enough to search for.
func (q *DebouncedSearchQuery) Prepare(raw string) (string, bool) {
	clean := util.SanitizeQuery(raw)
	return clean, util.QueryLength(clean) >= q.minLength
}

func (q *DebouncedSearchQuery) Delay() time.Duration {
	return q.delay
}

// Lookup keeps backend order and caps the list.
func (q *DebouncedSearchQuery) Lookup(ctx context.Context, query string, bias model.BiasRegion) ([]model.AddressSuggestion, error) {
	results, err := q.client.Search(ctx, query, bias)
	if err != nil {
		return nil, lookup.Classify(err)
	}
	if q.maxResults > 0 && len(results) > q.maxResults {
		results = results[:q.maxResults]
	}
	out := make([]model.AddressSuggestion, len(results))
	for i, s := range results {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		out[i] = s
	}
	return out, nil
}

func (q *DebouncedSearchQuery) Resolve(ctx context.Context, handle string) (model.Coordinate, error) {
	coord, err := q.client.Resolve(ctx, handle)
	if err != nil {
		return model.Coordinate{}, lookup.Classify(err)
	}
	return coord, nil
}
