package location

import (
	"context"
	"strings"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
)

type trigger int

const (
	triggerGPS trigger = iota
	triggerMapDrag
)

// ReverseGeocodeCoordinator resolves only resting positions: GPS fixes go out
// at once, map drags after a settle period. Failures become a fallback label;
// there is no retry, the next coordinate change is the retry.
type ReverseGeocodeCoordinator struct {
	client        lookup.GeocodingClient
	settle        time.Duration
	notFoundLabel string
}

func NewReverseGeocodeCoordinator(client lookup.GeocodingClient, s Settings) *ReverseGeocodeCoordinator {
	return &ReverseGeocodeCoordinator{
		client:        client,
		settle:        s.MapDragSettle,
		notFoundLabel: s.NotFoundLabel,
	}
}

func (r *ReverseGeocodeCoordinator) Delay(t trigger) time.Duration {
	if t == triggerMapDrag {
		return r.settle
	}
	return 0
}

func (r *ReverseGeocodeCoordinator) FallbackLabel() string {
	return r.notFoundLabel
}

// Resolve treats a blank label as no match.
func (r *ReverseGeocodeCoordinator) Resolve(ctx context.Context, coord model.Coordinate) (string, error) {
	address, err := r.client.ReverseGeocode(ctx, coord)
	if err != nil {
		return "", lookup.Classify(err)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return "", lookup.ErrNotFound
	}
	return address, nil
}

// Forward locates free text; used for suggestions that arrive without a
// position or a resolve handle.
func (r *ReverseGeocodeCoordinator) Forward(ctx context.Context, text string, bias model.BiasRegion) (model.Coordinate, error) {
	coord, err := r.client.ForwardGeocode(ctx, text, bias)
	if err != nil {
		return model.Coordinate{}, lookup.Classify(err)
	}
	return coord, nil
}
