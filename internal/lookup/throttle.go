package lookup

import (
	"context"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"golang.org/x/time/rate"
)

// NewLimiter returns the limiter shared by every throttled backend. A
// non-positive rate disables throttling.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		// the wait would outlive the context deadline
		return ErrTimeout
	}
	return nil
}

type ThrottledGeocoder struct {
	Next    GeocodingClient
	Limiter *rate.Limiter
}

func (t ThrottledGeocoder) ForwardGeocode(ctx context.Context, text string, bias model.BiasRegion) (model.Coordinate, error) {
	if err := wait(ctx, t.Limiter); err != nil {
		return model.Coordinate{}, err
	}
	return t.Next.ForwardGeocode(ctx, text, bias)
}

func (t ThrottledGeocoder) ReverseGeocode(ctx context.Context, coord model.Coordinate) (string, error) {
	if err := wait(ctx, t.Limiter); err != nil {
		return "", err
	}
	return t.Next.ReverseGeocode(ctx, coord)
}

type ThrottledSearch struct {
	Next    AddressSearchClient
	Limiter *rate.Limiter
}

func (t ThrottledSearch) Search(ctx context.Context, text string, bias model.BiasRegion) ([]model.AddressSuggestion, error) {
	if err := wait(ctx, t.Limiter); err != nil {
		return nil, err
	}
	return t.Next.Search(ctx, text, bias)
}

func (t ThrottledSearch) Resolve(ctx context.Context, handle string) (model.Coordinate, error) {
	if err := wait(ctx, t.Limiter); err != nil {
		return model.Coordinate{}, err
	}
	return t.Next.Resolve(ctx, handle)
}

type ThrottledRouter struct {
	Next    RoutingClient
	Limiter *rate.Limiter
}

func (t ThrottledRouter) CalculateRoute(ctx context.Context, from, to model.Coordinate, mode string) (model.Route, error) {
	if err := wait(ctx, t.Limiter); err != nil {
		return model.Route{}, err
	}
	return t.Next.CalculateRoute(ctx, from, to, mode)
}
