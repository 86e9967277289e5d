package location

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
)

type fakeGeocoder struct {
	mu       sync.Mutex
	reverse  []model.Coordinate
	forward  []string
	reverseF func(ctx context.Context, c model.Coordinate) (string, error)
	forwardF func(ctx context.Context, text string) (model.Coordinate, error)
}

func (f *fakeGeocoder) ForwardGeocode(ctx context.Context, text string, _ model.BiasRegion) (model.Coordinate, error) {
	f.mu.Lock()
	f.forward = append(f.forward, text)
	fn := f.forwardF
	f.mu.Unlock()
	if fn == nil {
		return model.Coordinate{}, lookup.ErrNotFound
	}
	return fn(ctx, text)
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, c model.Coordinate) (string, error) {
	f.mu.Lock()
	f.reverse = append(f.reverse, c)
	fn := f.reverseF
	f.mu.Unlock()
	if fn == nil {
		return "Address " + c.String(), nil
	}
	return fn(ctx, c)
}

func (f *fakeGeocoder) reverseCalls() []model.Coordinate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Coordinate(nil), f.reverse...)
}

func (f *fakeGeocoder) forwardCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.forward...)
}

type fakeSearch struct {
	mu       sync.Mutex
	queries  []string
	handles  []string
	results  []model.AddressSuggestion
	err      error
	searchF  func(ctx context.Context, text string) ([]model.AddressSuggestion, error)
	resolveF func(ctx context.Context, handle string) (model.Coordinate, error)
}

func (f *fakeSearch) Search(ctx context.Context, text string, _ model.BiasRegion) ([]model.AddressSuggestion, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	fn, results, err := f.searchF, f.results, f.err
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	return append([]model.AddressSuggestion(nil), results...), nil
}

func (f *fakeSearch) Resolve(ctx context.Context, handle string) (model.Coordinate, error) {
	f.mu.Lock()
	f.handles = append(f.handles, handle)
	fn := f.resolveF
	f.mu.Unlock()
	if fn == nil {
		return model.Coordinate{}, lookup.ErrNotFound
	}
	return fn(ctx, handle)
}

func (f *fakeSearch) searchCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeRouter struct {
	mu     sync.Mutex
	calls  int
	route  model.Route
	err    error
	blockF func(ctx context.Context)
}

func (f *fakeRouter) CalculateRoute(ctx context.Context, _, _ model.Coordinate, _ string) (model.Route, error) {
	f.mu.Lock()
	f.calls++
	route, err, block := f.route, f.err, f.blockF
	f.mu.Unlock()
	if block != nil {
		block(ctx)
	}
	return route, err
}

func (f *fakeRouter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testSettings keeps the real shape of the defaults with timers short enough
// for unit tests.
func testSettings() Settings {
	s := DefaultSettings()
	s.SearchDebounce = 40 * time.Millisecond
	s.MapDragSettle = 60 * time.Millisecond
	s.RouteDebounce = 30 * time.Millisecond
	s.NoticeTTL = time.Minute
	s.LookupTimeout = time.Second
	return s
}
