package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/model"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"context cancelled", context.Canceled, ErrCancelled},
		{"wrapped cancelled", fmt.Errorf("search: %w", context.Canceled), ErrCancelled},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"not found", pkgerrors.Wrap(ErrNotFound, "reverse"), ErrNotFound},
		{"no route", ErrNoRoute, ErrNoRoute},
		{"unknown", errors.New("boom"), ErrUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

type countingGeocoder struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (g *countingGeocoder) ForwardGeocode(context.Context, string, model.BiasRegion) (model.Coordinate, error) {
	return model.Coordinate{Latitude: 45.42, Longitude: -75.69}, nil
}

func (g *countingGeocoder) ReverseGeocode(ctx context.Context, coord model.Coordinate) (string, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return "", g.err
	}
	return "label " + coord.String(), nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapCache) GetAddress(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) SetAddress(_ context.Context, key, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = address
	return nil
}

func TestCachedGeocoder_HitsCacheOnSecondCall(t *testing.T) {
	next := &countingGeocoder{}
	cg := NewCachedGeocoder(next, &mapCache{data: map[string]string{}}, nil)
	ctx := context.Background()
	coord := model.Coordinate{Latitude: 45.4215, Longitude: -75.6972}

	first, err := cg.ReverseGeocode(ctx, coord)
	require.NoError(t, err)
	second, err := cg.ReverseGeocode(ctx, model.Coordinate{Latitude: 45.421501, Longitude: -75.697201})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestCachedGeocoder_CoalescesConcurrentLookups(t *testing.T) {
	next := &countingGeocoder{release: make(chan struct{})}
	cg := NewCachedGeocoder(next, &mapCache{data: map[string]string{}}, nil)
	coord := model.Coordinate{Latitude: 45.41, Longitude: -75.70}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cg.ReverseGeocode(context.Background(), coord)
		}(i)
	}

	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.EqualValues(t, 1, next.calls.Load())
	for _, r := range results {
		assert.Equal(t, "label "+coord.String(), r)
	}
}

func TestCachedGeocoder_FailureNotCached(t *testing.T) {
	next := &countingGeocoder{err: ErrNotFound}
	cache := &mapCache{data: map[string]string{}}
	cg := NewCachedGeocoder(next, cache, nil)

	_, err := cg.ReverseGeocode(context.Background(), model.Coordinate{Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, cache.data)
}

func TestCachedGeocoder_CallerCancelled(t *testing.T) {
	next := &countingGeocoder{release: make(chan struct{})}
	defer close(next.release)
	cg := NewCachedGeocoder(next, &mapCache{data: map[string]string{}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cg.ReverseGeocode(ctx, model.Coordinate{Latitude: 2, Longitude: 2})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestThrottledGeocoder_CancelledWhileWaiting(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	g := ThrottledGeocoder{Next: &countingGeocoder{}, Limiter: limiter}

	_, err := g.ReverseGeocode(context.Background(), model.Coordinate{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.ReverseGeocode(ctx, model.Coordinate{})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestThrottledGeocoder_DeadlineTooShort(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	g := ThrottledGeocoder{Next: &countingGeocoder{}, Limiter: limiter}
	_, _ = g.ReverseGeocode(context.Background(), model.Coordinate{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.ReverseGeocode(ctx, model.Coordinate{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestNewLimiter_Disabled(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow())
	}
}
