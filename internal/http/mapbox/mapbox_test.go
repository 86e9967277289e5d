package mapbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	from = model.Coordinate{Latitude: 45.42, Longitude: -75.70}
	to   = model.Coordinate{Latitude: 45.40, Longitude: -75.69}
)

func newTestClient(t *testing.T, h http.HandlerFunc) *MapboxClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewMapboxClient("pk.test", zap.NewNop())
	c.BaseURL = srv.URL
	c.Client = srv.Client()
	return c
}

func TestCalculateRoute(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/directions/v5/mapbox/driving/-75.700000,45.420000;-75.690000,45.400000", r.URL.Path)
		assert.Equal(t, "polyline6", r.URL.Query().Get("geometries"))
		assert.Equal(t, "pk.test", r.URL.Query().Get("access_token"))
		w.Write([]byte(`{"code":"Ok","routes":[{"geometry":"abc","distance":2350.5,"duration":420}]}`))
	})

	route, err := c.CalculateRoute(context.Background(), from, to, "driving")
	require.NoError(t, err)
	assert.Equal(t, 2350.5, route.DistanceMeters)
	assert.Equal(t, 420.0, route.DurationSeconds)
	assert.Equal(t, "abc", route.Polyline)
	assert.Equal(t, 6, route.Precision)
}

func TestCalculateRouteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"no route", http.StatusOK, `{"code":"NoRoute","routes":[]}`, lookup.ErrNoRoute},
		{"no segment", http.StatusUnprocessableEntity, `{"code":"NoSegment","message":"no road nearby"}`, lookup.ErrNoRoute},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, lookup.ErrNoRoute},
		{"unauthorized", http.StatusUnauthorized, `{"message":"Not Authorized - Invalid Token"}`, lookup.ErrUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, `upstream timeout`, lookup.ErrTimeout},
		{"garbage", http.StatusOK, `not json`, lookup.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.CalculateRoute(context.Background(), from, to, "driving")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMissingKeyIsUnavailable(t *testing.T) {
	c := NewMapboxClient("", zap.NewNop())
	_, err := c.CalculateRoute(context.Background(), from, to, "driving")
	require.ErrorIs(t, err, lookup.ErrUnavailable)
}
