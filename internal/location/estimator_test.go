package location

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFare(t *testing.T) {
	tariff := DefaultTariff()
	tests := []struct {
		meters float64
		tier   model.ServiceTier
		want   string
	}{
		{0, model.TierEconomy, "$3.50"},
		{850, model.TierEconomy, "$4.52"},
		{5000, model.TierStandard, "$11.50"},
		{5000, model.TierPremium, "$15.50"},
		{12345, model.TierStandard, "$23.25"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%.0f", tt.tier, tt.meters), func(t *testing.T) {
			fare, err := tariff.Fare(tt.meters, tt.tier)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tariff.FormatFare(fare))
		})
	}

	_, err := tariff.Fare(-1, model.TierEconomy)
	assert.Error(t, err)
	_, err = tariff.Fare(100, "luxury")
	assert.Error(t, err)
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "850 m", FormatDistance(850))
	assert.Equal(t, "0 m", FormatDistance(-3))
	assert.Equal(t, "1.0 km", FormatDistance(1000))
	assert.Equal(t, "12.3 km", FormatDistance(12345))
}

func TestRouteEstimatorCachesRoute(t *testing.T) {
	r := &fakeRouter{route: model.Route{DistanceMeters: 2000, Polyline: "_p~iF~ps|U_ulLnnqC", Precision: 5}}
	e := NewRouteEstimator(r, testSettings(), zap.NewNop())
	from, to := coord(45.42, -75.70), coord(45.40, -75.69)

	route, err := e.Route(context.Background(), from, to)
	require.NoError(t, err)
	again, err := e.Route(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, route, again)

	standard, err := e.Price(route, model.TierStandard)
	require.NoError(t, err)
	assert.Len(t, standard.Path, 2)
	premium, err := e.Price(again, model.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, "$8.30", premium.FareFormatted)
	assert.Equal(t, 1, r.callCount())

	_, err = e.Route(context.Background(), to, from)
	require.NoError(t, err)
	assert.Equal(t, 2, r.callCount())
}

func TestRouteEstimatorFailuresNotCached(t *testing.T) {
	r := &fakeRouter{err: fmt.Errorf("dial tcp: connection refused")}
	e := NewRouteEstimator(r, testSettings(), zap.NewNop())
	from, to := coord(45.42, -75.70), coord(45.40, -75.69)

	_, err := e.Route(context.Background(), from, to)
	require.ErrorIs(t, err, lookup.ErrUnavailable)
	_, err = e.Route(context.Background(), from, to)
	require.ErrorIs(t, err, lookup.ErrUnavailable)
	assert.Equal(t, 2, r.callCount())
}

func TestRouteEstimatorBadPolylineStillPrices(t *testing.T) {
	e := NewRouteEstimator(&fakeRouter{}, testSettings(), zap.NewNop())

	est, err := e.Price(model.Route{DistanceMeters: 1500, Polyline: "_p~iF~ps|U_", Precision: 5}, model.TierEconomy)
	require.NoError(t, err)
	assert.Equal(t, "1.5 km", est.DistanceFormatted)
	assert.Equal(t, "$5.30", est.FareFormatted)
	assert.Nil(t, est.Path)
}

func TestSearchQueryShaping(t *testing.T) {
	var results []model.AddressSuggestion
	for i := 0; i < 10; i++ {
		results = append(results, model.AddressSuggestion{DisplayText: fmt.Sprintf("Result %d", i)})
	}
	results[0].ID = "first"
	q := NewDebouncedSearchQuery(&fakeSearch{results: results}, testSettings())

	got, err := q.Lookup(context.Background(), "Result", model.BiasRegion{})
	require.NoError(t, err)
	require.Len(t, got, 7)
	assert.Equal(t, "first", got[0].ID)
	for i, s := range got {
		assert.Equal(t, fmt.Sprintf("Result %d", i), s.DisplayText)
		assert.NotEmpty(t, s.ID)
	}
}

func TestSearchQueryPrepare(t *testing.T) {
	q := NewDebouncedSearchQuery(&fakeSearch{}, testSettings())

	tests := []struct {
		in         string
		want       string
		searchable bool
	}{
		{"  Rideau St  ", "Rideau St", true},
		{"ab", "ab", false},
		{"a<>b", "ab", false},
		{"#12", "#12", true},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got, ok := q.Prepare(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.searchable, ok, tt.in)
	}
}

func TestReverseCoordinatorBlankIsNotFound(t *testing.T) {
	g := &fakeGeocoder{reverseF: func(context.Context, model.Coordinate) (string, error) {
		return "   ", nil
	}}
	r := NewReverseGeocodeCoordinator(g, testSettings())

	_, err := r.Resolve(context.Background(), coord(45.42, -75.70))
	require.ErrorIs(t, err, lookup.ErrNotFound)
	assert.Zero(t, r.Delay(triggerGPS))
	assert.Equal(t, testSettings().MapDragSettle, r.Delay(triggerMapDrag))
}
