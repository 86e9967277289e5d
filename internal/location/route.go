package location

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/bwise1/ride_pinpoint/util"
	"go.uber.org/zap"
)

const routeCacheSize = 32

type routeKey struct {
	from, to model.Coordinate
	mode     string
}

// RouteEstimator prices the trip between two endpoints. Raw routes are kept
// per endpoint pair so a tier change reprices without asking for geometry
// again. Safe for concurrent use.
type RouteEstimator struct {
	client   lookup.RoutingClient
	mode     string
	tariff   Tariff
	debounce time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[routeKey]model.Route
	order []routeKey
}

func NewRouteEstimator(client lookup.RoutingClient, s Settings, logger *zap.Logger) *RouteEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteEstimator{
		client:   client,
		mode:     s.RouteMode,
		tariff:   s.Tariff,
		debounce: s.RouteDebounce,
		logger:   logger,
		cache:    make(map[routeKey]model.Route),
	}
}

func (e *RouteEstimator) Delay() time.Duration {
	return e.debounce
}

// Price is a pure function of route and tier.
func (e *RouteEstimator) Price(route model.Route, tier model.ServiceTier) (model.RouteEstimate, error) {
	fare, err := e.tariff.Fare(route.DistanceMeters, tier)
	if err != nil {
		return model.RouteEstimate{}, err
	}
	precision := route.Precision
	if precision == 0 {
		precision = 6
	}
	path, err := util.DecodePolyline(route.Polyline, precision)
	if err != nil {
		// the number is still good without a line on the map
		e.logger.Debug("route polyline not decodable", zap.Error(err))
		path = nil
	}
	return model.RouteEstimate{
		DistanceMeters:    route.DistanceMeters,
		DistanceFormatted: FormatDistance(route.DistanceMeters),
		Fare:              fare,
		FareFormatted:     e.tariff.FormatFare(fare),
		Tier:              tier,
		Path:              path,
	}, nil
}

// Route returns the raw route, from cache when the same endpoints were asked
// for before.
func (e *RouteEstimator) Route(ctx context.Context, from, to model.Coordinate) (model.Route, error) {
	key := routeKey{from: from, to: to, mode: e.mode}

	e.mu.Lock()
	cached, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	route, err := e.client.CalculateRoute(ctx, from, to, e.mode)
	if err != nil {
		return model.Route{}, lookup.Classify(err)
	}
	if route.DistanceMeters < 0 {
		return model.Route{}, lookup.ErrNoRoute
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.cache[key]; !exists {
		e.cache[key] = route
		e.order = append(e.order, key)
		if len(e.order) > routeCacheSize {
			delete(e.cache, e.order[0])
			e.order = e.order[1:]
		}
	}
	return route, nil
}
