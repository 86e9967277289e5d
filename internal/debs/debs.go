package deps

import (
	"context"
	"strings"

	"github.com/bwise1/ride_pinpoint/config"
	"github.com/bwise1/ride_pinpoint/internal/cache"
	"github.com/bwise1/ride_pinpoint/internal/db"
	googlemaps "github.com/bwise1/ride_pinpoint/internal/http/google"
	"github.com/bwise1/ride_pinpoint/internal/http/mapbox"
	stadiamaps "github.com/bwise1/ride_pinpoint/internal/http/stadia_maps"
	"github.com/bwise1/ride_pinpoint/internal/http/valhalla"
	"github.com/bwise1/ride_pinpoint/internal/location"
	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/bwise1/ride_pinpoint/internal/session"
	"github.com/bwise1/ride_pinpoint/util/websockets"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecentPlaceStore records picked suggestions and lists them back.
type RecentPlaceStore interface {
	session.SelectionRecorder
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]model.RecentPlaceResponse, error)
}

type Dependencies struct {
	DB           *db.DB
	Cache        *cache.AddressCache
	RecentPlaces RecentPlaceStore
	Hub          *websockets.ProjectionHub
	Sessions     *session.Manager
	Logger       *zap.Logger
}

// New builds the backends named by cfg. Postgres and redis are optional: an
// empty DSN disables recent places and an empty REDIS_URL disables the shared
// address cache.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	d := &Dependencies{Logger: logger}

	if cfg.Dsn != "" {
		database, err := db.New(cfg.Dsn, logger)
		if err != nil {
			return nil, err
		}
		repo := db.NewRecentPlaceRepo(database)
		if err := repo.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		d.DB = database
		d.RecentPlaces = repo
	} else {
		logger.Warn("DSN is empty, recent places disabled")
	}

	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL, cfg.AddressCacheTTL)
		if err != nil {
			logger.Warn("redis unavailable, address cache disabled", zap.Error(err))
		} else {
			d.Cache = c
		}
	}

	geocoder, search := geocodingBackends(cfg, logger)
	router := routingBackend(cfg, logger)

	limiter := lookup.NewLimiter(cfg.LookupRate, cfg.LookupBurst)
	geocoder = lookup.ThrottledGeocoder{Next: geocoder, Limiter: limiter}
	search = lookup.ThrottledSearch{Next: search, Limiter: limiter}
	router = lookup.ThrottledRouter{Next: router, Limiter: limiter}
	if d.Cache != nil {
		geocoder = lookup.NewCachedGeocoder(geocoder, d.Cache, logger)
	}

	d.Hub = websockets.NewProjectionHub(logger)

	params := session.Params{
		Geocoder:  geocoder,
		Search:    search,
		Router:    router,
		Settings:  location.SettingsFromConfig(cfg),
		IdleTTL:   cfg.SessionIdleTTL,
		Publisher: d.Hub,
		Logger:    logger,
	}
	if d.RecentPlaces != nil {
		params.Recorder = d.RecentPlaces
	}
	d.Sessions = session.NewManager(params)

	logger.Info("dependencies ready",
		zap.String("geocoder", cfg.GeocoderProvider),
		zap.String("router", cfg.RoutingProvider),
		zap.Bool("recent_places", d.RecentPlaces != nil),
		zap.Bool("address_cache", d.Cache != nil),
	)
	return d, nil
}

// geocodingBackends picks the reverse/forward geocoder and the search backend.
// Search always needs a place handle API; both providers offer one.
func geocodingBackends(cfg *config.Config, logger *zap.Logger) (lookup.GeocodingClient, lookup.AddressSearchClient) {
	switch strings.ToLower(cfg.GeocoderProvider) {
	case "google":
		g := googlemaps.NewGoogleMapsClient(cfg.GoogleMapsAPIKey, logger)
		return g, g
	default:
		s := stadiamaps.NewClient(cfg.StadiaAPIKey)
		return s, s
	}
}

func routingBackend(cfg *config.Config, logger *zap.Logger) lookup.RoutingClient {
	switch strings.ToLower(cfg.RoutingProvider) {
	case "valhalla":
		return valhalla.NewValhallaClient(cfg.ValhallaURL, logger)
	default:
		return mapbox.NewMapboxClient(cfg.MapboxAPIKey, logger)
	}
}

// Close releases the storage handles.
func (d *Dependencies) Close() {
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			d.Logger.Warn("closing redis", zap.Error(err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
