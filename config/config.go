package config

import (
	"log"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/caarlos0/env/v11"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	Dsn      string `env:"DSN"`
	RedisURL string `env:"REDIS_URL"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JwtSecret string `env:"JWT_SECRET"`

	StadiaAPIKey     string `env:"STADIA_API_KEY"`
	MapboxAPIKey     string `env:"MAPBOX_API_KEY"`
	GoogleMapsAPIKey string `env:"GOOGLE_MAPS_API_KEY"`
	ValhallaURL      string `env:"VALHALLA_URL" envDefault:"https://valhalla1.openstreetmap.de"`
	GeocoderProvider string `env:"GEOCODER_PROVIDER" envDefault:"stadia"`
	RoutingProvider  string `env:"ROUTING_PROVIDER" envDefault:"mapbox"`
	RouteMode        string `env:"ROUTE_MODE" envDefault:"driving"`

	LookupRate      float64       `env:"LOOKUP_RATE" envDefault:"20"`
	LookupBurst     int           `env:"LOOKUP_BURST" envDefault:"10"`
	AddressCacheTTL time.Duration `env:"ADDRESS_CACHE_TTL" envDefault:"24h"`
	SessionIdleTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	Selection SelectionConfig
	Tariff    TariffConfig
}

// SelectionConfig tunes the location selection controller.
type SelectionConfig struct {
	SearchDebounce  time.Duration `env:"SEARCH_DEBOUNCE" envDefault:"500ms"`
	MapDragSettle   time.Duration `env:"MAP_DRAG_SETTLE" envDefault:"800ms"`
	RouteDebounce   time.Duration `env:"ROUTE_DEBOUNCE" envDefault:"1s"`
	NoticeTTL       time.Duration `env:"NOTICE_TTL" envDefault:"3s"`
	LookupTimeout   time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"10s"`
	MinQueryLength  int           `env:"MIN_QUERY_LENGTH" envDefault:"3"`
	MaxSuggestions  int           `env:"MAX_SUGGESTIONS" envDefault:"7"`
	DefaultFocus    string        `env:"DEFAULT_FOCUS" envDefault:"destination"`
	FallbackLabel   string        `env:"FALLBACK_LABEL" envDefault:"Downtown Ottawa"`
	NotFoundLabel   string        `env:"NOT_FOUND_LABEL" envDefault:"address not found"`
	FallbackLat     float64       `env:"FALLBACK_LAT" envDefault:"45.4215"`
	FallbackLon     float64       `env:"FALLBACK_LON" envDefault:"-75.6972"`
	BoundsMinLat    float64       `env:"BOUNDS_MIN_LAT" envDefault:"44.9"`
	BoundsMaxLat    float64       `env:"BOUNDS_MAX_LAT" envDefault:"45.8"`
	BoundsMinLon    float64       `env:"BOUNDS_MIN_LON" envDefault:"-76.6"`
	BoundsMaxLon    float64       `env:"BOUNDS_MAX_LON" envDefault:"-75.0"`
}

// TariffConfig is the fare table: base + km * rate(tier).
type TariffConfig struct {
	BasePrice      float64 `env:"BASE_PRICE" envDefault:"3.50"`
	EconomyRate    float64 `env:"ECONOMY_RATE" envDefault:"1.20"`
	StandardRate   float64 `env:"STANDARD_RATE" envDefault:"1.60"`
	PremiumRate    float64 `env:"PREMIUM_RATE" envDefault:"2.40"`
	CurrencySymbol string  `env:"CURRENCY_SYMBOL" envDefault:"$"`
}

func (s SelectionConfig) Bounds() model.Bounds {
	return model.Bounds{
		MinLatitude:  s.BoundsMinLat,
		MaxLatitude:  s.BoundsMaxLat,
		MinLongitude: s.BoundsMinLon,
		MaxLongitude: s.BoundsMaxLon,
	}
}

func (s SelectionConfig) Fallback() model.Coordinate {
	return model.Coordinate{Latitude: s.FallbackLat, Longitude: s.FallbackLon}
}

func (t TariffConfig) Rates() map[model.ServiceTier]float64 {
	return map[model.ServiceTier]float64{
		model.TierEconomy:  t.EconomyRate,
		model.TierStandard: t.StandardRate,
		model.TierPremium:  t.PremiumRate,
	}
}

func New() *Config {
	if loadErr := godotenv.Load(".env"); loadErr != nil {
		log.Printf("[Env]: unable to load .env file %v", loadErr)
	}

	cfg, err := Parse()
	if err != nil {
		log.Printf("[Env]: failed to parse environment variables: %v", err)
	}

	return cfg
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}
