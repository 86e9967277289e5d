package location

import (
	"time"

	"github.com/bwise1/ride_pinpoint/config"
	"github.com/bwise1/ride_pinpoint/internal/model"
)

// Settings holds every knob of a Controller. Zero durations mean "no delay".
type Settings struct {
	Bounds        model.Bounds
	Fallback      model.Coordinate
	FallbackLabel string
	NotFoundLabel string
	DefaultFocus  model.LocationField

	SearchDebounce time.Duration
	MapDragSettle  time.Duration
	RouteDebounce  time.Duration
	NoticeTTL      time.Duration
	LookupTimeout  time.Duration

	MinQueryLength int
	MaxSuggestions int

	RouteMode   string
	DefaultTier model.ServiceTier
	Tariff      Tariff
}

// DefaultSettings covers central Ottawa.
func DefaultSettings() Settings {
	return Settings{
		Bounds: model.Bounds{
			MinLatitude:  44.9,
			MaxLatitude:  45.8,
			MinLongitude: -76.6,
			MaxLongitude: -75.0,
		},
		Fallback:       model.Coordinate{Latitude: 45.4215, Longitude: -75.6972},
		FallbackLabel:  "Downtown Ottawa",
		NotFoundLabel:  "address not found",
		DefaultFocus:   model.FieldDestination,
		SearchDebounce: 500 * time.Millisecond,
		MapDragSettle:  800 * time.Millisecond,
		RouteDebounce:  time.Second,
		NoticeTTL:      3 * time.Second,
		LookupTimeout:  10 * time.Second,
		MinQueryLength: 3,
		MaxSuggestions: 7,
		RouteMode:      "driving",
		DefaultTier:    model.TierStandard,
		Tariff:         DefaultTariff(),
	}
}

func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	sel := cfg.Selection

	s.Bounds = sel.Bounds()
	s.Fallback = sel.Fallback()
	if sel.FallbackLabel != "" {
		s.FallbackLabel = sel.FallbackLabel
	}
	if sel.NotFoundLabel != "" {
		s.NotFoundLabel = sel.NotFoundLabel
	}
	if f, err := model.ParseLocationField(sel.DefaultFocus); err == nil && f != model.FieldNone {
		s.DefaultFocus = f
	}
	s.SearchDebounce = sel.SearchDebounce
	s.MapDragSettle = sel.MapDragSettle
	s.RouteDebounce = sel.RouteDebounce
	s.NoticeTTL = sel.NoticeTTL
	if sel.LookupTimeout > 0 {
		s.LookupTimeout = sel.LookupTimeout
	}
	if sel.MinQueryLength > 0 {
		s.MinQueryLength = sel.MinQueryLength
	}
	if sel.MaxSuggestions > 0 {
		s.MaxSuggestions = sel.MaxSuggestions
	}
	if cfg.RouteMode != "" {
		s.RouteMode = cfg.RouteMode
	}
	s.Tariff = Tariff{
		BasePrice:      cfg.Tariff.BasePrice,
		Rates:          cfg.Tariff.Rates(),
		CurrencySymbol: cfg.Tariff.CurrencySymbol,
	}
	return s
}
