package config

import (
	"testing"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Selection.SearchDebounce)
	assert.Equal(t, 800*time.Millisecond, cfg.Selection.MapDragSettle)
	assert.Equal(t, time.Second, cfg.Selection.RouteDebounce)
	assert.Equal(t, 3*time.Second, cfg.Selection.NoticeTTL)
	assert.Equal(t, 3, cfg.Selection.MinQueryLength)
	assert.Equal(t, 7, cfg.Selection.MaxSuggestions)
	assert.True(t, cfg.Selection.Bounds().Contains(cfg.Selection.Fallback()))
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("SEARCH_DEBOUNCE", "250ms")
	t.Setenv("PREMIUM_RATE", "3.10")
	t.Setenv("ROUTING_PROVIDER", "valhalla")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Selection.SearchDebounce)
	assert.Equal(t, "valhalla", cfg.RoutingProvider)
	assert.InDelta(t, 3.10, cfg.Tariff.Rates()[model.TierPremium], 1e-9)
}

func TestParse_BadDuration(t *testing.T) {
	t.Setenv("NOTICE_TTL", "soon")

	_, err := Parse()
	assert.Error(t, err)
}
