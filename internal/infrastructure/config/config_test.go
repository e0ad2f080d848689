package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Cache.Flavor.Store)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.Flavor.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.Search.TTL)
	assert.Equal(t, 25, cfg.Analysis.MaxIngredients)
	assert.Equal(t, 5000, cfg.Suggestion.MaxEntries)
	assert.Equal(t, 30, cfg.Scoring.IntolerancePenalty)
	assert.Equal(t, 20.0, cfg.Scoring.TasteMaxDistance)
	assert.Equal(t, time.Second, cfg.DedupWindow)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("FOODOSCOPE_API_KEY", "secret-key-123")
	t.Setenv("FLAVOR_CACHE_STORE", "sqlite")
	t.Setenv("APP_ANALYSIS_TIMEOUT", "3s")
	t.Setenv("APP_SCORING_INTOLERANCE_PENALTY", "25")
	t.Setenv("APP_CACHE_FLAVOR_TTL", "48h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret-key-123", cfg.Foodoscope.APIKey)
	assert.Equal(t, "sqlite", cfg.Cache.Flavor.Store)
	assert.Equal(t, 3*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 25, cfg.Scoring.IntolerancePenalty)
	assert.Equal(t, 48*time.Hour, cfg.Cache.Flavor.TTL)
}

func TestLoadConfigRejectsUnknownStore(t *testing.T) {
	t.Setenv("APP_CACHE_FLAVOR_STORE", "mongo")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo")
}

func TestValidateConfig(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	bad := *cfg
	bad.Suggestion.MaxLimit = 1
	assert.Error(t, validateConfig(&bad))

	bad = *cfg
	bad.RateLimit.Requests = 0
	assert.Error(t, validateConfig(&bad))

	bad.RateLimit.Enabled = false
	assert.NoError(t, validateConfig(&bad))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcd...6789", maskAPIKey("abcdef0123456789"))
}
