package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresCoreSettings(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "",
		"JWT_SECRET":   "",
	})
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/nearexpiry",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
		"PORT":         "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "INR", cfg.CurrencyCode)
	require.Equal(t, 20, cfg.CatalogDefaultLimit)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, "@every 1h", cfg.RepriceSchedule)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":      "postgres://localhost:5432/nearexpiry",
		"REDIS_URL":         "redis://localhost:6379/0",
		"JWT_SECRET":        "test-secret",
		"PORT":              "9090",
		"CATALOG_CACHE_TTL": "5m",
		"ACCESS_TOKEN_TTL":  "bogus",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	// invalid durations fall back to the default
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
}
