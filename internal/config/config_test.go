package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)

	t.Run("server defaults", func(t *testing.T) {
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	})

	t.Run("logging defaults", func(t *testing.T) {
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("upstream defaults", func(t *testing.T) {
		assert.Equal(t, "https://api.coinpaprika.com/v1", cfg.Upstream.BaseURL)
		assert.NotEmpty(t, cfg.Upstream.HistoryURL)
		assert.Contains(t, cfg.Upstream.IconURL, "%s")
		assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, "USD", cfg.Upstream.QuoteCurrency)
	})

	t.Run("cache defaults", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, cfg.Cache.StaleTime)
		assert.Equal(t, 5*time.Minute, cfg.Cache.GCTime)
	})

	t.Run("features defaults", func(t *testing.T) {
		assert.Equal(t, 50, cfg.Features.ListLimit)
		assert.Equal(t, 5000, cfg.Features.AvgRefreshIntervalMs)
	})

	t.Run("theme defaults to light", func(t *testing.T) {
		assert.False(t, cfg.Theme.DefaultDark)
	})

	t.Run("security defaults", func(t *testing.T) {
		assert.False(t, cfg.Security.BasicAuth.Enabled)
		assert.False(t, cfg.Security.IPAllowlist.Enabled)
		assert.Equal(t, []string{
			"127.0.0.0/8",
			"10.0.0.0/8",
			"172.16.0.0/12",
			"192.168.0.0/16",
			"::1/128",
			"fc00::/7",
			"fe80::/10",
		}, cfg.Security.IPAllowlist.CIDRs)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty base URL", func(c *Config) { c.Upstream.BaseURL = "" }, "upstream.base_url is required"},
		{"empty history URL", func(c *Config) { c.Upstream.HistoryURL = "" }, "upstream.history_url is required"},
		{"icon URL without verb", func(c *Config) { c.Upstream.IconURL = "https://icons.example" }, "upstream.icon_url"},
		{"icon URL with two verbs", func(c *Config) { c.Upstream.IconURL = "%s/%s" }, "upstream.icon_url"},
		{"empty quote currency", func(c *Config) { c.Upstream.QuoteCurrency = "" }, "quote_currency"},
		{"zero list limit", func(c *Config) { c.Features.ListLimit = 0 }, "list_limit must be positive"},
		{"zero refresh interval", func(c *Config) { c.Features.AvgRefreshIntervalMs = 0 }, "avg_refresh_interval_ms must be positive"},
		{"negative refresh interval", func(c *Config) { c.Features.AvgRefreshIntervalMs = -100 }, "avg_refresh_interval_ms must be positive"},
		{"negative stale time", func(c *Config) { c.Cache.StaleTime = -time.Second }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfig_ReturnsFreshCopy(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()

	a.Security.IPAllowlist.CIDRs[0] = "1.2.3.4/32"
	a.Features.ListLimit = 10

	assert.Equal(t, "127.0.0.0/8", b.Security.IPAllowlist.CIDRs[0])
	assert.Equal(t, 50, b.Features.ListLimit)
}
