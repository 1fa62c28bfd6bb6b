package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Features FeaturesConfig `mapstructure:"features"`
	Theme    ThemeConfig    `mapstructure:"theme"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UpstreamConfig points at the coin data API and the icon service.
// HistoryURL receives the coin id as the coinId query parameter.
// IconURL must contain a single %s verb for the lower-cased symbol.
type UpstreamConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	HistoryURL    string        `mapstructure:"history_url"`
	IconURL       string        `mapstructure:"icon_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	QuoteCurrency string        `mapstructure:"quote_currency"`
}

// CacheConfig controls query cache freshness and retention
type CacheConfig struct {
	StaleTime time.Duration `mapstructure:"stale_time"`
	GCTime    time.Duration `mapstructure:"gc_time"`
}

// FeaturesConfig holds feature flags and settings
type FeaturesConfig struct {
	ListLimit            int `mapstructure:"list_limit"`
	AvgRefreshIntervalMs int `mapstructure:"avg_refresh_interval_ms"`
}

// ThemeConfig holds the initial theme
type ThemeConfig struct {
	DefaultDark bool `mapstructure:"default_dark"`
}

// SecurityConfig holds security-related settings
// Credentials are loaded from environment variables, not config file
type SecurityConfig struct {
	BasicAuth   BasicAuthConfig   `mapstructure:"basic_auth"`
	IPAllowlist IPAllowlistConfig `mapstructure:"ip_allowlist"`
}

// BasicAuthConfig controls HTTP Basic Authentication
// Username/hash come from BASIC_AUTH_USERNAME and BASIC_AUTH_PASSWORD_HASH env vars
type BasicAuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// IPAllowlistConfig controls IP-based access restrictions
type IPAllowlistConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	CIDRs   []string `mapstructure:"cidrs"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Upstream: UpstreamConfig{
			BaseURL:       "https://api.coinpaprika.com/v1",
			HistoryURL:    "https://ohlcv-api.nomadcoders.workers.dev",
			IconURL:       "https://cryptoicon-api.pages.dev/api/icon/%s",
			Timeout:       10 * time.Second,
			QuoteCurrency: "USD",
		},
		Cache: CacheConfig{
			StaleTime: 30 * time.Second,
			GCTime:    5 * time.Minute,
		},
		Features: FeaturesConfig{
			ListLimit:            50,
			AvgRefreshIntervalMs: 5000,
		},
		Theme: ThemeConfig{
			DefaultDark: false,
		},
		Security: SecurityConfig{
			BasicAuth: BasicAuthConfig{
				Enabled: false,
			},
			IPAllowlist: IPAllowlistConfig{
				Enabled: false,
				CIDRs: []string{
					// IPv4 private ranges
					"127.0.0.0/8",
					"10.0.0.0/8",
					"172.16.0.0/12",
					"192.168.0.0/16",
					// IPv6 private ranges
					"::1/128",
					"fc00::/7",
					"fe80::/10",
				},
			},
		},
	}
}

// Validate checks that all mandatory configuration fields are set
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.HistoryURL == "" {
		return fmt.Errorf("upstream.history_url is required")
	}
	if strings.Count(c.Upstream.IconURL, "%s") != 1 {
		return fmt.Errorf("upstream.icon_url must contain exactly one %%s")
	}
	if c.Upstream.QuoteCurrency == "" {
		return fmt.Errorf("upstream.quote_currency is required")
	}
	if c.Features.ListLimit <= 0 {
		return fmt.Errorf("features.list_limit must be positive, got %d", c.Features.ListLimit)
	}
	if c.Features.AvgRefreshIntervalMs <= 0 {
		return fmt.Errorf("features.avg_refresh_interval_ms must be positive, got %d", c.Features.AvgRefreshIntervalMs)
	}
	if c.Cache.StaleTime < 0 || c.Cache.GCTime < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	return nil
}
