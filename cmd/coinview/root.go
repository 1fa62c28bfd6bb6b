package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coinview/internal/config"
)

var (
	cfgFile    string
	cfg        *config.Config
	cfgErr     error
	configUsed string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coinview",
	Short: "CoinView - browse cryptocurrency listings, prices and history",
	Long: `CoinView renders a ranked list of cryptocurrencies with per-coin detail,
price and chart views. Data comes from the public Coinpaprika API and is
held in an in-process query cache that deduplicates concurrent requests.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgErr != nil {
			return cfgErr
		}
		SetupLogger()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig layers defaults, config.yaml, .env and COINVIEW_* variables.
func initConfig() {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("COINVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(config.DefaultConfig())

	configUsed = "defaults-only"
	if err := viper.ReadInConfig(); err == nil {
		configUsed = viper.ConfigFileUsed()
	} else {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cfgErr = fmt.Errorf("reading config: %w", err)
			return
		}
	}

	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		cfgErr = fmt.Errorf("decoding config: %w", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		cfgErr = fmt.Errorf("invalid config (%s): %w", configUsed, err)
	}
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(d *config.Config) {
	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
	viper.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	viper.SetDefault("upstream.history_url", d.Upstream.HistoryURL)
	viper.SetDefault("upstream.icon_url", d.Upstream.IconURL)
	viper.SetDefault("upstream.timeout", d.Upstream.Timeout)
	viper.SetDefault("upstream.quote_currency", d.Upstream.QuoteCurrency)
	viper.SetDefault("cache.stale_time", d.Cache.StaleTime)
	viper.SetDefault("cache.gc_time", d.Cache.GCTime)
	viper.SetDefault("features.list_limit", d.Features.ListLimit)
	viper.SetDefault("features.avg_refresh_interval_ms", d.Features.AvgRefreshIntervalMs)
	viper.SetDefault("theme.default_dark", d.Theme.DefaultDark)
	viper.SetDefault("security.basic_auth.enabled", d.Security.BasicAuth.Enabled)
	viper.SetDefault("security.ip_allowlist.enabled", d.Security.IPAllowlist.Enabled)
	viper.SetDefault("security.ip_allowlist.cidrs", d.Security.IPAllowlist.CIDRs)
}

// GetConfig returns the current configuration
func GetConfig() *config.Config {
	return cfg
}

// GetConfigSource returns where the config was loaded from
func GetConfigSource() string {
	return configUsed
}

// LogStartupDiagnostics logs the effective configuration
func LogStartupDiagnostics() {
	slog.Info("startup_diagnostics",
		"config_source", configUsed,
		"config_flag", cfgFile,
		"cwd", mustGetCwd(),
		"server_port", cfg.Server.Port,
		"server_host", cfg.Server.Host,
		"log_level", cfg.Logging.Level,
		"upstream", cfg.Upstream.BaseURL,
		"stale_time", cfg.Cache.StaleTime.String(),
		"gc_time", cfg.Cache.GCTime.String(),
		"list_limit", cfg.Features.ListLimit,
		"avg_refresh_ms", cfg.Features.AvgRefreshIntervalMs,
		"basic_auth", cfg.Security.BasicAuth.Enabled,
		"ip_allowlist", cfg.Security.IPAllowlist.Enabled,
	)
}

func mustGetCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return cwd
}

// SetupLogger configures the global slog logger based on config.
// Logs go to stderr so command output on stdout stays pipeable.
func SetupLogger() {
	var handler slog.Handler

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
