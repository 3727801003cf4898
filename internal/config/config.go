package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName            string        `mapstructure:"app_name"`
	Env                string        `mapstructure:"app_env"`
	LogLevel           string        `mapstructure:"log_level"`
	SitesFile          string        `mapstructure:"sites_file"`
	NotifiersFile      string        `mapstructure:"notifiers_file"`
	DataFile           string        `mapstructure:"data_file"`
	ScanIntervalSecs   int64         `mapstructure:"scan_interval"`
	ScanInterval       time.Duration `mapstructure:"-"`
	FetchRetries       int           `mapstructure:"fetch_retries"`
	ForceRefresh       bool          `mapstructure:"force_refresh"`
	Notify             bool          `mapstructure:"notify"`
	// SelectedSites filters the run to these site ids. Empty means all
	// active sites are processed.
	SelectedSites []string `mapstructure:"selected_sites"`

	ProbeCachePath        string        `mapstructure:"probe_cache_path"`
	ProbeTTLSeconds       int64         `mapstructure:"probe_ttl_seconds"`
	ProbeCleanupSeconds   int64         `mapstructure:"probe_cleanup_interval_seconds"`
	ProbeTTL              time.Duration `mapstructure:"-"`
	ProbeCleanupInterval  time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "inviter-scout")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sites_file", "./configs/sites.yaml")
	v.SetDefault("notifiers_file", "./configs/notifiers.yaml")
	v.SetDefault("data_file", "./data/site_data.json")
	v.SetDefault("scan_interval", 86400) // seconds
	v.SetDefault("fetch_retries", 3)
	v.SetDefault("force_refresh", false)
	v.SetDefault("notify", false)
	v.SetDefault("selected_sites", []string{})
	v.SetDefault("probe_cache_path", "./data/probe_cache.db")
	v.SetDefault("probe_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("probe_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.ScanIntervalSecs <= 0 {
		return nil, fmt.Errorf("invalid scan_interval (must be positive seconds)")
	}
	cfg.ScanInterval = time.Duration(cfg.ScanIntervalSecs) * time.Second

	if cfg.FetchRetries <= 0 {
		return nil, fmt.Errorf("invalid fetch_retries (must be positive)")
	}
	if cfg.ProbeTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid probe_ttl_seconds (must be positive seconds)")
	}
	if cfg.ProbeCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid probe_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.ProbeTTL = time.Duration(cfg.ProbeTTLSeconds) * time.Second
	cfg.ProbeCleanupInterval = time.Duration(cfg.ProbeCleanupSeconds) * time.Second

	return &cfg, nil
}
