package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AppName != "inviter-scout" {
		t.Errorf("app name = %q", cfg.AppName)
	}
	if cfg.SitesFile != "./configs/sites.yaml" {
		t.Errorf("sites file = %q", cfg.SitesFile)
	}
	if cfg.DataFile != "./data/site_data.json" {
		t.Errorf("data file = %q", cfg.DataFile)
	}
	if cfg.ScanInterval != 24*time.Hour {
		t.Errorf("scan interval = %s", cfg.ScanInterval)
	}
	if cfg.FetchRetries != 3 {
		t.Errorf("fetch retries = %d", cfg.FetchRetries)
	}
	if cfg.ProbeTTL != 7*24*time.Hour {
		t.Errorf("probe ttl = %s", cfg.ProbeTTL)
	}
	if cfg.ProbeCleanupInterval != 12*time.Hour {
		t.Errorf("probe cleanup interval = %s", cfg.ProbeCleanupInterval)
	}
	if cfg.ForceRefresh || cfg.Notify {
		t.Errorf("force_refresh/notify must default to false")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "3600")
	t.Setenv("FETCH_RETRIES", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScanInterval != time.Hour {
		t.Errorf("scan interval = %s", cfg.ScanInterval)
	}
	if cfg.FetchRetries != 5 {
		t.Errorf("fetch retries = %d", cfg.FetchRetries)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero scan_interval")
	}
}
