package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Enabled {
		t.Error("database should be disabled without DATABASE_URL")
	}
	if cfg.Forecast.DefaultFreq != "1mo" {
		t.Errorf("freq = %q, want 1mo", cfg.Forecast.DefaultFreq)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/panels")
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_LAGS", "24")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Database.Enabled {
		t.Error("database should be enabled")
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Forecast.DefaultLags != 24 {
		t.Errorf("lags = %d, want 24", cfg.Forecast.DefaultLags)
	}
}

func TestLoad_InvalidDefaults(t *testing.T) {
	t.Setenv("DEFAULT_LAGS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}
