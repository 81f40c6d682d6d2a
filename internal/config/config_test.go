package config

import (
	"testing"
	"time"
)

func TestLoad_RequiredDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("DATABASE_URL未設定ではエラーを返すべき")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/geofeed_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() がエラーを返した: %v", err)
	}

	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want 10s", cfg.FetchTimeout)
	}
	if cfg.FetchMaxSize != 5242880 {
		t.Errorf("FetchMaxSize = %d, want 5242880", cfg.FetchMaxSize)
	}
	if cfg.RefreshInterval != 10*time.Minute {
		t.Errorf("RefreshInterval = %v, want 10m", cfg.RefreshInterval)
	}
	if cfg.RefreshMaxConcurrent != 6 {
		t.Errorf("RefreshMaxConcurrent = %d, want 6", cfg.RefreshMaxConcurrent)
	}
	if cfg.GeocodeEndpoint != "https://nominatim.openstreetmap.org/search" {
		t.Errorf("GeocodeEndpoint = %q", cfg.GeocodeEndpoint)
	}
	if cfg.GeocodeCacheSize != 1000 {
		t.Errorf("GeocodeCacheSize = %d, want 1000", cfg.GeocodeCacheSize)
	}
	if cfg.GeocodeRatePerSec != 1.0 {
		t.Errorf("GeocodeRatePerSec = %v, want 1.0", cfg.GeocodeRatePerSec)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/geofeed_test")
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("REFRESH_MAX_CONCURRENT", "12")
	t.Setenv("GEOCODE_RATE_PER_SEC", "0.5")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() がエラーを返した: %v", err)
	}

	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if cfg.RefreshMaxConcurrent != 12 {
		t.Errorf("RefreshMaxConcurrent = %d, want 12", cfg.RefreshMaxConcurrent)
	}
	if cfg.GeocodeRatePerSec != 0.5 {
		t.Errorf("GeocodeRatePerSec = %v, want 0.5", cfg.GeocodeRatePerSec)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
}

func TestLoad_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/geofeed_test")
	t.Setenv("FETCH_MAX_REDIRECTS", "many")
	t.Setenv("GEOCODE_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() がエラーを返した: %v", err)
	}

	if cfg.FetchMaxRedirects != 5 {
		t.Errorf("FetchMaxRedirects = %d, 解釈できない値はデフォルトに戻るべき", cfg.FetchMaxRedirects)
	}
	if cfg.GeocodeTimeout != 5*time.Second {
		t.Errorf("GeocodeTimeout = %v, 解釈できない値はデフォルトに戻るべき", cfg.GeocodeTimeout)
	}
}
