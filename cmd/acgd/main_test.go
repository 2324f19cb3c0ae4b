package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/catalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestLoadAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		enabled string
		token   string
		wantErr bool
		want    bool
	}{
		{"unset", "", "", false, false},
		{"disabled", "false", "", false, false},
		{"enabled with token", "true", "secret", false, true},
		{"enabled without token", "true", "", true, true},
		{"not a bool", "yes please", "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ACG_AUTH_ENABLED", tt.enabled)
			t.Setenv("ACG_AUTH_TOKEN", tt.token)

			cfg, err := loadAuthConfig(testLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.Enabled != tt.want {
				t.Errorf("Enabled = %v, want %v", cfg.Enabled, tt.want)
			}
		})
	}
}

// TestLoadConfigDefaults verifies invalid values fall back to defaults.
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ACG_RATE_LIMIT_RPS", "-3")
	t.Setenv("ACG_RATE_LIMIT_BURST", "0")
	t.Setenv("ACG_TRUST_PROXY", "maybe")
	t.Setenv("ACG_CACHE_TTL", "abc")
	t.Setenv("ACG_CACHE_SWEEP_BATCH", "-1")
	t.Setenv("ACG_SCORE_CACHE_SIZE", "0")
	t.Setenv("ACG_STREAM_MAX_CONCURRENT", "x")
	t.Setenv("ACG_SCOUT_WORKERS", "0")
	t.Setenv("ACG_VSOP87_DIR", filepath.Join(t.TempDir(), "missing"))

	logger := testLogger()
	srv, err := loadServerConfig(logger)
	if err != nil {
		t.Fatal(err)
	}
	if srv.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", srv.Addr)
	}
	if srv.RateLimit.RPS != 20 || srv.RateLimit.Burst != 40 {
		t.Errorf("RateLimit = %+v, want {20 40}", srv.RateLimit)
	}
	if srv.TrustProxy {
		t.Error("TrustProxy = true, want false")
	}

	c := loadCacheConfig(logger)
	if c.Positions.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", c.Positions.TTL)
	}
	if c.Positions.SweepBatch != 256 {
		t.Errorf("SweepBatch = %d, want 256", c.Positions.SweepBatch)
	}
	if c.ScoreCacheSize != 1024 {
		t.Errorf("ScoreCacheSize = %d, want 1024", c.ScoreCacheSize)
	}

	if s := loadStreamConfig(logger, true); s.MaxConcurrentPerIP != 10 || !s.TrustProxy {
		t.Errorf("stream = %+v, want 10 per IP with TrustProxy", s)
	}
	if w := loadScoutConfig(logger); w < 1 {
		t.Errorf("workers = %d, want >= 1", w)
	}
	if e := loadEphemerisConfig(logger); e.VSOPDir != "" {
		t.Errorf("VSOPDir = %q, want empty for a missing directory", e.VSOPDir)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ACG_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("ACG_RATE_LIMIT_RPS", "2.5")
	t.Setenv("ACG_TRUST_PROXY", "true")
	t.Setenv("ACG_CACHE_TTL", "60")
	t.Setenv("ACG_CACHE_SWEEP_INTERVAL", "5")
	t.Setenv("ACG_STREAM_KEEPALIVE_INTERVAL", "3")
	t.Setenv("ACG_CATALOG_URL", "https://example.com/cities.csv")

	logger := testLogger()
	srv, err := loadServerConfig(logger)
	if err != nil {
		t.Fatal(err)
	}
	if srv.Addr != "127.0.0.1:9999" || srv.RateLimit.RPS != 2.5 || !srv.TrustProxy {
		t.Errorf("server = %+v", srv)
	}

	c := loadCacheConfig(logger)
	if c.Positions.TTL != time.Minute || c.Positions.SweepInterval != 5*time.Second {
		t.Errorf("cache = %+v, want ttl 1m sweep 5s", c.Positions)
	}
	if s := loadStreamConfig(logger, false); s.KeepaliveInterval != 3*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 3s", s.KeepaliveInterval)
	}
	if cat := loadCatalogConfig(logger); cat.Loader.CacheDir == "" {
		t.Error("CacheDir is empty, want a default when a URL is set")
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"nonsense", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := logLevel(tt.in); got != tt.want {
			t.Errorf("logLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestOpenCatalogFromFile verifies the served catalog, its version and the
// readiness check once a file has been loaded.
func TestOpenCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.csv")
	csv := "name,country,lat,lng\nLondon,GB,51.5074,-0.1278\nParis,FR,48.8566,2.3522\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served, ready, closeFn, err := openCatalog(ctx, catalogConfig{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := ready["catalog"](ctx); err == nil {
		t.Error("catalog ready with nothing loaded")
	}
	if v := served.version(); v != "" {
		t.Errorf("version = %q, want empty", v)
	}
	closeFn()

	served, ready, closeFn, err = openCatalog(ctx, catalogConfig{Loader: catalog.LoaderConfig{File: path}}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if err := ready["catalog"](ctx); err != nil {
		t.Errorf("catalog ready = %v, want nil", err)
	}
	if _, ok := ready["database"]; ok {
		t.Error("database check registered without a database")
	}
	if served.version() == "" {
		t.Error("version is empty after a load")
	}
	c, err := served.catalog.Nearest(ctx, 49, 2)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Paris" {
		t.Errorf("Nearest = %q, want Paris", c.Name)
	}
}
