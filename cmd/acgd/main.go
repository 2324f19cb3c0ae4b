package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harshasoftware/halohome-sub007/internal/api"
	"github.com/harshasoftware/halohome-sub007/internal/auth"
	"github.com/harshasoftware/halohome-sub007/internal/cache"
	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/health"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
	"github.com/harshasoftware/halohome-sub007/internal/stream"
	"github.com/harshasoftware/halohome-sub007/internal/tz"
)

func main() {
	envErr := godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("ACG_LOG_LEVEL")),
	}))
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("failed to load .env", "error", envErr)
	}

	if err := run(logger); err != nil {
		logger.Error("acgd failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	serverCfg, err := loadServerConfig(logger)
	if err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ephCfg := loadEphemerisConfig(logger)
	base := ephemeris.NewBaseline()
	precision := ephemeris.NewPrecision(ephCfg.VSOPDir, logger)
	tiered := ephemeris.NewTiered(precision, base, logger)
	go func() {
		if err := precision.Warm(); err != nil {
			logger.Warn("precision tier limited to the Moon", "error", err)
		}
	}()

	cacheCfg := loadCacheConfig(logger)
	backend, redisClient := cache.OpenBackend(ctx, cacheCfg.RedisURL, cacheCfg.Positions.TTL, logger)
	defer backend.Close()

	positions := cache.NewPositionCache(backend, cacheCfg.Positions, logger)
	go positions.Start(ctx)

	progressive := cache.NewProgressive(base, precision, positions, logger)
	scores, err := cache.NewScoreCache(cacheCfg.ScoreCacheSize, redisClient, cacheCfg.Positions.TTL, logger)
	if err != nil {
		return err
	}

	cat, ready, closeCatalog, err := openCatalog(ctx, loadCatalogConfig(logger), logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	streamHandler := stream.NewHandler(progressive, loadStreamConfig(logger, serverCfg.TrustProxy), logger)

	srv := api.NewServer(serverCfg, api.Deps{
		Ephemeris:      tiered,
		Baseline:       base,
		Progressive:    progressive,
		Scores:         scores,
		Catalog:        cat.catalog,
		CatalogVersion: cat.version,
		Pool:           scout.NewPool(loadScoutConfig(logger), logger),
		TZ:             tz.NewResolver(logger),
		Stream:         streamHandler,
		Ready:          ready,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", serverCfg.Addr, "auth_enabled", serverCfg.Auth.Enabled, "precision_tier", ephCfg.VSOPDir != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	progressive.Wait()

	logger.Info("server stopped")
	return nil
}

// servedCatalog is the catalog handed to the API plus the snapshot version
// used in ranking cache keys.
type servedCatalog struct {
	catalog catalog.Catalog
	version func() string
}

// openCatalog loads the in-memory catalog and, when a database is
// configured, mirrors every load into Postgres and serves from there.
func openCatalog(ctx context.Context, cfg catalogConfig, logger *slog.Logger) (servedCatalog, map[string]health.Check, func(), error) {
	mem := catalog.NewMemory()
	loader := catalog.NewLoader(cfg.Loader, mem, logger)

	served := servedCatalog{
		catalog: mem,
		version: func() string {
			if ds := mem.Get(); ds != nil {
				return strconv.FormatInt(ds.LoadedAt.UnixNano(), 36)
			}
			return ""
		},
	}
	ready := map[string]health.Check{
		"catalog": func(context.Context) error {
			if mem.Len() == 0 {
				return catalog.ErrEmpty
			}
			return nil
		},
	}
	closeFn := func() {}

	if cfg.DatabaseURL != "" {
		if err := catalog.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return served, nil, closeFn, err
		}
		pg, err := catalog.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return served, nil, closeFn, err
		}
		loader.OnLoad(func(ctx context.Context, ds *catalog.Dataset) error {
			return pg.Replace(ctx, ds.Cities)
		})
		served.catalog = pg
		ready["database"] = pg.Ping
		closeFn = pg.Close
	}

	if cfg.Loader.File != "" || cfg.Loader.URL != "" || cfg.Loader.CacheDir != "" {
		if err := loader.Load(ctx); err != nil {
			logger.Warn("initial catalog load failed, scouting by catalog unavailable", "error", err)
		}
	} else {
		logger.Info("no catalog source configured")
	}
	if err := loader.StartRefresh(ctx); err != nil {
		closeFn()
		return served, nil, func() {}, err
	}
	return served, ready, closeFn, nil
}

func logLevel(v string) slog.Level {
	var level slog.Level
	if v == "" || level.UnmarshalText([]byte(v)) != nil {
		return slog.LevelDebug
	}
	return level
}

func loadServerConfig(logger *slog.Logger) (api.Config, error) {
	cfg := api.Config{
		Addr:      ":8080",
		RateLimit: api.RateLimitConfig{RPS: 20, Burst: 40},
	}

	if v := os.Getenv("ACG_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return cfg, err
	}
	cfg.Auth = authCfg

	if v := os.Getenv("ACG_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			logger.Warn("invalid ACG_RATE_LIMIT_RPS value, using default", "value", v, "default", cfg.RateLimit.RPS)
		} else {
			cfg.RateLimit.RPS = f
		}
	}

	if v := os.Getenv("ACG_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_RATE_LIMIT_BURST value, using default", "value", v, "default", cfg.RateLimit.Burst)
		} else {
			cfg.RateLimit.Burst = n
		}
	}

	if v := os.Getenv("ACG_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ACG_TRUST_PROXY value, using default", "value", v, "default", false)
		} else {
			cfg.TrustProxy = b
		}
	}

	logger.Info("server config",
		"addr", cfg.Addr,
		"rate_limit_rps", cfg.RateLimit.RPS,
		"rate_limit_burst", cfg.RateLimit.Burst,
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg, nil
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ACG_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ACG_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ACG_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ACG_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

type ephemerisConfig struct {
	VSOPDir string
}

func loadEphemerisConfig(logger *slog.Logger) ephemerisConfig {
	cfg := ephemerisConfig{VSOPDir: os.Getenv("ACG_VSOP87_DIR")}
	if cfg.VSOPDir != "" {
		if _, err := os.Stat(cfg.VSOPDir); err != nil {
			logger.Warn("invalid ACG_VSOP87_DIR value, using default", "value", cfg.VSOPDir, "default", "", "error", err)
			cfg.VSOPDir = ""
		}
	}
	logger.Info("ephemeris config", "vsop87_dir", cfg.VSOPDir)
	return cfg
}

type cacheConfig struct {
	Positions      cache.Config
	RedisURL       string
	ScoreCacheSize int
}

func loadCacheConfig(logger *slog.Logger) cacheConfig {
	cfg := cacheConfig{
		Positions:      cache.DefaultConfig(),
		ScoreCacheSize: 1024,
	}

	if v := os.Getenv("ACG_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_CACHE_TTL value, using default", "value", v, "default", cfg.Positions.TTL.Seconds())
		} else {
			cfg.Positions.TTL = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ACG_CACHE_SWEEP_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_CACHE_SWEEP_INTERVAL value, using default", "value", v, "default", cfg.Positions.SweepInterval.Seconds())
		} else {
			cfg.Positions.SweepInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ACG_CACHE_SWEEP_BATCH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_CACHE_SWEEP_BATCH value, using default", "value", v, "default", cfg.Positions.SweepBatch)
		} else {
			cfg.Positions.SweepBatch = n
		}
	}

	if v := os.Getenv("ACG_SCORE_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_SCORE_CACHE_SIZE value, using default", "value", v, "default", cfg.ScoreCacheSize)
		} else {
			cfg.ScoreCacheSize = n
		}
	}

	cfg.RedisURL = os.Getenv("ACG_REDIS_URL")

	logger.Info("cache config",
		"ttl_seconds", cfg.Positions.TTL.Seconds(),
		"sweep_interval_seconds", cfg.Positions.SweepInterval.Seconds(),
		"sweep_batch", cfg.Positions.SweepBatch,
		"score_cache_size", cfg.ScoreCacheSize,
		"redis", cfg.RedisURL != "",
	)

	return cfg
}

type catalogConfig struct {
	Loader      catalog.LoaderConfig
	DatabaseURL string
}

func loadCatalogConfig(logger *slog.Logger) catalogConfig {
	cfg := catalogConfig{
		Loader: catalog.LoaderConfig{
			File:     os.Getenv("ACG_CATALOG_FILE"),
			URL:      os.Getenv("ACG_CATALOG_URL"),
			CacheDir: os.Getenv("ACG_CATALOG_CACHE_DIR"),
			MaxFiles: 5,
			Refresh:  os.Getenv("ACG_CATALOG_REFRESH"),
		},
		DatabaseURL: os.Getenv("ACG_DATABASE_URL"),
	}
	if cfg.Loader.URL != "" && cfg.Loader.CacheDir == "" {
		cfg.Loader.CacheDir = "/tmp/acg/catalog"
	}

	logger.Info("catalog config",
		"file", cfg.Loader.File,
		"url", cfg.Loader.URL,
		"cache_dir", cfg.Loader.CacheDir,
		"refresh", cfg.Loader.Refresh,
		"database", cfg.DatabaseURL != "",
	)

	return cfg
}

func loadScoutConfig(logger *slog.Logger) int {
	workers := runtime.NumCPU()

	if v := os.Getenv("ACG_SCOUT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_SCOUT_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}

	logger.Info("scout config", "workers", workers)
	return workers
}

func loadStreamConfig(logger *slog.Logger, trustProxy bool) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  15 * time.Second,
		TrustProxy:         trustProxy,
	}

	if v := os.Getenv("ACG_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("ACG_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ACG_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 15)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)

	return cfg
}
