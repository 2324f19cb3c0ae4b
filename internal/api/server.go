// Package api exposes the line, chart and scouting engines over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/auth"
	"github.com/harshasoftware/halohome-sub007/internal/cache"
	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/health"
	"github.com/harshasoftware/halohome-sub007/internal/metrics"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
	"github.com/harshasoftware/halohome-sub007/internal/stream"
	"github.com/harshasoftware/halohome-sub007/internal/tz"
)

// Config holds the listener and middleware settings.
type Config struct {
	Addr       string
	Auth       auth.Config
	RateLimit  RateLimitConfig
	TrustProxy bool
}

// Deps are the engines the handlers call into.
type Deps struct {
	// Ephemeris serves the precision tier with baseline fallback.
	Ephemeris ephemeris.Provider
	Baseline  ephemeris.Provider

	Progressive *cache.Progressive
	Scores      *cache.ScoreCache
	Catalog     catalog.Catalog
	// CatalogVersion identifies the loaded catalog snapshot so cached
	// rankings are not served across a refresh. May be nil.
	CatalogVersion func() string
	Pool           *scout.Pool
	TZ             *tz.Resolver
	Stream         *stream.Handler
	Ready          map[string]health.Check
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{deps: deps, logger: logger.With("component", "api")}

	// Build middleware chain: metrics -> logging -> rate limit -> auth -> mux.
	var handler http.Handler = s.routes()
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = newRateLimiter(cfg.RateLimit, cfg.TrustProxy).middleware(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(s.deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/positions", s.handlePositions)
	mux.HandleFunc("POST /api/v1/lines", s.handleLines)
	mux.HandleFunc("POST /api/v1/local-space", s.handleLocalSpace)
	mux.HandleFunc("POST /api/v1/chart/natal", s.handleNatal)
	mux.HandleFunc("POST /api/v1/chart/relocation", s.handleRelocation)
	mux.HandleFunc("POST /api/v1/scout/score", s.handleScore)
	mux.HandleFunc("POST /api/v1/scout/rank", s.handleRank)
	mux.HandleFunc("POST /api/v1/scout/countries", s.handleCountries)
	mux.HandleFunc("POST /api/v1/scout/grid", s.handleGrid)
	mux.HandleFunc("GET /api/v1/catalog/nearest", s.handleNearest)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	if s.deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", s.deps.Stream.HandlePositions)
	}
	return mux
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
