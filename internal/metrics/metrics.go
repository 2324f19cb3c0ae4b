package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acg_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	httpRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acg_http_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter.",
		},
	)

	ephemerisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_ephemeris_computations_total",
			Help: "Body positions computed, by tier and body.",
		},
		[]string{"tier", "body"},
	)

	ephemerisDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acg_ephemeris_duration_seconds",
			Help:    "Time to compute a batch of positions, by tier.",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"tier"},
	)

	tierFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_ephemeris_tier_fallbacks_total",
			Help: "Precision requests served at baseline tier, by body.",
		},
		[]string{"body"},
	)

	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_cache_hits_total",
			Help: "Cache hits, by cache.",
		},
		[]string{"cache"},
	)

	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_cache_misses_total",
			Help: "Cache misses, by cache.",
		},
		[]string{"cache"},
	)

	cacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_cache_evictions_total",
			Help: "Entries evicted from a cache.",
		},
		[]string{"cache"},
	)

	cacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acg_cache_entries",
			Help: "Entries currently held by a cache.",
		},
		[]string{"cache"},
	)

	cacheSharedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acg_cache_singleflight_shared_total",
			Help: "Position lookups that joined an in-flight computation.",
		},
	)

	scoutCandidatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acg_scout_candidates_scored_total",
			Help: "Candidate locations scored.",
		},
	)

	scoutDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "acg_scout_rank_duration_seconds",
			Help:    "Duration of a category ranking.",
			Buckets: prometheus.DefBuckets,
		},
	)

	catalogCities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "acg_catalog_cities",
			Help: "Cities in the loaded catalog snapshot.",
		},
	)

	catalogRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_catalog_refresh_total",
			Help: "Catalog refresh attempts, by result.",
		},
		[]string{"result"},
	)

	streamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "acg_stream_connections",
			Help: "Open SSE stream connections.",
		},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acg_stream_messages_total",
			Help: "SSE messages sent, by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(httpRateLimitedTotal)
	prometheus.MustRegister(ephemerisTotal)
	prometheus.MustRegister(ephemerisDurationSeconds)
	prometheus.MustRegister(tierFallbackTotal)
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
	prometheus.MustRegister(cacheEvictionsTotal)
	prometheus.MustRegister(cacheEntries)
	prometheus.MustRegister(cacheSharedTotal)
	prometheus.MustRegister(scoutCandidatesTotal)
	prometheus.MustRegister(scoutDurationSeconds)
	prometheus.MustRegister(catalogCities)
	prometheus.MustRegister(catalogRefreshTotal)
	prometheus.MustRegister(streamConnections)
	prometheus.MustRegister(streamMessagesTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE streams keep working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// knownRoutes are the paths that get their own label.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/positions":        true,
	"/api/v1/lines":            true,
	"/api/v1/local-space":      true,
	"/api/v1/chart/natal":      true,
	"/api/v1/chart/relocation": true,
	"/api/v1/scout/score":      true,
	"/api/v1/scout/rank":       true,
	"/api/v1/scout/countries":  true,
	"/api/v1/scout/grid":       true,
	"/api/v1/catalog/nearest":  true,
	"/api/v1/cache/stats":      true,
	"/api/v1/stream/positions": true,
}

// normalizeRoute maps a request path to a bounded label set so scanners
// and typos cannot blow up series cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited() {
	httpRateLimitedTotal.Inc()
}

// RecordEphemeris records a batch of positions computed at one tier.
func RecordEphemeris(tier string, bodies []string, d time.Duration) {
	for _, b := range bodies {
		ephemerisTotal.WithLabelValues(tier, b).Inc()
	}
	ephemerisDurationSeconds.WithLabelValues(tier).Observe(d.Seconds())
}

// RecordTierFallback counts a precision request served at baseline tier.
func RecordTierFallback(body string) {
	tierFallbackTotal.WithLabelValues(body).Inc()
}

// RecordCacheHit counts a hit in the named cache.
func RecordCacheHit(cache string) {
	cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss counts a miss in the named cache.
func RecordCacheMiss(cache string) {
	cacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordCacheEvictions counts n evictions from the named cache.
func RecordCacheEvictions(cache string, n int) {
	if n > 0 {
		cacheEvictionsTotal.WithLabelValues(cache).Add(float64(n))
	}
}

// SetCacheEntries reports the current entry count of the named cache.
func SetCacheEntries(cache string, n int) {
	cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// RecordSingleflightShared counts a lookup that joined an in-flight call.
func RecordSingleflightShared() {
	cacheSharedTotal.Inc()
}

// RecordScout records one ranking run.
func RecordScout(candidates int, d time.Duration) {
	scoutCandidatesTotal.Add(float64(candidates))
	scoutDurationSeconds.Observe(d.Seconds())
}

// SetCatalogSize reports the number of cities in the active catalog.
func SetCatalogSize(n int) {
	catalogCities.Set(float64(n))
}

// RecordCatalogRefresh counts a refresh attempt ("ok" or "error").
func RecordCatalogRefresh(result string) {
	catalogRefreshTotal.WithLabelValues(result).Inc()
}

// StreamOpened and StreamClosed track open SSE connections.
func StreamOpened() { streamConnections.Inc() }

func StreamClosed() { streamConnections.Dec() }

// RecordStreamMessage counts an SSE message of the given type.
func RecordStreamMessage(typ string) {
	streamMessagesTotal.WithLabelValues(typ).Inc()
}
