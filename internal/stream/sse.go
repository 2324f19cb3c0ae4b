// Package stream implements Server-Sent Events (SSE) streaming of body
// positions. Clients connect via GET /api/v1/stream/positions and receive
// the baseline-tier positions at once, followed by a single upgrade once
// the precision tier resolves.
//
// SSE message format:
//
//	data: {"type":"baseline","time":"2026-02-06T04:00:00Z","jd":2461077.6667,"positions":[...]}\n\n
//	data: {"type":"upgrade","time":"2026-02-06T04:00:00Z","jd":2461077.6667,"positions":[...],"upgraded":10}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while the
// upgrade is pending. The stream closes after the upgrade.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/cache"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/httputil"
	"github.com/harshasoftware/halohome-sub007/internal/metrics"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 1).
	MaxStreams         int           // Max open streams in total (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 15s).
	TrustProxy         bool          // Honour X-Forwarded-For when limiting.
}

// Resolver returns baseline positions now and the precision upgrade later.
type Resolver interface {
	Resolve(ctx context.Context, inst transform.Instant, bodies []ephemeris.Body) ([]ephemeris.Position, <-chan cache.Upgrade, error)
}

// Handler manages SSE streaming connections.
type Handler struct {
	resolver Resolver
	config   Config
	slots    *slots
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new streaming handler.
func NewHandler(resolver Resolver, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	return &Handler{
		resolver: resolver,
		config:   config,
		slots:    newSlots(config.MaxConcurrentPerIP, config.MaxStreams),
		logger:   logger.With("component", "stream"),
		now:      time.Now,
	}
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?time=2026-02-06T04:00:00Z&bodies=sun,moon
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	t, bodies, err := h.parseQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.slots.take(ip)
	if !ok {
		metrics.RecordRateLimited()
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.slots.inUse(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamOpened()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"time", t.UTC().Format(time.RFC3339),
		"bodies", len(bodies),
	)

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		release()
		metrics.StreamClosed()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}()

	// Verify flusher support (required for SSE).
	if _, ok := w.(http.Flusher); !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	inst := transform.NewInstant(t)
	base, upgrades, err := h.resolver.Resolve(ctx, inst, bodies)
	if err != nil {
		h.logger.Warn("stream resolve failed", "remote_ip", ip, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ephemeris.ErrUnknownBody) {
			status = http.StatusBadRequest
		}
		httputil.WriteError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	ew := newEventWriter(w, h.logger)

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := ew.retry(3*time.Second + rand.N(4*time.Second)); err != nil {
		h.logger.Warn("stream send error (retry)", "remote_ip", ip, "error", err)
		return
	}

	stamp := t.UTC().Format(time.RFC3339)
	if err := ew.data(message{Type: "baseline", Time: stamp, JD: inst.JD, Positions: base}); err != nil {
		h.logger.Warn("stream send error (baseline)", "remote_ip", ip, "error", err)
		return
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case up, ok := <-upgrades:
			if !ok {
				return
			}
			msg := message{Type: "upgrade", Time: stamp, JD: up.JD, Positions: up.Positions, Upgraded: up.Upgraded}
			if err := ew.data(msg); err != nil {
				h.logger.Warn("stream send error (upgrade)", "remote_ip", ip, "error", err)
				return
			}
			h.logger.Debug("stream upgraded",
				"remote_ip", ip,
				"upgraded", up.Upgraded,
				"frames", ew.frames,
				"bytes", ew.bytes,
			)
			return

		case <-keepaliveTicker.C:
			if err := ew.comment(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func (h *Handler) parseQuery(r *http.Request) (time.Time, []ephemeris.Body, error) {
	q := r.URL.Query()

	t := h.now()
	if v := q.Get("time"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, nil, errors.New("invalid time parameter, must be RFC3339")
		}
		t = parsed
	}

	bodies := slices.Clone(ephemeris.AllBodies)
	if v := q.Get("bodies"); v != "" {
		parsed, err := ephemeris.ParseBodies(strings.Split(v, ","))
		if err != nil {
			return time.Time{}, nil, err
		}
		bodies = parsed
	}
	return t, bodies, nil
}

type message struct {
	Type      string               `json:"type"`
	Time      string               `json:"time"`
	JD        float64              `json:"jd"`
	Positions []ephemeris.Position `json:"positions"`
	Upgraded  int                  `json:"upgraded,omitempty"`
}
