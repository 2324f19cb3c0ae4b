// Package cache memoizes ephemeris positions and score blobs.
//
// PositionCache sits in front of a Backend (in-memory or Redis). Entries
// older than the TTL are treated as misses, and a background sweeper evicts
// them a bounded batch at a time. Concurrent requests for the same key
// share one computation.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/metrics"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

const positionsCache = "positions"

// Config holds cache configuration loaded from environment variables.
type Config struct {
	TTL           time.Duration // Entry age limit (default: 1h)
	SweepInterval time.Duration // Sweeper tick (default: 1m)
	SweepBatch    int           // Entries evicted per tick at most (default: 256)
}

// DefaultConfig returns the defaults used when no environment overrides
// are set.
func DefaultConfig() Config {
	return Config{TTL: time.Hour, SweepInterval: time.Minute, SweepBatch: 256}
}

// Key identifies one body position at one instant and tier.
type Key struct {
	JD   float64
	Body ephemeris.Body
	Tier ephemeris.Tier
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%.8f", k.Tier, k.Body, k.JD)
}

// PositionCache caches positions in a Backend. Safe for concurrent use by
// multiple goroutines.
type PositionCache struct {
	backend Backend
	config  Config
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	shared    atomic.Int64
}

// NewPositionCache creates a cache over backend.
func NewPositionCache(backend Backend, config Config, logger *slog.Logger) *PositionCache {
	logger.Info("cache initialized",
		"backend", backend.Name(),
		"ttl_seconds", config.TTL.Seconds(),
		"sweep_interval_seconds", config.SweepInterval.Seconds(),
		"sweep_batch", config.SweepBatch,
	)
	return &PositionCache{
		backend: backend,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached position for key. Backend errors and expired
// entries are misses.
func (c *PositionCache) Get(ctx context.Context, key Key) (ephemeris.Position, bool) {
	pos, ok := c.lookup(ctx, key)
	if ok {
		c.hits.Add(1)
		metrics.RecordCacheHit(positionsCache)
		return pos, true
	}
	c.misses.Add(1)
	metrics.RecordCacheMiss(positionsCache)
	return ephemeris.Position{}, false
}

// lookup reads a live entry without touching the hit and miss counters.
func (c *PositionCache) lookup(ctx context.Context, key Key) (ephemeris.Position, bool) {
	pos, storedAt, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Debug("cache backend read failed", "backend", c.backend.Name(), "key", key.String(), "error", err)
		return ephemeris.Position{}, false
	}
	if !ok || (c.config.TTL > 0 && c.now().Sub(storedAt) >= c.config.TTL) {
		return ephemeris.Position{}, false
	}
	return pos, true
}

// put stores a position. Write failures only cost a later recomputation.
func (c *PositionCache) put(ctx context.Context, key Key, pos ephemeris.Position) {
	if err := c.backend.Put(ctx, key, pos, c.now()); err != nil {
		c.logger.Debug("cache backend write failed", "backend", c.backend.Name(), "key", key.String(), "error", err)
	}
}

// GetOrCompute returns the cached position for key, computing and storing
// it on a miss. Concurrent callers for one key share a single computation.
// The computation runs detached from ctx: a cancelled caller stops waiting
// but the result is still cached.
func (c *PositionCache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (ephemeris.Position, error)) (ephemeris.Position, error) {
	if pos, ok := c.Get(ctx, key); ok {
		return pos, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		if pos, ok := c.lookup(detached, key); ok {
			return pos, nil
		}
		pos, err := compute(detached)
		if err != nil {
			return ephemeris.Position{}, err
		}
		// A provider may serve a lower tier than asked for; store the
		// result under the tier it was computed at so the requested tier
		// is retried next time.
		stored := key
		stored.Tier = pos.Tier
		c.put(detached, stored, pos)
		return pos, nil
	})

	select {
	case <-ctx.Done():
		return ephemeris.Position{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
			metrics.RecordSingleflightShared()
		}
		if res.Err != nil {
			return ephemeris.Position{}, res.Err
		}
		return res.Val.(ephemeris.Position), nil
	}
}

// Positions returns provider positions for bodies at inst through the
// cache. Lookups use the provider's tier; results are stored under the
// tier each position was actually computed at.
func (c *PositionCache) Positions(ctx context.Context, p ephemeris.Provider, inst transform.Instant, bodies []ephemeris.Body) ([]ephemeris.Position, error) {
	out := make([]ephemeris.Position, len(bodies))
	for i, b := range bodies {
		if !b.Valid() {
			return nil, fmt.Errorf("%w: %d", ephemeris.ErrUnknownBody, int(b))
		}
		pos, err := c.GetOrCompute(ctx, Key{JD: inst.JD, Body: b, Tier: p.Tier()}, func(ctx context.Context) (ephemeris.Position, error) {
			return p.Position(ctx, inst, b)
		})
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", p.Name(), b, err)
		}
		out[i] = pos
	}
	return out, nil
}

// Start runs the sweeper until ctx is cancelled.
func (c *PositionCache) Start(ctx context.Context) {
	if c.config.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache sweeper stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep evicts one batch of expired entries.
func (c *PositionCache) sweep(ctx context.Context) int {
	removed, err := c.backend.Sweep(ctx, c.now(), c.config.TTL, c.config.SweepBatch)
	if err != nil {
		c.logger.Warn("cache sweep failed", "backend", c.backend.Name(), "error", err)
		return 0
	}
	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.RecordCacheEvictions(positionsCache, removed)
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	if n, err := c.backend.Len(ctx); err == nil {
		metrics.SetCacheEntries(positionsCache, n)
	}
	return removed
}

// Stats returns current cache statistics.
func (c *PositionCache) Stats(ctx context.Context) Stats {
	n, err := c.backend.Len(ctx)
	if err != nil {
		n = -1
	}
	return Stats{
		Backend:   c.backend.Name(),
		Entries:   n,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Shared:    c.shared.Load(),
	}
}

// Stats holds cache statistics for the stats endpoint. Entries is -1 when
// the backend cannot report it.
type Stats struct {
	Backend   string `json:"backend"`
	Entries   int    `json:"entries"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
	Shared    int64  `json:"shared"`
}
