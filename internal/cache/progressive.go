package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/metrics"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// Upgrade carries the precision-tier positions for a Resolve call. Bodies
// the precision tier could not serve keep their baseline position and tag.
type Upgrade struct {
	JD        float64              `json:"jd"`
	Positions []ephemeris.Position `json:"positions"`
	Upgraded  int                  `json:"upgraded"`
}

// Progressive answers position requests at baseline accuracy immediately
// and delivers the precision tier later on a channel.
type Progressive struct {
	baseline ephemeris.Provider
	precise  ephemeris.Provider
	cache    *PositionCache
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewProgressive creates a resolver. precise may be nil, in which case
// every upgrade repeats the baseline.
func NewProgressive(baseline, precise ephemeris.Provider, cache *PositionCache, logger *slog.Logger) *Progressive {
	return &Progressive{
		baseline: baseline,
		precise:  precise,
		cache:    cache,
		logger:   logger.With("component", "progressive"),
	}
}

// Cache returns the position cache.
func (p *Progressive) Cache() *PositionCache { return p.cache }

// Resolve returns baseline positions for bodies and a channel that
// receives exactly one Upgrade, then closes. The upgrade is computed on a
// context detached from ctx, so it completes and fills the cache even if
// the caller goes away.
func (p *Progressive) Resolve(ctx context.Context, inst transform.Instant, bodies []ephemeris.Body) ([]ephemeris.Position, <-chan Upgrade, error) {
	base, err := p.cache.Positions(ctx, p.baseline, inst, bodies)
	if err != nil {
		return nil, nil, fmt.Errorf("baseline positions: %w", err)
	}

	ch := make(chan Upgrade, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(ch)
		ch <- p.upgrade(context.WithoutCancel(ctx), inst, bodies, base)
	}()
	return base, ch, nil
}

func (p *Progressive) upgrade(ctx context.Context, inst transform.Instant, bodies []ephemeris.Body, base []ephemeris.Position) Upgrade {
	up := Upgrade{JD: inst.JD, Positions: slices.Clone(base)}
	if p.precise == nil {
		return up
	}

	for i, b := range bodies {
		if !p.precise.Supports(b) {
			continue
		}
		pos, err := p.cache.GetOrCompute(ctx, Key{JD: inst.JD, Body: b, Tier: ephemeris.TierPrecision}, func(ctx context.Context) (ephemeris.Position, error) {
			return p.precise.Position(ctx, inst, b)
		})
		if err != nil {
			metrics.RecordTierFallback(b.String())
			p.logger.Debug("precision tier failed, keeping baseline", "body", b.String(), "jd", inst.JD, "error", err)
			continue
		}
		if pos.Tier != ephemeris.TierPrecision {
			p.logger.Debug("precision tier served baseline", "body", b.String(), "jd", inst.JD)
			continue
		}
		up.Positions[i] = pos
		up.Upgraded++
	}
	return up
}

// Wait blocks until every pending upgrade has been delivered.
func (p *Progressive) Wait() { p.wg.Wait() }
