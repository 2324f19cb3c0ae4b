package ephemeris

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harshasoftware/halohome-sub007/internal/metrics"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// Tiered serves each body from the precise provider when it can and from
// the baseline otherwise. A baseline-served body is tagged TierBaseline;
// degraded accuracy is never an error.
type Tiered struct {
	precise Provider
	base    *Baseline
	logger  *slog.Logger
}

// NewTiered composes precise over base.
func NewTiered(precise Provider, base *Baseline, logger *slog.Logger) *Tiered {
	return &Tiered{precise: precise, base: base, logger: logger}
}

func (t *Tiered) Name() string { return "tiered" }

func (t *Tiered) Tier() Tier { return t.precise.Tier() }

func (t *Tiered) Supports(body Body) bool { return body.Valid() }

// Baseline returns the fallback provider.
func (t *Tiered) Baseline() *Baseline { return t.base }

func (t *Tiered) Position(ctx context.Context, inst transform.Instant, body Body) (Position, error) {
	ps, err := t.Positions(ctx, inst, []Body{body})
	if err != nil {
		return Position{}, err
	}
	return ps[0], nil
}

// Positions returns one position per body in the order given.
func (t *Tiered) Positions(ctx context.Context, inst transform.Instant, bodies []Body) ([]Position, error) {
	var precise, fallback []Body
	for _, b := range bodies {
		if !b.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownBody, int(b))
		}
		if t.precise.Supports(b) {
			precise = append(precise, b)
		} else {
			fallback = append(fallback, b)
		}
	}

	got := make(map[Body]Position, len(bodies))
	if len(precise) > 0 {
		ps, err := t.precise.Positions(ctx, inst, precise)
		switch {
		case err == nil:
			for _, p := range ps {
				got[p.Body] = p
			}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			t.logger.Debug("precision tier failed, serving baseline",
				"provider", t.precise.Name(), "bodies", len(precise), "error", err)
			fallback = append(fallback, precise...)
		}
	}

	if len(fallback) > 0 {
		ps, err := t.base.Positions(ctx, inst, fallback)
		if err != nil {
			return nil, fmt.Errorf("baseline positions: %w", err)
		}
		for _, p := range ps {
			metrics.RecordTierFallback(p.Body.String())
			t.logger.Debug("body served at baseline tier", "body", p.Body.String(), "jd", inst.JD)
			got[p.Body] = p
		}
	}

	out := make([]Position, len(bodies))
	for i, b := range bodies {
		out[i] = got[b]
	}
	return out, nil
}
