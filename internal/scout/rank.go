package scout

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
	"github.com/harshasoftware/halohome-sub007/internal/metrics"
)

type lineKey struct {
	body  ephemeris.Body
	angle lines.Angle
}

// categoryLines maps each category to the (body, angle) lines relevant to
// it and whether each is beneficial or challenging. Lines absent from a
// category are ignored when ranking for it.
var categoryLines = [...]map[lineKey]Nature{
	Career: {
		{ephemeris.Sun, lines.MC}:      Beneficial,
		{ephemeris.Jupiter, lines.MC}:  Beneficial,
		{ephemeris.Mercury, lines.MC}:  Beneficial,
		{ephemeris.Venus, lines.MC}:    Beneficial,
		{ephemeris.Mars, lines.MC}:     Beneficial,
		{ephemeris.Saturn, lines.MC}:   Beneficial,
		{ephemeris.Pluto, lines.MC}:    Beneficial,
		{ephemeris.Sun, lines.ASC}:     Beneficial,
		{ephemeris.Mars, lines.ASC}:    Beneficial,
		{ephemeris.Jupiter, lines.ASC}: Beneficial,
		{ephemeris.Mercury, lines.ASC}: Beneficial,
		{ephemeris.Neptune, lines.MC}:  Challenging,
		{ephemeris.Uranus, lines.MC}:   Challenging,
		{ephemeris.Moon, lines.MC}:     Challenging,
	},
	Love: {
		{ephemeris.Venus, lines.DSC}:   Beneficial,
		{ephemeris.Sun, lines.DSC}:     Beneficial,
		{ephemeris.Jupiter, lines.DSC}: Beneficial,
		{ephemeris.Moon, lines.DSC}:    Beneficial,
		{ephemeris.Venus, lines.ASC}:   Beneficial,
		{ephemeris.Sun, lines.ASC}:     Beneficial,
		{ephemeris.Mars, lines.ASC}:    Beneficial,
		{ephemeris.Jupiter, lines.ASC}: Beneficial,
		{ephemeris.Saturn, lines.DSC}:  Challenging,
		{ephemeris.Pluto, lines.DSC}:   Challenging,
		{ephemeris.Mars, lines.DSC}:    Challenging,
		{ephemeris.Uranus, lines.DSC}:  Challenging,
		{ephemeris.Neptune, lines.DSC}: Challenging,
	},
	Health: {
		{ephemeris.Sun, lines.ASC}:     Beneficial,
		{ephemeris.Jupiter, lines.ASC}: Beneficial,
		{ephemeris.Moon, lines.ASC}:    Beneficial,
		{ephemeris.Mars, lines.ASC}:    Beneficial,
		{ephemeris.Venus, lines.IC}:    Beneficial,
		{ephemeris.Jupiter, lines.MC}:  Beneficial,
		{ephemeris.Venus, lines.MC}:    Beneficial,
		{ephemeris.Sun, lines.IC}:      Beneficial,
		{ephemeris.Moon, lines.IC}:     Beneficial,
		{ephemeris.Saturn, lines.ASC}:  Challenging,
		{ephemeris.Saturn, lines.MC}:   Challenging,
		{ephemeris.Neptune, lines.ASC}: Challenging,
		{ephemeris.Pluto, lines.ASC}:   Challenging,
		{ephemeris.Uranus, lines.ASC}:  Challenging,
	},
	Home: {
		{ephemeris.Venus, lines.IC}:    Beneficial,
		{ephemeris.Moon, lines.IC}:     Beneficial,
		{ephemeris.Jupiter, lines.IC}:  Beneficial,
		{ephemeris.Sun, lines.IC}:      Beneficial,
		{ephemeris.Saturn, lines.IC}:   Beneficial,
		{ephemeris.Venus, lines.ASC}:   Beneficial,
		{ephemeris.Moon, lines.ASC}:    Beneficial,
		{ephemeris.Jupiter, lines.ASC}: Beneficial,
		{ephemeris.Mercury, lines.IC}:  Beneficial,
		{ephemeris.Uranus, lines.IC}:   Challenging,
		{ephemeris.Neptune, lines.IC}:  Challenging,
		{ephemeris.Pluto, lines.IC}:    Challenging,
		{ephemeris.Mars, lines.IC}:     Challenging,
	},
	Wellbeing: {
		{ephemeris.Venus, lines.ASC}:   Beneficial,
		{ephemeris.Venus, lines.IC}:    Beneficial,
		{ephemeris.Venus, lines.DSC}:   Beneficial,
		{ephemeris.Jupiter, lines.ASC}: Beneficial,
		{ephemeris.Jupiter, lines.MC}:  Beneficial,
		{ephemeris.Jupiter, lines.IC}:  Beneficial,
		{ephemeris.Jupiter, lines.DSC}: Beneficial,
		{ephemeris.Moon, lines.IC}:     Beneficial,
		{ephemeris.Moon, lines.ASC}:    Beneficial,
		{ephemeris.Sun, lines.ASC}:     Beneficial,
		{ephemeris.Sun, lines.IC}:      Beneficial,
		{ephemeris.Neptune, lines.ASC}: Beneficial,
		{ephemeris.Saturn, lines.ASC}:  Challenging,
		{ephemeris.Saturn, lines.MC}:   Challenging,
		{ephemeris.Neptune, lines.MC}:  Challenging,
		{ephemeris.Pluto, lines.ASC}:   Challenging,
		{ephemeris.Pluto, lines.MC}:    Challenging,
		{ephemeris.Mars, lines.ASC}:    Challenging,
	},
	Wealth: {
		{ephemeris.Jupiter, lines.MC}:  Beneficial,
		{ephemeris.Jupiter, lines.IC}:  Beneficial,
		{ephemeris.Jupiter, lines.ASC}: Beneficial,
		{ephemeris.Jupiter, lines.DSC}: Beneficial,
		{ephemeris.Venus, lines.MC}:    Beneficial,
		{ephemeris.Venus, lines.ASC}:   Beneficial,
		{ephemeris.Sun, lines.MC}:      Beneficial,
		{ephemeris.Sun, lines.ASC}:     Beneficial,
		{ephemeris.Mercury, lines.MC}:  Beneficial,
		{ephemeris.Mercury, lines.ASC}: Beneficial,
		{ephemeris.Pluto, lines.MC}:    Beneficial,
		{ephemeris.Neptune, lines.MC}:  Challenging,
		{ephemeris.Neptune, lines.IC}:  Challenging,
		{ephemeris.Uranus, lines.MC}:   Challenging,
		{ephemeris.Uranus, lines.IC}:   Challenging,
		{ephemeris.Saturn, lines.ASC}:  Challenging,
	},
}

// LineNature reports how a (body, angle) line reads for a category, and
// false when the category ignores it.
func LineNature(body ephemeris.Body, angle lines.Angle, c Category) (Nature, bool) {
	if !c.valid() {
		return "", false
	}
	n, ok := categoryLines[c][lineKey{body, angle}]
	return n, ok
}

// forCategory keeps the lines a category ranks on.
func forCategory(ls []Prepared, c Category) []Prepared {
	out := make([]Prepared, 0, len(ls))
	for _, l := range ls {
		if _, ok := LineNature(l.Body, l.Angle, c); ok {
			out = append(out, l)
		}
	}
	return out
}

// topInfluenceCount is the number of nearest influences kept on a ranking.
const topInfluenceCount = 3

// Pool scores candidates on a fixed number of goroutines.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool. Zero or negative workers means runtime.NumCPU().
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers, logger: logger}
}

// run calls fn for every index in [0, n) on the pool's workers. It returns
// the context error when cancelled before all jobs were handed out.
func (p *Pool) run(ctx context.Context, n int, fn func(i int)) error {
	if n == 0 {
		return ctx.Err()
	}

	jobs := make(chan int, p.workers*2)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				fn(i)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return ctx.Err()
}

// ScoreAll scores every candidate against every line, in input order.
func (p *Pool) ScoreAll(ctx context.Context, candidates []Candidate, ls []Prepared, cfg Config) ([]ScoreResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := make([]ScoreResult, len(candidates))
	err := p.run(ctx, len(candidates), func(i int) {
		out[i] = Score(candidates[i], ls, cfg)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rank scores candidates for a category and sorts them. Candidates with no
// line of the category in range are left out.
func (p *Pool) Rank(ctx context.Context, candidates []Candidate, ls []Prepared, category Category, mode SortMode, cfg Config) ([]Ranking, error) {
	if !category.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(category))
	}
	if !mode.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSortMode, int(mode))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	relevant := forCategory(ls, category)

	results := make([]*Ranking, len(candidates))
	err := p.run(ctx, len(candidates), func(i int) {
		infl := Influences(candidates[i].Point, relevant, cfg)
		if len(infl) == 0 {
			return
		}
		s := aggregate(candidates[i], infl)

		top := slices.Clone(infl)
		slices.SortStableFunc(top, func(a, b Influence) int {
			return cmp.Compare(a.DistanceKm, b.DistanceKm)
		})
		if len(top) > topInfluenceCount {
			top = top[:topInfluenceCount]
		}
		results[i] = &Ranking{ScoreResult: s, Nature: nature(s), TopInfluences: top}
	})
	if err != nil {
		return nil, err
	}

	out := make([]Ranking, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	SortRankings(out, mode, cfg.VolatilityPenalty)

	elapsed := time.Since(start)
	metrics.RecordScout(len(candidates), elapsed)
	p.logger.Debug("scout ranking complete",
		"category", category.String(),
		"sort", mode.String(),
		"candidates", len(candidates),
		"ranked", len(out),
		"lines", len(relevant),
		"duration_ms", elapsed.Milliseconds(),
	)
	return out, nil
}

// RankForCategory prepares the lines for cfg and ranks candidates on a
// pool sized to the CPU count.
func RankForCategory(ctx context.Context, candidates []Candidate, ls []lines.Line, category Category, mode SortMode, cfg Config) ([]Ranking, error) {
	return NewPool(0, slog.Default()).Rank(ctx, candidates, Prepare(ls, cfg.MaxKm, 0), category, mode, cfg)
}

// SortRankings orders rankings by the sort mode, descending. Ties go to
// the lower volatility, then to the candidate ID, which makes the order
// total.
func SortRankings(rs []Ranking, mode SortMode, penalty float64) {
	key := func(r *Ranking) float64 {
		switch mode {
		case IntensityFirst:
			return r.Intensity
		case Balanced:
			return r.Benefit - r.Volatility*penalty
		default:
			return r.Benefit
		}
	}
	slices.SortFunc(rs, func(a, b Ranking) int {
		if o := cmp.Compare(key(&b), key(&a)); o != 0 {
			return o
		}
		if o := cmp.Compare(a.Volatility, b.Volatility); o != 0 {
			return o
		}
		if o := cmp.Compare(a.Candidate.ID, b.Candidate.ID); o != 0 {
			return o
		}
		return cmp.Compare(a.Candidate.Name, b.Candidate.Name)
	})
}
