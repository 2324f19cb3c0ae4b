package lines

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// bodyLines is the per-body output of one generator goroutine.
type bodyLines struct {
	lines   []Line
	aspects []Line
	zenith  Zenith
}

// Generate computes every line for an instant. Positions come from one
// batch call; each body's lines are built in its own goroutine, bounded by
// a semaphore.
func Generate(ctx context.Context, provider ephemeris.Provider, inst transform.Instant, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	positions, err := provider.Positions(ctx, inst, opts.Bodies)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	gmst := inst.GMST()
	var eps float64
	if !opts.NoAspects && opts.AspectMode == AspectModeEcliptic {
		eps = ephemeris.NewFrame(inst).TrueEps
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	perBody := make([]bodyLines, len(positions))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, pos := range positions {
		wg.Add(1)
		go func(idx int, p ephemeris.Position) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			perBody[idx] = linesForBody(p, gmst, eps, opts)
		}(i, pos)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Instant:   inst,
		GMST:      gmst,
		Positions: positions,
	}
	for _, p := range positions {
		if p.Tier == ephemeris.TierPrecision {
			res.Tiers.Precision++
		} else {
			res.Tiers.Baseline++
		}
	}
	for _, bl := range perBody {
		res.Lines = append(res.Lines, bl.lines...)
		res.AspectLines = append(res.AspectLines, bl.aspects...)
		res.Zeniths = append(res.Zeniths, bl.zenith)
	}

	if !opts.NoParans {
		res.Parans, err = Parans(ctx, positions, gmst, opts.ParanStep)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// linesForBody builds the four angle lines, the aspect lines and the
// zenith point for one body.
func linesForBody(p ephemeris.Position, gmst, eps float64, opts Options) bodyLines {
	var out bodyLines

	out.lines = angleLines(p.Body, p.RA, p.Dec, gmst, opts)
	for i := range out.lines {
		out.lines[i].Rating = BaseRating(p.Body, out.lines[i].Angle)
	}

	out.zenith = Zenith{
		Body:        p.Body,
		Lat:         p.Dec * transform.Rad2Deg,
		Lng:         MCLongitude(p.RA, gmst),
		Declination: p.Dec * transform.Rad2Deg,
		MaxAltitude: 90,
	}

	if opts.NoAspects {
		return out
	}
	for _, kind := range LineAspects {
		for _, dir := range []Direction{Applying, Separating} {
			theta := float64(dir) * kind.Degrees()
			ra, dec := aspectCoordinates(p, theta, opts.AspectMode, eps)
			for _, l := range angleLines(p.Body, ra, dec, gmst, opts) {
				l.Aspect = &Aspect{Kind: kind, Angle: kind.Degrees(), Direction: dir}
				l.Rating = AspectRating(BaseRating(p.Body, l.Angle), kind)
				out.aspects = append(out.aspects, l)
			}
		}
	}
	return out
}

// angleLines returns the MC, IC, ASC and DSC lines for a right ascension
// and declination.
func angleLines(body ephemeris.Body, ra, dec, gmst float64, opts Options) []Line {
	asc, dsc := horizonLines(body, ra, dec, gmst, opts)
	return []Line{
		meridianLine(body, MC, ra, gmst, opts),
		meridianLine(body, IC, ra, gmst, opts),
		asc,
		dsc,
	}
}
