package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soniakeys/meeus/v3/elliptic"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	pp "github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/pluto"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/harshasoftware/halohome-sub007/internal/metrics"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

var errNoVSOP = errors.New("VSOP87 directory not configured")

// vsopSet is the loaded VSOP87 planet data. A set with a non-nil err is
// memoized too, so a broken directory is reported once, not per call.
type vsopSet struct {
	earth   *pp.V87Planet
	planets map[Body]*pp.V87Planet
	err     error
}

var vsopFiles = map[Body]int{
	Mercury: pp.Mercury,
	Venus:   pp.Venus,
	Mars:    pp.Mars,
	Jupiter: pp.Jupiter,
	Saturn:  pp.Saturn,
	Uranus:  pp.Uranus,
	Neptune: pp.Neptune,
}

// Precision is the full-series tier. The Moon uses the complete Meeus
// lunar series and needs no data files. Sun, planets and Pluto need the
// VSOP87B files in vsopDir, loaded on first use.
type Precision struct {
	vsopDir string
	logger  *slog.Logger
	vsop    atomic.Pointer[vsopSet]
	vsopMu  sync.Mutex // serializes the VSOP87 load
}

// NewPrecision creates the precision tier. An empty vsopDir limits it to
// the Moon.
func NewPrecision(vsopDir string, logger *slog.Logger) *Precision {
	return &Precision{vsopDir: vsopDir, logger: logger}
}

func (p *Precision) Name() string { return "precision" }

func (p *Precision) Tier() Tier { return TierPrecision }

// Supports reports whether body can be computed at precision tier. For
// VSOP87 bodies this triggers the one-time data load.
func (p *Precision) Supports(body Body) bool {
	switch body {
	case Moon:
		return true
	case Sun, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto:
		return p.vsopData().err == nil
	default:
		return false
	}
}

// Warm loads the VSOP87 data now rather than on the first request.
func (p *Precision) Warm() error {
	if p.vsopDir == "" {
		return nil
	}
	return p.vsopData().err
}

// vsopData returns the memoized VSOP87 set (double-checked locking).
func (p *Precision) vsopData() *vsopSet {
	if s := p.vsop.Load(); s != nil {
		return s
	}

	p.vsopMu.Lock()
	defer p.vsopMu.Unlock()

	if s := p.vsop.Load(); s != nil {
		return s
	}

	s := p.loadVSOP()
	p.vsop.Store(s)
	return s
}

func (p *Precision) loadVSOP() *vsopSet {
	if p.vsopDir == "" {
		return &vsopSet{err: errNoVSOP}
	}

	start := time.Now()
	earth, err := pp.LoadPlanetPath(pp.Earth, p.vsopDir)
	if err != nil {
		p.logger.Warn("VSOP87 load failed, precision tier limited to moon",
			"dir", p.vsopDir, "error", err)
		return &vsopSet{err: fmt.Errorf("load earth: %w", err)}
	}

	planets := make(map[Body]*pp.V87Planet, len(vsopFiles))
	for body, ibody := range vsopFiles {
		v, err := pp.LoadPlanetPath(ibody, p.vsopDir)
		if err != nil {
			p.logger.Warn("VSOP87 load failed, precision tier limited to moon",
				"dir", p.vsopDir, "body", body.String(), "error", err)
			return &vsopSet{err: fmt.Errorf("load %s: %w", body, err)}
		}
		planets[body] = v
	}

	p.logger.Info("VSOP87 data loaded",
		"dir", p.vsopDir,
		"planets", len(planets),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &vsopSet{earth: earth, planets: planets}
}

// precisionFrame is the per-instant nutation for the precision tier.
type precisionFrame struct {
	jde      float64
	deltaPsi float64 // radians
	meanEps  float64 // radians
	trueEps  float64 // radians
}

func newPrecisionFrame(jde float64) precisionFrame {
	dpsi, deps := nutation.Nutation(jde)
	eps0 := nutation.MeanObliquity(jde)
	return precisionFrame{
		jde:      jde,
		deltaPsi: dpsi.Rad(),
		meanEps:  eps0.Rad(),
		trueEps:  eps0.Rad() + deps.Rad(),
	}
}

func (p *Precision) Position(ctx context.Context, inst transform.Instant, body Body) (Position, error) {
	ps, err := p.Positions(ctx, inst, []Body{body})
	if err != nil {
		return Position{}, err
	}
	return ps[0], nil
}

// Positions computes every body at precision tier or fails; it never
// degrades. Use Tiered for per-body fallback.
func (p *Precision) Positions(ctx context.Context, inst transform.Instant, bodies []Body) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	f := newPrecisionFrame(inst.TT)
	out := make([]Position, 0, len(bodies))
	names := make([]string, 0, len(bodies))
	for _, body := range bodies {
		pos, err := p.compute(f, body)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
		names = append(names, body.String())
	}
	metrics.RecordEphemeris(TierPrecision.String(), names, time.Since(start))
	return out, nil
}

func (p *Precision) compute(f precisionFrame, body Body) (Position, error) {
	if !body.Valid() {
		return Position{}, fmt.Errorf("%w: %d", ErrUnknownBody, int(body))
	}
	if body == Moon {
		lon, lat, km := moonposition.Position(f.jde)
		return f.fromEcliptic(Moon, lon, lat, km/kmPerAU), nil
	}
	if !p.Supports(body) {
		return Position{}, fmt.Errorf("%w: %s", ErrUnsupported, body)
	}

	vs := p.vsopData()
	switch body {
	case Sun:
		ra, dec, r := solar.ApparentEquatorialVSOP87(vs.earth, f.jde)
		return f.fromEquatorial(Sun, ra.Rad(), dec.Rad(), r), nil
	case Pluto:
		ra, dec := pluto.Astrometric(f.jde, vs.earth)
		raD, decD := transform.PrecessFromJ2000(ra.Rad(), dec.Rad(), f.jde)
		lon, lat := transform.EquatorialToEcliptic(raD, decD, f.meanEps)
		raT, decT := transform.EclipticToEquatorial(lon+f.deltaPsi, lat, f.trueEps)
		dRA, dDec := transform.Aberration(raT, decT, f.jde, f.trueEps)
		l, b, r := pluto.Heliocentric(f.jde)
		dist := geocentricDistance(vs.earth, f.jde, l, b, r)
		return f.fromEquatorial(Pluto, transform.NormalizeRadians(raT+dRA), decT+dDec, dist), nil
	default:
		planet := vs.planets[body]
		ra, dec := elliptic.Position(planet, vs.earth, f.jde)
		l, b, r := planet.Position(f.jde)
		dist := geocentricDistance(vs.earth, f.jde, l, b, r)
		return f.fromEquatorial(body, ra.Rad(), dec.Rad(), dist), nil
	}
}

// fromEcliptic applies nutation in longitude to geometric ecliptic
// coordinates of date.
func (f precisionFrame) fromEcliptic(body Body, lon, lat unit.Angle, dist float64) Position {
	l := lon.Rad() + f.deltaPsi
	ra, dec := transform.EclipticToEquatorial(l, lat.Rad(), f.trueEps)
	return Position{
		Body:     body,
		RA:       ra,
		Dec:      dec,
		Lon:      transform.NormalizeDegrees(l * transform.Rad2Deg),
		Lat:      lat.Deg(),
		Distance: dist,
		Tier:     TierPrecision,
	}
}

// fromEquatorial wraps apparent RA/Dec of date.
func (f precisionFrame) fromEquatorial(body Body, ra, dec, dist float64) Position {
	lon, lat := transform.EquatorialToEcliptic(ra, dec, f.trueEps)
	return Position{
		Body:     body,
		RA:       transform.NormalizeRadians(ra),
		Dec:      dec,
		Lon:      lon * transform.Rad2Deg,
		Lat:      lat * transform.Rad2Deg,
		Distance: dist,
		Tier:     TierPrecision,
	}
}

// geocentricDistance returns the Earth-body distance in AU from
// heliocentric spherical coordinates.
func geocentricDistance(earth *pp.V87Planet, jde float64, l, b unit.Angle, r float64) float64 {
	l0, b0, r0 := earth.Position(jde)
	sinL, cosL := math.Sincos(l.Rad())
	sinB, cosB := math.Sincos(b.Rad())
	sinL0, cosL0 := math.Sincos(l0.Rad())
	sinB0, cosB0 := math.Sincos(b0.Rad())
	x := r*cosB*cosL - r0*cosB0*cosL0
	y := r*cosB*sinL - r0*cosB0*sinL0
	z := r*sinB - r0*sinB0
	return math.Sqrt(x*x + y*y + z*z)
}
