package ephemeris

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/metrics"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// lightTimeDays is the light travel time for 1 AU, in days.
const lightTimeDays = 0.0057755183

// Baseline is the always-available tier: mean orbital elements with the
// principal perturbations for the Sun and planets, the leading lunar terms
// for the Moon, and short series for Pluto, Chiron and the true node.
// It is synchronous and allocation-light.
type Baseline struct{}

// NewBaseline returns the baseline provider.
func NewBaseline() *Baseline { return &Baseline{} }

func (b *Baseline) Name() string { return "baseline" }

func (b *Baseline) Tier() Tier { return TierBaseline }

func (b *Baseline) Supports(body Body) bool { return body.Valid() }

// Position computes one body.
func (b *Baseline) Position(ctx context.Context, inst transform.Instant, body Body) (Position, error) {
	ps, err := b.Positions(ctx, inst, []Body{body})
	if err != nil {
		return Position{}, err
	}
	return ps[0], nil
}

// Positions computes several bodies sharing one Frame.
func (b *Baseline) Positions(ctx context.Context, inst transform.Instant, bodies []Body) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	f := NewFrame(inst)
	out := make([]Position, 0, len(bodies))
	names := make([]string, 0, len(bodies))
	for _, body := range bodies {
		p, err := b.compute(f, body)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		names = append(names, body.String())
	}
	metrics.RecordEphemeris(TierBaseline.String(), names, time.Since(start))
	return out, nil
}

// PositionsInFrame computes bodies against a caller-supplied Frame.
func (b *Baseline) PositionsInFrame(f *Frame, bodies []Body) ([]Position, error) {
	out := make([]Position, 0, len(bodies))
	for _, body := range bodies {
		p, err := b.compute(f, body)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *Baseline) compute(f *Frame, body Body) (Position, error) {
	switch body {
	case Sun:
		return f.apparent(Sun, f.sunLon, 0, f.sunR, true), nil
	case Moon:
		lon, lat, dist := moonGeocentric(f.T)
		return f.apparent(Moon, lon, lat, dist, false), nil
	case Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune:
		lon, lat, dist := planetGeocentric(f, body)
		return f.apparent(body, lon, lat, dist, true), nil
	case Pluto:
		lon, lat, dist := f.geocentric(func(T float64) (float64, float64, float64) {
			l, bt, r := plutoHeliocentric(T)
			return l + precessionInLongitude(T), bt, r
		})
		return f.apparent(Pluto, lon, lat, dist, true), nil
	case Chiron:
		lon, lat, dist := f.geocentric(func(T float64) (float64, float64, float64) {
			l, bt, r := chironHeliocentric(T)
			return l + precessionInLongitude(T), bt, r
		})
		return f.apparent(Chiron, lon, lat, dist, true), nil
	case NorthNode:
		return f.apparent(NorthNode, trueNode(f.T), 0, 0, false), nil
	default:
		return Position{}, fmt.Errorf("%w: %d", ErrUnknownBody, int(body))
	}
}

// orbit holds mean elements as linear functions of d (days since
// 2000 Jan 0.0 TT). Angles in degrees, a in AU. They are referred to the
// equinox of date.
type orbit struct {
	N, dN float64 // longitude of ascending node
	i, di float64 // inclination
	w, dw float64 // argument of perihelion
	a, da float64 // semi-major axis
	e, de float64 // eccentricity
	M, dM float64 // mean anomaly
}

var orbits = map[Body]orbit{
	Mercury: {48.3313, 3.24587e-5, 7.0047, 5.00e-8, 29.1241, 1.01444e-5, 0.387098, 0, 0.205635, 5.59e-10, 168.6562, 4.0923344368},
	Venus:   {76.6799, 2.46590e-5, 3.3946, 2.75e-8, 54.8910, 1.38374e-5, 0.723330, 0, 0.006773, -1.302e-9, 48.0052, 1.6021302244},
	Mars:    {49.5574, 2.11081e-5, 1.8497, -1.78e-8, 286.5016, 2.92961e-5, 1.523688, 0, 0.093405, 2.516e-9, 18.6021, 0.5240207766},
	Jupiter: {100.4542, 2.76854e-5, 1.3030, -1.557e-7, 273.8777, 1.64505e-5, 5.20256, 0, 0.048498, 4.469e-9, 19.8950, 0.0830853001},
	Saturn:  {113.6634, 2.38980e-5, 2.4886, -1.081e-7, 339.3939, 2.97661e-5, 9.55475, 0, 0.055546, -9.499e-9, 316.9670, 0.0334442282},
	Uranus:  {74.0005, 1.3978e-5, 0.7733, 1.9e-8, 96.6612, 3.0565e-5, 19.18171, -1.55e-8, 0.047318, 7.45e-9, 142.5905, 0.011725806},
	Neptune: {131.7806, 3.0173e-5, 1.7700, -2.55e-7, 272.8461, -6.027e-6, 30.05826, 3.313e-8, 0.008606, 2.15e-9, 260.2471, 0.005995147},
}

// sunGeometric returns the Sun's geometric ecliptic longitude (radians,
// equinox of date) and distance (AU).
func sunGeometric(d float64) (lon, r float64) {
	w := 282.9404 + 4.70935e-5*d
	e := 0.016709 - 1.151e-9*d
	M := transform.NormalizeDegrees(356.0470+0.9856002585*d) * transform.Deg2Rad

	E := kepler(M, e)
	xv := math.Cos(E) - e
	yv := math.Sqrt(1-e*e) * math.Sin(E)
	v := math.Atan2(yv, xv)
	r = math.Hypot(xv, yv)
	return transform.NormalizeRadians(v + w*transform.Deg2Rad), r
}

// kepler solves E - e sin E = M by Newton iteration (radians).
func kepler(M, e float64) float64 {
	E := M + e*math.Sin(M)*(1+e*math.Cos(M))
	if e > 0.8 {
		E = math.Pi
	}
	for i := 0; i < 30; i++ {
		dE := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= dE
		if math.Abs(dE) < 1e-12 {
			break
		}
	}
	return E
}

// heliocentric returns ecliptic longitude, latitude (radians) and radius
// (AU) of a planet from its elements at day d, with perturbations applied.
func heliocentric(f *Frame, body Body, d float64) (lon, lat, r float64) {
	o := orbits[body]
	N := (o.N + o.dN*d) * transform.Deg2Rad
	inc := (o.i + o.di*d) * transform.Deg2Rad
	w := (o.w + o.dw*d) * transform.Deg2Rad
	a := o.a + o.da*d
	e := o.e + o.de*d
	M := transform.NormalizeDegrees(o.M+o.dM*d) * transform.Deg2Rad

	E := kepler(M, e)
	xv := a * (math.Cos(E) - e)
	yv := a * math.Sqrt(1-e*e) * math.Sin(E)
	v := math.Atan2(yv, xv)
	r = math.Hypot(xv, yv)

	sinN, cosN := math.Sincos(N)
	sinVW, cosVW := math.Sincos(v + w)
	cosI := math.Cos(inc)
	xh := r * (cosN*cosVW - sinN*sinVW*cosI)
	yh := r * (sinN*cosVW + cosN*sinVW*cosI)
	zh := r * sinVW * math.Sin(inc)

	lon = math.Atan2(yh, xh)
	lat = math.Atan2(zh, math.Hypot(xh, yh))

	dLon, dLat := perturbations(f, body)
	return lon + dLon*transform.Deg2Rad, lat + dLat*transform.Deg2Rad, r
}

// perturbations returns the principal Jupiter-Saturn-Uranus terms in
// degrees of longitude and latitude.
func perturbations(f *Frame, body Body) (dLon, dLat float64) {
	sind := func(x float64) float64 { return math.Sin(x * transform.Deg2Rad) }
	cosd := func(x float64) float64 { return math.Cos(x * transform.Deg2Rad) }
	mj, ms, mu := f.mj, f.ms, f.mu

	switch body {
	case Jupiter:
		dLon = -0.332*sind(2*mj-5*ms-67.6) -
			0.056*sind(2*mj-2*ms+21) +
			0.042*sind(3*mj-5*ms+21) -
			0.036*sind(mj-2*ms) +
			0.022*cosd(mj-ms) +
			0.023*sind(2*mj-3*ms+52) -
			0.016*sind(mj-5*ms-69)
	case Saturn:
		dLon = 0.812*sind(2*mj-5*ms-67.6) -
			0.229*cosd(2*mj-4*ms-2) +
			0.119*sind(mj-2*ms-3) +
			0.046*sind(2*mj-6*ms-69) +
			0.014*sind(mj-3*ms+32)
		dLat = -0.020*cosd(2*mj-4*ms-2) +
			0.018*sind(2*mj-6*ms-49)
	case Uranus:
		dLon = 0.040*sind(ms-2*mu+6) +
			0.035*sind(ms-3*mu+33) -
			0.015*sind(mj-mu+20)
	}
	return dLon, dLat
}

// planetGeocentric reduces a planet to geocentric ecliptic coordinates of
// date, corrected for light time.
func planetGeocentric(f *Frame, body Body) (lon, lat, dist float64) {
	return f.geocentric(func(T float64) (float64, float64, float64) {
		d := T*36525.0 + (transform.J2000 - 2451543.5)
		return heliocentric(f, body, d)
	})
}

// geocentric adds the Sun's geocentric vector to a heliocentric position
// function of T and iterates once for light time.
func (f *Frame) geocentric(helio func(T float64) (lon, lat, r float64)) (lon, lat, dist float64) {
	T := f.T
	var x, y, z float64
	for i := 0; i < 2; i++ {
		l, b, r := helio(T)
		cosB := math.Cos(b)
		x = r*cosB*math.Cos(l) + f.sunX
		y = r*cosB*math.Sin(l) + f.sunY
		z = r * math.Sin(b)
		dist = math.Sqrt(x*x + y*y + z*z)
		T = f.T - dist*lightTimeDays/36525.0
	}
	lon = transform.NormalizeRadians(math.Atan2(y, x))
	lat = math.Atan2(z, math.Hypot(x, y))
	return lon, lat, dist
}

// chironHeliocentric uses osculating J2000 elements with secular drift and
// first-order Jupiter, Saturn and Uranus terms. Radians and AU, J2000 frame.
func chironHeliocentric(T float64) (lon, lat, r float64) {
	days := T * 36525.0

	a := 13.648 + 0.0001*T
	e := 0.3814 + 0.00001*T
	inc := (6.930 + 0.0001*T) * transform.Deg2Rad
	node := (209.379 - 0.0094*T) * transform.Deg2Rad
	peri := (339.557 + 0.0085*T) * transform.Deg2Rad

	n := 0.9856076686 / (a * math.Sqrt(a)) // degrees per day
	M := transform.NormalizeRadians((12.49 + n*days) * transform.Deg2Rad)

	E := kepler(M, e)
	v := 2 * math.Atan2(math.Sqrt(1+e)*math.Sin(E/2), math.Sqrt(1-e)*math.Cos(E/2))
	r = a * (1 - e*math.Cos(E))

	sinN, cosN := math.Sincos(node)
	sinVW, cosVW := math.Sincos(v + peri)
	cosI := math.Cos(inc)
	x := r * (cosN*cosVW - sinN*sinVW*cosI)
	y := r * (sinN*cosVW + cosN*sinVW*cosI)
	z := r * sinVW * math.Sin(inc)

	lon = math.Atan2(y, x)
	lat = math.Asin(z / r)

	lJup := (34.35 + 3034.9057*T) * transform.Deg2Rad
	lSat := (50.08 + 1222.1138*T) * transform.Deg2Rad
	lUra := (314.055 + 429.8640*T) * transform.Deg2Rad
	pert := 0.12*math.Sin(lon-lJup) +
		0.35*math.Sin(lon-lSat) + 0.08*math.Sin(2*(lon-lSat)) +
		0.18*math.Sin(lon-lUra)

	return transform.NormalizeRadians(lon + pert*transform.Deg2Rad), lat, r
}

// trueNode returns the true ascending node of the Moon's orbit: the mean
// node plus the principal periodic terms. Radians, ecliptic of date.
func trueNode(T float64) float64 {
	T2, T3, T4 := T*T, T*T*T, T*T*T*T
	omega := 125.04452 - 1934.136261*T + 0.0020708*T2 + T3/450000.0

	D := (297.8501921 + 445267.1114034*T - 0.0018819*T2 + T3/545868.0 - T4/113065000.0) * transform.Deg2Rad
	M := (357.5291092 + 35999.0502909*T - 0.0001536*T2 + T3/24490000.0) * transform.Deg2Rad
	Mp := (134.9633964 + 477198.8675055*T + 0.0087414*T2 + T3/69699.0 - T4/14712000.0) * transform.Deg2Rad
	F := (93.2720950 + 483202.0175233*T - 0.0036539*T2 - T3/3526000.0 + T4/863310000.0) * transform.Deg2Rad

	corr := -1.4979*math.Sin(2*D-2*F) -
		0.1500*math.Sin(Mp) -
		0.1226*math.Sin(2*D) +
		0.1176*math.Sin(2*F) -
		0.0801*math.Sin(2*Mp-2*F) -
		0.0616*math.Sin(2*D-M-2*F) +
		0.0490*math.Sin(2*D-Mp-2*F) +
		0.0438*math.Sin(2*D-2*Mp) -
		0.0393*math.Sin(2*Mp) -
		0.0311*math.Sin(2*D-Mp) +
		0.0227*math.Sin(Mp-2*F) -
		0.0220*math.Sin(2*D+Mp-2*F) +
		0.0181*math.Sin(M) -
		0.0149*math.Sin(2*D-2*Mp-2*F)

	return transform.NormalizeRadians((omega + corr) * transform.Deg2Rad)
}
