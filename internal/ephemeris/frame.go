package ephemeris

import (
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// Frame holds the per-instant quantities shared by every body in a batch:
// nutation, obliquity and the Sun's geocentric position (which doubles as
// Earth's heliocentric position for the planets).
type Frame struct {
	Inst transform.Instant
	JDE  float64 // TT Julian date
	D    float64 // days since 2000 Jan 0.0 TT (orbital element epoch)
	T    float64 // Julian centuries of TT since J2000.0

	Nutation transform.Nutation // degrees
	MeanEps  float64            // radians
	TrueEps  float64            // radians

	sunLon float64 // geometric ecliptic longitude of date, radians
	sunR   float64 // AU
	sunX   float64 // geocentric ecliptic rectangular, AU
	sunY   float64

	// Mean anomalies of Jupiter, Saturn and Uranus (degrees) for the
	// mutual perturbation terms.
	mj, ms, mu float64
}

// NewFrame computes the shared quantities for one instant.
func NewFrame(inst transform.Instant) *Frame {
	jde := inst.TT
	f := &Frame{
		Inst: inst,
		JDE:  jde,
		D:    jde - 2451543.5,
		T:    (jde - transform.J2000) / 36525.0,
	}

	f.Nutation = transform.ComputeNutation(jde)
	eps0 := transform.MeanObliquity(jde)
	f.MeanEps = eps0 * transform.Deg2Rad
	f.TrueEps = (eps0 + f.Nutation.DeltaEps) * transform.Deg2Rad

	f.sunLon, f.sunR = sunGeometric(f.D)
	f.sunX = f.sunR * math.Cos(f.sunLon)
	f.sunY = f.sunR * math.Sin(f.sunLon)

	f.mj = 19.8950 + 0.0830853001*f.D
	f.ms = 316.9670 + 0.0334442282*f.D
	f.mu = 142.5905 + 0.011725806*f.D
	return f
}

// apparent converts geometric ecliptic coordinates of date (radians) into
// an apparent Position: nutation in longitude, true obliquity and, when
// aberrate is set, annual aberration.
func (f *Frame) apparent(body Body, lon, lat, dist float64, aberrate bool) Position {
	lon += f.Nutation.DeltaPsi * transform.Deg2Rad
	ra, dec := transform.EclipticToEquatorial(lon, lat, f.TrueEps)

	if aberrate {
		dRA, dDec := transform.Aberration(ra, dec, f.JDE, f.TrueEps)
		ra = transform.NormalizeRadians(ra + dRA)
		dec = math.Max(-math.Pi/2, math.Min(math.Pi/2, dec+dDec))
	}

	eLon, eLat := transform.EquatorialToEcliptic(ra, dec, f.TrueEps)
	return Position{
		Body:     body,
		RA:       ra,
		Dec:      dec,
		Lon:      eLon * transform.Rad2Deg,
		Lat:      eLat * transform.Rad2Deg,
		Distance: dist,
		Tier:     TierBaseline,
	}
}

// precessionInLongitude returns general precession since J2000 in radians
// (IAU 1976), used to move J2000 ecliptic longitudes to the equinox of date.
func precessionInLongitude(T float64) float64 {
	return (5029.0966*T + 1.11113*T*T) / 3600.0 * transform.Deg2Rad
}
