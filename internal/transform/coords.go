package transform

import "math"

// Angle conversion factors.
const (
	Deg2Rad = math.Pi / 180.0
	Rad2Deg = 180.0 / math.Pi
)

// arcsec2Rad converts arcseconds to radians.
const arcsec2Rad = Deg2Rad / 3600.0

// NormalizeDegrees maps an angle into [0, 360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d
}

// NormalizeRadians maps an angle into [0, 2π).
func NormalizeRadians(r float64) float64 {
	r = math.Mod(r, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r
}

// SignedRadians maps an angle into (-π, π].
func SignedRadians(r float64) float64 {
	r = NormalizeRadians(r)
	if r > math.Pi {
		r -= 2 * math.Pi
	}
	return r
}

// NormalizeLongitude maps a geographic longitude into (-180, 180].
func NormalizeLongitude(lng float64) float64 {
	lng = NormalizeDegrees(lng)
	if lng > 180.0 {
		lng -= 360.0
	}
	return lng
}

// AngleDiff returns the shortest signed angular difference to - from in
// degrees, in (-180, 180].
func AngleDiff(from, to float64) float64 {
	return NormalizeLongitude(to - from)
}

// EclipticToEquatorial converts ecliptic longitude/latitude to right
// ascension/declination. All angles in radians; ra is in [0, 2π).
func EclipticToEquatorial(lon, lat, eps float64) (ra, dec float64) {
	sinEps, cosEps := math.Sincos(eps)
	sinLon, cosLon := math.Sincos(lon)
	sinLat, cosLat := math.Sincos(lat)

	ra = math.Atan2(sinLon*cosEps-math.Tan(lat)*sinEps, cosLon)
	dec = math.Asin(clamp1(sinLat*cosEps + cosLat*sinEps*sinLon))
	return NormalizeRadians(ra), dec
}

// EquatorialToEcliptic converts right ascension/declination to ecliptic
// longitude/latitude. All angles in radians; lon is in [0, 2π).
func EquatorialToEcliptic(ra, dec, eps float64) (lon, lat float64) {
	sinEps, cosEps := math.Sincos(eps)
	sinRA, cosRA := math.Sincos(ra)
	sinDec, cosDec := math.Sincos(dec)

	lon = math.Atan2(sinRA*cosEps+math.Tan(dec)*sinEps, cosRA)
	lat = math.Asin(clamp1(sinDec*cosEps - cosDec*sinEps*sinRA))
	return NormalizeRadians(lon), lat
}

// PrecessFromJ2000 precesses J2000.0 equatorial coordinates to the mean
// equator and equinox of jde (Meeus eq. 21.3, IAU 1976 angles).
func PrecessFromJ2000(ra, dec, jde float64) (float64, float64) {
	t := (jde - j2000) / 36525.0
	t2 := t * t
	t3 := t2 * t

	zeta := (2306.2181*t + 0.30188*t2 + 0.017998*t3) * arcsec2Rad
	z := (2306.2181*t + 1.09468*t2 + 0.018203*t3) * arcsec2Rad
	theta := (2004.3109*t - 0.42665*t2 - 0.041833*t3) * arcsec2Rad

	sinTh, cosTh := math.Sincos(theta)
	sinDec, cosDec := math.Sincos(dec)
	sinA, cosA := math.Sincos(ra + zeta)

	A := cosDec * sinA
	B := cosTh*cosDec*cosA - sinTh*sinDec
	C := sinTh*cosDec*cosA + cosTh*sinDec

	return NormalizeRadians(math.Atan2(A, B) + z), math.Asin(clamp1(C))
}

func clamp1(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
