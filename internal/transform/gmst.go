package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// J2000 is exported for packages that measure centuries from the epoch.
const J2000 = j2000

// gregorianStart is the first Julian day number of the Gregorian calendar
// (1582-10-15).
const gregorianStart = 2299161

// JulianDay returns the Julian date of a calendar date (Meeus eq. 7.1).
// Dates before 1582-10-15 are read in the Julian calendar. day may carry a
// fraction.
func JulianDay(year, month int, day float64) float64 {
	y, m := float64(year), float64(month)
	if month <= 2 {
		y--
		m += 12
	}
	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + day - 1524.5
	if jd+0.5 >= gregorianStart {
		a := math.Floor(y / 100)
		jd += 2 - a + math.Floor(a/4)
	}
	return jd
}

// JulianDate converts a time to a UTC Julian date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	frac := (float64(t.Hour()) +
		float64(t.Minute())/60 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600) / 24
	return JulianDay(t.Year(), int(t.Month()), float64(t.Day())+frac)
}

// GMST returns IAU-82 Greenwich mean sidereal time in radians [0, 2π),
// treating t as UT1 (Vallado eq. 3-47). The sidereal angles used by the
// line and chart engines come from SiderealDegrees; this form is kept for
// cross-checks against SGP4 tooling.
func GMST(t time.Time) float64 {
	T := (JulianDate(t) - j2000) / 36525.0

	// Seconds of time; 876600h is 3155760000 s.
	sec := 67310.54841 + (3155760000.0+8640184.812866)*T + 0.093104*T*T - 6.2e-6*T*T*T
	return NormalizeRadians(sec / 86400.0 * 2 * math.Pi)
}

// SiderealDegrees returns Greenwich mean sidereal time in degrees [0, 360)
// for a UT1 Julian date (Meeus eq. 12.4).
//
//	θ = 280.46061837 + 360.98564736629*(JD-2451545) + 0.000387933*T² - T³/38710000
func SiderealDegrees(jdUT1 float64) float64 {
	d := jdUT1 - j2000
	T := d / 36525.0
	theta := 280.46061837 + 360.98564736629*d + 0.000387933*T*T - T*T*T/38710000.0
	return NormalizeDegrees(theta)
}

// SiderealRadians is SiderealDegrees in radians [0, 2π).
func SiderealRadians(jdUT1 float64) float64 {
	return SiderealDegrees(jdUT1) * Deg2Rad
}

// LocalSidereal returns local mean sidereal time in radians [0, 2π) for a
// Greenwich sidereal angle and an east-positive longitude in degrees.
func LocalSidereal(gmstRad, lngDeg float64) float64 {
	return NormalizeRadians(gmstRad + lngDeg*Deg2Rad)
}
