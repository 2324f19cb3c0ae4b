package transform

import (
	"math"
	"time"
)

// unixEpochJD is the Julian Date of 1970-01-01T00:00:00Z.
const unixEpochJD = 2440587.5

// Instant is the single independent variable of every celestial computation.
// JD is the UTC-based Julian date the caller supplied; UT1 and TT are derived
// from it once and never change.
type Instant struct {
	JD     float64 `json:"jd"`      // UTC Julian date
	UT1    float64 `json:"ut1"`     // UT1 Julian date (drives sidereal time)
	TT     float64 `json:"tt"`      // Terrestrial Time Julian date (drives ephemerides)
	DeltaT float64 `json:"delta_t"` // TT - UT1 in seconds
}

// NewInstant builds an Instant from a wall-clock time in any location.
func NewInstant(t time.Time) Instant {
	return InstantFromJD(JulianDate(t.UTC()))
}

// InstantFromJD builds an Instant from a UTC-based Julian date.
func InstantFromJD(jd float64) Instant {
	year, month, _ := CalendarFromJD(jd)
	ut1 := jd + DUT1(jd)/86400.0
	dt := DeltaT(year, month)
	return Instant{
		JD:     jd,
		UT1:    ut1,
		TT:     ut1 + dt/86400.0,
		DeltaT: dt,
	}
}

// Time returns the UTC wall-clock time of the instant.
func (i Instant) Time() time.Time {
	return TimeFromJD(i.JD)
}

// CenturiesTT returns Julian centuries of TT since J2000.0.
func (i Instant) CenturiesTT() float64 {
	return (i.TT - j2000) / 36525.0
}

// GMST returns Greenwich mean sidereal time in radians for the instant's UT1.
func (i Instant) GMST() float64 {
	return SiderealRadians(i.UT1)
}

// Add returns the instant shifted by a number of days.
func (i Instant) Add(days float64) Instant {
	return InstantFromJD(i.JD + days)
}

// TimeFromJD converts a UTC Julian date to time.Time.
func TimeFromJD(jd float64) time.Time {
	ms := math.Round((jd - unixEpochJD) * 86400000.0)
	return time.UnixMilli(int64(ms)).UTC()
}

// CalendarFromJD converts a Julian date to a Gregorian/Julian calendar date
// (Meeus ch. 7). Day carries the fraction of the day.
func CalendarFromJD(jd float64) (year, month int, day float64) {
	jd += 0.5
	z := math.Floor(jd)
	f := jd - z

	a := z
	if z >= 2299161 {
		alpha := math.Floor((z - 1867216.25) / 36524.25)
		a = z + 1 + alpha - math.Floor(alpha/4)
	}

	b := a + 1524
	c := math.Floor((b - 122.1) / 365.25)
	d := math.Floor(365.25 * c)
	e := math.Floor((b - d) / 30.6001)

	day = b - d - math.Floor(30.6001*e) + f
	if e < 14 {
		month = int(e) - 1
	} else {
		month = int(e) - 13
	}
	if month > 2 {
		year = int(c) - 4716
	} else {
		year = int(c) - 4715
	}
	return year, month, day
}

// DUT1 returns a smooth model of UT1 - UTC in seconds, clamped to ±0.9s.
// It follows the recent IERS trend with annual, semi-annual and Chandler terms.
func DUT1(jd float64) float64 {
	y := (jd - 2458849.5) / 365.25 // years since 2020-01-01
	twoPi := 2 * math.Pi

	v := -0.177 + 0.0001*y - 0.00002*y*y +
		0.022*math.Sin(twoPi*y) + 0.012*math.Cos(twoPi*y) +
		0.006*math.Sin(2*twoPi*y) + 0.007*math.Cos(2*twoPi*y) +
		0.003*math.Sin(twoPi*y/(433.0/365.25))

	return math.Max(-0.9, math.Min(0.9, v))
}

// DeltaT returns TT - UT in seconds using the Espenak-Meeus polynomials.
func DeltaT(year, month int) float64 {
	y := float64(year) + (float64(month)-0.5)/12.0

	switch {
	case y < -500:
		u := (y - 1820) / 100
		return -20 + 32*u*u
	case y < 500:
		u := y / 100
		return 10583.6 - 1014.41*u + 33.78311*u*u - 5.952053*pow(u, 3) -
			0.1798452*pow(u, 4) + 0.022174192*pow(u, 5) + 0.0090316521*pow(u, 6)
	case y < 1600:
		u := (y - 1000) / 100
		return 1574.2 - 556.01*u + 71.23472*u*u + 0.319781*pow(u, 3) -
			0.8503463*pow(u, 4) - 0.005050998*pow(u, 5) + 0.0083572073*pow(u, 6)
	case y < 1700:
		t := y - 1600
		return 120 - 0.9808*t - 0.01532*t*t + pow(t, 3)/7129
	case y < 1800:
		t := y - 1700
		return 8.83 + 0.1603*t - 0.0059285*t*t + 0.00013336*pow(t, 3) - pow(t, 4)/1174000
	case y < 1860:
		t := y - 1800
		return 13.72 - 0.332447*t + 0.0068612*t*t + 0.0041116*pow(t, 3) -
			0.00037436*pow(t, 4) + 0.0000121272*pow(t, 5) -
			0.0000001699*pow(t, 6) + 0.000000000875*pow(t, 7)
	case y < 1900:
		t := y - 1860
		return 7.62 + 0.5737*t - 0.251754*t*t + 0.01680668*pow(t, 3) -
			0.0004473624*pow(t, 4) + pow(t, 5)/233174
	case y < 1920:
		t := y - 1900
		return -2.79 + 1.494119*t - 0.0598939*t*t + 0.0061966*pow(t, 3) - 0.000197*pow(t, 4)
	case y < 1941:
		t := y - 1920
		return 21.20 + 0.84493*t - 0.0761*t*t + 0.0020936*pow(t, 3)
	case y < 1961:
		t := y - 1950
		return 29.07 + 0.407*t - t*t/233 + pow(t, 3)/2547
	case y < 1986:
		t := y - 1975
		return 45.45 + 1.067*t - t*t/260 - pow(t, 3)/718
	case y < 2005:
		t := y - 2000
		return 63.86 + 0.3345*t - 0.060374*t*t + 0.0017275*pow(t, 3) +
			0.000651814*pow(t, 4) + 0.00002373599*pow(t, 5)
	case y < 2050:
		t := y - 2000
		return 62.92 + 0.32217*t + 0.005589*t*t
	case y < 2150:
		u := (y - 1820) / 100
		return -20 + 32*u*u - 0.5628*(2150-y)
	default:
		u := (y - 1820) / 100
		return -20 + 32*u*u
	}
}

func pow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}
