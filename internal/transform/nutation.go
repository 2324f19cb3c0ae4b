package transform

import "math"

// Nutation holds nutation in longitude and obliquity, in degrees.
type Nutation struct {
	DeltaPsi float64
	DeltaEps float64
}

// nutationTerm is one row of the truncated IAU 1980 series.
// Coefficients are in units of 0.0001 arcsecond.
type nutationTerm struct {
	l, lp, f, d, om     float64
	sin, sinT, cos, cosT float64
}

// The 13 largest IAU 1980 terms; they carry the series to about 0.5".
var nutationTerms = [...]nutationTerm{
	{0, 0, 0, 0, 1, -171996, -174.2, 92025, 8.9},
	{0, 0, 2, -2, 2, -13187, -1.6, 5736, -3.1},
	{0, 0, 2, 0, 2, -2274, -0.2, 977, -0.5},
	{0, 0, 0, 0, 2, 2062, 0.2, -895, 0.5},
	{0, 1, 0, 0, 0, 1426, -3.4, 54, -0.1},
	{1, 0, 0, 0, 0, 712, 0.1, -7, 0},
	{0, 1, 2, -2, 2, -517, 1.2, 224, -0.6},
	{0, 0, 2, 0, 1, -386, -0.4, 200, 0},
	{1, 0, 2, 0, 2, -301, 0, 129, -0.1},
	{0, -1, 2, -2, 2, 217, -0.5, -95, 0.3},
	{1, 0, 0, -2, 0, -158, 0, -1, 0},
	{0, 0, 2, -2, 1, 129, 0.1, -70, 0},
	{-1, 0, 2, 0, 2, 123, 0, -53, 0},
}

// ComputeNutation evaluates the truncated nutation series at a TT Julian date.
func ComputeNutation(jde float64) Nutation {
	T := (jde - j2000) / 36525.0
	T2 := T * T
	T3 := T2 * T
	T4 := T3 * T

	// Delaunay arguments in arcseconds (IERS 2003).
	l := 485868.249036 + 1717915923.2178*T + 31.8792*T2 + 0.051635*T3 - 0.00024470*T4
	lp := 1287104.79305 + 129596581.0481*T - 0.5532*T2 + 0.000136*T3 - 0.00001149*T4
	f := 335779.526232 + 1739527262.8478*T - 12.7512*T2 - 0.001037*T3 + 0.00000417*T4
	d := 1072260.70369 + 1602961601.2090*T - 6.3706*T2 + 0.006593*T3 - 0.00003169*T4
	om := 450160.398036 - 6962890.5431*T + 7.4722*T2 + 0.007702*T3 - 0.00005939*T4

	l = math.Mod(l, 1296000) * arcsec2Rad
	lp = math.Mod(lp, 1296000) * arcsec2Rad
	f = math.Mod(f, 1296000) * arcsec2Rad
	d = math.Mod(d, 1296000) * arcsec2Rad
	om = math.Mod(om, 1296000) * arcsec2Rad

	var dpsi, deps float64
	for _, t := range nutationTerms {
		arg := t.l*l + t.lp*lp + t.f*f + t.d*d + t.om*om
		dpsi += (t.sin + t.sinT*T) * math.Sin(arg)
		deps += (t.cos + t.cosT*T) * math.Cos(arg)
	}

	return Nutation{
		DeltaPsi: dpsi * 0.0001 / 3600.0,
		DeltaEps: deps * 0.0001 / 3600.0,
	}
}

// MeanObliquity returns the mean obliquity of the ecliptic in degrees at a
// TT Julian date (IAU 2006 polynomial).
func MeanObliquity(jde float64) float64 {
	T := (jde - j2000) / 36525.0
	eps := 84381.406 -
		46.836769*T -
		0.0001831*T*T +
		0.00200340*T*T*T -
		0.000000576*T*T*T*T -
		0.0000000434*T*T*T*T*T
	return eps / 3600.0
}
