package transform

import "math"

// kappa is the constant of aberration in radians (20.49552").
const kappa = 20.49552 * arcsec2Rad

// Aberration returns the annual aberration corrections to right ascension
// and declination (radians) for a position at a TT Julian date, using the
// true obliquity eps in radians (Meeus eq. 23.3, e-terms included).
func Aberration(ra, dec, jde, eps float64) (dRA, dDec float64) {
	T := (jde - j2000) / 36525.0

	L0 := 280.46646 + 36000.76983*T + 0.0003032*T*T
	M := (357.52911 + 35999.05029*T - 0.0001537*T*T) * Deg2Rad
	e := 0.016708634 - 0.000042037*T - 0.0000001267*T*T
	C := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(M) +
		(0.019993-0.000101*T)*math.Sin(2*M) +
		0.000289*math.Sin(3*M)
	sun := (L0 + C) * Deg2Rad
	pi := (102.93735 + 1.71946*T + 0.00046*T*T) * Deg2Rad

	cosDec := math.Cos(dec)
	if math.Abs(cosDec) < 1e-12 {
		return 0, 0
	}

	sinA, cosA := math.Sincos(ra)
	sinS, cosS := math.Sincos(sun)
	sinP, cosP := math.Sincos(pi)
	cosE := math.Cos(eps)
	sinD := math.Sin(dec)
	tanE := math.Tan(eps)

	dRA = -kappa*(cosA*cosS*cosE+sinA*sinS)/cosDec +
		e*kappa*(cosA*cosP*cosE+sinA*sinP)/cosDec
	dDec = -kappa*(cosS*cosE*(tanE*cosDec-sinA*sinD)+cosA*sinD*sinS) +
		e*kappa*(cosP*cosE*(tanE*cosDec-sinA*sinD)+cosA*sinD*sinP)
	return dRA, dDec
}
