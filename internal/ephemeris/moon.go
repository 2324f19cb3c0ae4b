package ephemeris

import (
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// lunarTerm multiplies the Delaunay arguments D, M, M', F. Coefficients are
// in 1e-6 degrees (longitude, latitude) or 1e-3 km (distance).
type lunarTerm struct {
	d, m, mp, f int8
	coef        float64
}

var moonLongitudeTerms = [...]lunarTerm{
	{0, 0, 1, 0, 6288774},
	{2, 0, -1, 0, 1274027},
	{2, 0, 0, 0, 658314},
	{0, 0, 2, 0, 213618},
	{0, 1, 0, 0, -185116},
	{0, 0, 0, 2, -114332},
	{2, 0, -2, 0, 58793},
	{2, -1, -1, 0, 57066},
	{2, 0, 1, 0, 53322},
	{2, -1, 0, 0, 45758},
	{0, 1, -1, 0, -40923},
	{1, 0, 0, 0, -34720},
	{0, 1, 1, 0, -30383},
	{2, 0, 0, -2, 15327},
	{0, 0, 1, 2, -12528},
	{0, 0, 1, -2, 10980},
	{4, 0, -1, 0, 10675},
	{0, 0, 3, 0, 10034},
	{4, 0, -2, 0, 8548},
	{2, 1, -1, 0, -7888},
	{2, 1, 0, 0, -6766},
	{1, 0, -1, 0, -5163},
	{1, 1, 0, 0, 4987},
	{2, -1, 1, 0, 4036},
	{2, 0, 2, 0, 3994},
	{4, 0, 0, 0, 3861},
	{2, 0, -3, 0, 3665},
	{0, 1, -2, 0, -2689},
	{2, 0, -1, 2, -2602},
	{2, -1, -2, 0, 2390},
	{1, 0, 1, 0, -2348},
	{2, -2, 0, 0, 2236},
	{0, 1, 2, 0, -2120},
	{0, 2, 0, 0, -2069},
	{2, -2, -1, 0, 2048},
	{2, 0, 1, -2, -1773},
	{2, 0, 0, 2, -1595},
	{4, -1, -1, 0, 1215},
	{0, 0, 2, 2, -1110},
	{3, 0, -1, 0, -892},
	{2, 1, 1, 0, -810},
	{4, -1, -2, 0, 759},
	{0, 2, -1, 0, -713},
	{2, 2, -1, 0, -700},
	{2, 1, -2, 0, 691},
	{2, -1, 0, -2, 596},
	{4, 0, 1, 0, 549},
	{0, 0, 4, 0, 537},
	{4, -1, 0, 0, 520},
	{1, 0, -2, 0, -487},
	{2, 1, 0, -2, -399},
	{0, 0, 2, -2, -381},
	{1, 1, 1, 0, 351},
	{3, 0, -2, 0, -340},
	{4, 0, -3, 0, 330},
	{2, -1, 2, 0, 327},
	{0, 2, 1, 0, -323},
	{1, 1, -1, 0, 299},
	{2, 0, 3, 0, 294},
}

var moonLatitudeTerms = [...]lunarTerm{
	{0, 0, 0, 1, 5128122},
	{0, 0, 1, 1, 280602},
	{0, 0, 1, -1, 277693},
	{2, 0, 0, -1, 173237},
	{2, 0, -1, 1, 55413},
	{2, 0, -1, -1, 46271},
	{2, 0, 0, 1, 32573},
	{0, 0, 2, 1, 17198},
	{2, 0, 1, -1, 9266},
	{0, 0, 2, -1, 8822},
	{2, -1, 0, -1, 8216},
	{2, 0, -2, -1, 4324},
	{2, 0, 1, 1, 4200},
	{2, 1, 0, -1, -3359},
	{2, -1, -1, 1, 2463},
	{2, -1, 0, 1, 2211},
	{2, -1, -1, -1, 2065},
	{0, 1, -1, -1, -1870},
	{4, 0, -1, -1, 1828},
	{0, 1, 0, 1, -1794},
	{0, 0, 0, 3, -1749},
	{0, 1, -1, 1, -1565},
	{1, 0, 0, 1, -1491},
	{0, 1, 1, 1, -1475},
	{0, 1, 1, -1, -1410},
	{0, 1, 0, -1, -1344},
	{1, 0, 0, -1, -1335},
	{0, 0, 3, 1, 1107},
	{4, 0, 0, -1, 1021},
	{4, 0, -1, 1, 833},
	{0, 0, 1, -3, 777},
	{4, 0, -2, 1, 671},
	{2, 0, 0, -3, 607},
	{2, 0, 2, -1, 596},
	{2, -1, 1, -1, 491},
	{2, 0, -2, 1, -451},
	{0, 0, 3, -1, 439},
	{2, 0, 2, 1, 422},
	{2, 0, -3, -1, 421},
	{2, 1, -1, 1, -366},
	{2, 1, 0, 1, -351},
	{4, 0, 0, 1, 331},
	{2, -1, 1, 1, 315},
	{2, -2, 0, -1, 302},
	{0, 0, 1, 3, -283},
	{2, 1, 1, -1, -229},
	{1, 1, 0, -1, 223},
	{1, 1, 0, 1, 223},
	{0, 1, -2, -1, -220},
	{2, 1, -1, -1, -220},
	{1, 0, 1, 1, -185},
	{2, -1, -2, -1, 181},
	{0, 1, 2, 1, -177},
	{4, 0, -2, -1, 176},
	{4, -1, -1, -1, 166},
	{1, 0, 1, -1, -164},
	{4, 0, 1, -1, 132},
	{1, 0, -1, -1, -119},
	{4, -1, 0, -1, 115},
	{2, -2, 0, 1, 107},
}

// Cosine terms for distance.
var moonDistanceTerms = [...]lunarTerm{
	{0, 0, 1, 0, -20905355},
	{2, 0, -1, 0, -3699111},
	{2, 0, 0, 0, -2955968},
	{0, 0, 2, 0, -569925},
	{0, 1, 0, 0, 48888},
	{0, 0, 0, 2, -3149},
	{2, 0, -2, 0, 246158},
	{2, -1, -1, 0, -152138},
	{2, 0, 1, 0, -170733},
	{2, -1, 0, 0, -204586},
	{0, 1, -1, 0, -129620},
	{1, 0, 0, 0, 108743},
	{0, 1, 1, 0, 104755},
	{2, 0, 0, -2, 10321},
	{0, 0, 1, -2, 79661},
	{4, 0, -1, 0, -34782},
	{0, 0, 3, 0, -23210},
	{4, 0, -2, 0, -21636},
	{2, 1, -1, 0, 24208},
	{2, 1, 0, 0, 30824},
	{1, 0, -1, 0, -8379},
	{1, 1, 0, 0, -16675},
	{2, -1, 1, 0, -12831},
	{2, 0, 2, 0, -10445},
	{4, 0, 0, 0, -11650},
	{2, 0, -3, 0, 14403},
	{0, 1, -2, 0, -7003},
	{2, -1, -2, 0, 10056},
	{1, 0, 1, 0, 6322},
	{2, -2, 0, 0, -9884},
}

const kmPerAU = 149597870.7

// moonGeocentric returns the Moon's geometric ecliptic longitude and
// latitude (radians, mean equinox of date) and distance (AU).
func moonGeocentric(T float64) (lon, lat, dist float64) {
	T2, T3, T4 := T*T, T*T*T, T*T*T*T

	Lp := 218.3164477 + 481267.88123421*T - 0.0015786*T2 + T3/538841.0 - T4/65194000.0
	D := (297.8501921 + 445267.1114034*T - 0.0018819*T2 + T3/545868.0 - T4/113065000.0) * transform.Deg2Rad
	M := (357.5291092 + 35999.0502909*T - 0.0001536*T2 + T3/24490000.0) * transform.Deg2Rad
	Mp := (134.9633964 + 477198.8675055*T + 0.0087414*T2 + T3/69699.0 - T4/14712000.0) * transform.Deg2Rad
	F := (93.2720950 + 483202.0175233*T - 0.0036539*T2 - T3/3526000.0 + T4/863310000.0) * transform.Deg2Rad

	A1 := (119.75 + 131.849*T) * transform.Deg2Rad
	A2 := (53.09 + 479264.290*T) * transform.Deg2Rad
	A3 := (313.45 + 481266.484*T) * transform.Deg2Rad
	E := 1 - 0.002516*T - 0.0000074*T2
	LpR := Lp * transform.Deg2Rad

	arg := func(t lunarTerm) float64 {
		return float64(t.d)*D + float64(t.m)*M + float64(t.mp)*Mp + float64(t.f)*F
	}
	// Terms in M are scaled by the decreasing eccentricity of Earth's orbit.
	ecc := func(t lunarTerm) float64 {
		switch t.m {
		case 1, -1:
			return E
		case 2, -2:
			return E * E
		}
		return 1
	}

	var sl, sb, sr float64
	for _, t := range moonLongitudeTerms {
		sl += t.coef * ecc(t) * math.Sin(arg(t))
	}
	for _, t := range moonLatitudeTerms {
		sb += t.coef * ecc(t) * math.Sin(arg(t))
	}
	for _, t := range moonDistanceTerms {
		sr += t.coef * ecc(t) * math.Cos(arg(t))
	}

	sl += 3958*math.Sin(A1) + 1962*math.Sin(LpR-F) + 318*math.Sin(A2)
	sb += -2235*math.Sin(LpR) + 382*math.Sin(A3) +
		175*math.Sin(A1-F) + 175*math.Sin(A1+F) +
		127*math.Sin(LpR-Mp) - 115*math.Sin(LpR+Mp)

	lon = transform.NormalizeRadians((Lp + sl/1e6) * transform.Deg2Rad)
	lat = sb / 1e6 * transform.Deg2Rad
	dist = (385000.56 + sr/1000) / kmPerAU
	return lon, lat, dist
}
