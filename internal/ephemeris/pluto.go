package ephemeris

import (
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// plutoTerm holds one periodic term in the mean longitudes of Jupiter,
// Saturn and Pluto. Longitude and latitude coefficients are 1e-6 degrees,
// radius 1e-7 AU. Valid 1885 to 2099.
type plutoTerm struct {
	j, s, p    int8
	lonA, lonB float64
	latA, latB float64
	radA, radB float64
}

var plutoTerms = [...]plutoTerm{
	{0, 0, 1, -19799805, 19850055, -5452852, -14974862, 66865439, 68951812},
	{0, 0, 2, 897144, -4954829, 3527812, 1672790, -11827535, -332538},
	{0, 0, 3, 611149, 1211027, -1050748, 327647, 1593179, -1438890},
	{0, 0, 4, -341243, -189585, 178690, -292153, -18444, 483220},
	{0, 0, 5, 129027, -34863, 18650, 100340, -65977, -85431},
	{0, 0, 6, -38215, 31061, -30594, -25823, 31174, -6032},
	{0, 1, -1, 20349, -9886, 4965, 11263, -5794, 22161},
	{0, 1, 0, -4045, -4904, 310, -132, 4601, 4032},
	{0, 1, 1, -5885, -3238, 2036, -947, -1729, 234},
	{0, 1, 2, -3812, 3011, -2, -674, -415, 702},
	{0, 1, 3, -601, 3468, -329, -563, 239, 723},
	{0, 2, -2, 1237, 463, -64, 39, -67, -67},
	{0, 2, -1, 1086, -911, -94, 210, 1034, -451},
	{0, 2, 0, 595, -1229, -8, -160, -129, 504},
	{1, -1, 0, 2484, -485, -177, 259, 480, -231},
	{1, -1, 1, 839, -1414, 17, 234, 2, -441},
	{1, 0, -3, -964, 1059, 582, -285, -3359, 265},
	{1, 0, -2, -2303, -1038, -298, 692, 7856, -7832},
	{1, 0, -1, 7049, 747, 157, 201, 36, 45763},
	{1, 0, 0, 1179, -358, 304, 825, 8663, 8547},
	{1, 0, 1, 393, -63, -124, -29, -809, -769},
	{1, 0, 2, 111, -268, 15, 8, 263, -144},
	{1, 0, 3, -52, -154, 7, 15, -126, 32},
	{1, 0, 4, -78, -30, 2, 2, -35, -16},
	{1, 1, -3, -34, -26, 4, 2, -19, -4},
	{1, 1, -2, -43, 1, 3, 0, -15, 8},
	{1, 1, -1, -15, 21, 1, -1, -4, 12},
	{1, 1, 0, -1, 15, 0, -2, 5, 6},
	{1, 1, 1, 4, 7, 1, 0, 3, 1},
	{1, 1, 3, 1, 5, 1, -1, 6, -2},
	{2, 0, -6, 8, 3, -2, -3, 2, 2},
	{2, 0, -5, -3, 6, 1, 2, -2, -2},
	{2, 0, -4, 6, -13, -8, 2, 14, 13},
	{2, 0, -3, 10, 22, 10, -7, -63, 13},
	{2, 0, -2, -57, -32, 0, 21, 136, -236},
	{2, 0, -1, 157, -46, 8, 5, 273, 1065},
	{2, 0, 0, 12, -18, 13, 16, 251, 149},
	{2, 0, 1, -4, 8, -2, -3, -25, -9},
	{2, 0, 2, -5, 0, 0, 0, 9, -2},
	{2, 0, 3, 3, 4, 0, 1, -8, 7},
	{3, 0, -2, -1, -1, 0, 1, 2, -10},
	{3, 0, -1, 6, -3, 0, 0, 19, 35},
	{3, 0, 0, -1, -2, 0, 1, 10, 3},
}

// plutoHeliocentric returns Pluto's heliocentric ecliptic longitude and
// latitude (radians, J2000) and radius (AU).
func plutoHeliocentric(T float64) (lon, lat, r float64) {
	J := (34.35 + 3034.9057*T) * transform.Deg2Rad
	S := (50.08 + 1222.1138*T) * transform.Deg2Rad
	P := (238.96 + 144.9600*T) * transform.Deg2Rad

	var sl, sb, sr float64
	for _, t := range plutoTerms {
		a := float64(t.j)*J + float64(t.s)*S + float64(t.p)*P
		sinA, cosA := math.Sincos(a)
		sl += t.lonA*sinA + t.lonB*cosA
		sb += t.latA*sinA + t.latB*cosA
		sr += t.radA*sinA + t.radB*cosA
	}

	lon = transform.NormalizeRadians((238.958116 + 144.96*T + sl*1e-6) * transform.Deg2Rad)
	lat = (-3.908239 + sb*1e-6) * transform.Deg2Rad
	r = 40.7241346 + sr*1e-7
	return lon, lat, r
}
