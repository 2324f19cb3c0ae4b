// Package geo provides spherical-earth geodesy for line tracing and scoring:
// great-circle distances, destination points, point-to-polyline distance
// with antimeridian handling, bounding boxes and polyline simplification.
package geo

import (
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// EarthRadiusKm is the mean Earth radius used for all distance math.
const EarthRadiusKm = 6371.0

// kmPerDegree is the great-circle length of one degree on the EarthRadiusKm
// sphere: a degree of latitude, or of longitude at the equator.
const kmPerDegree = EarthRadiusKm * math.Pi / 180

// Point is a geographic coordinate in degrees. Lng lies in (-180, 180].
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint returns a Point with its longitude normalized.
func NewPoint(lat, lng float64) Point {
	return Point{Lat: lat, Lng: transform.NormalizeLongitude(lng)}
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * transform.Deg2Rad
	lat2 := b.Lat * transform.Deg2Rad
	dLat := (b.Lat - a.Lat) * transform.Deg2Rad
	dLng := (b.Lng - a.Lng) * transform.Deg2Rad

	s1 := math.Sin(dLat / 2)
	s2 := math.Sin(dLng / 2)
	h := s1*s1 + math.Cos(lat1)*math.Cos(lat2)*s2*s2
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Equirectangular is a cheap planar distance estimate in km, accurate to
// about 1% below 500 km at mid latitudes. It is used only for rejection.
func Equirectangular(a, b Point) float64 {
	cosLat := math.Cos((a.Lat + b.Lat) / 2 * transform.Deg2Rad)
	dx := transform.AngleDiff(a.Lng, b.Lng) * cosLat
	dy := b.Lat - a.Lat
	return kmPerDegree * math.Sqrt(dx*dx+dy*dy)
}

// Bearing returns the initial great-circle bearing from a to b in radians.
func Bearing(a, b Point) float64 {
	lat1 := a.Lat * transform.Deg2Rad
	lat2 := b.Lat * transform.Deg2Rad
	dLng := (b.Lng - a.Lng) * transform.Deg2Rad
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	return math.Atan2(y, x)
}

// Destination returns the point reached by travelling distKm from origin
// along the great circle with the given initial bearing (degrees).
func Destination(origin Point, bearingDeg, distKm float64) Point {
	lat1 := origin.Lat * transform.Deg2Rad
	lng1 := origin.Lng * transform.Deg2Rad
	brg := bearingDeg * transform.Deg2Rad
	d := distKm / EarthRadiusKm

	sinLat1, cosLat1 := math.Sincos(lat1)
	sinD, cosD := math.Sincos(d)

	sinLat2 := sinLat1*cosD + cosLat1*sinD*math.Cos(brg)
	lat2 := math.Asin(clamp(sinLat2, -1, 1))
	lng2 := lng1 + math.Atan2(math.Sin(brg)*sinD*cosLat1, cosD-sinLat1*sinLat2)

	return NewPoint(lat2*transform.Rad2Deg, lng2*transform.Rad2Deg)
}

// CrossTrack returns the cross-track distance (unsigned) of p from the
// great circle through a and b, and the signed along-track distance from a
// to p's projection, both in km.
func CrossTrack(p, a, b Point) (xt, at float64) {
	d13 := Haversine(a, p) / EarthRadiusKm
	theta := Bearing(a, p) - Bearing(a, b)

	dxt := math.Asin(clamp(math.Sin(d13)*math.Sin(theta), -1, 1))

	cosXT := math.Cos(dxt)
	if math.Abs(cosXT) < 1e-10 {
		cosXT = math.Copysign(1e-10, cosXT)
	}
	dat := math.Acos(clamp(math.Cos(d13)/cosXT, -1, 1))
	if math.Cos(theta) < 0 {
		dat = -dat
	}
	return math.Abs(dxt) * EarthRadiusKm, dat * EarthRadiusKm
}

// DistanceToSegment returns the distance from p to the great-circle segment
// a-b in km. A segment whose endpoints straddle the antimeridian is split
// at ±180 so each half is measured on its own side.
func DistanceToSegment(p, a, b Point) float64 {
	if math.Abs(b.Lng-a.Lng) > 180 {
		crossLat, crossLng := datelineCrossing(a, b)
		otherLng := 180.0
		if crossLng == 180 {
			otherLng = -180
		}
		d1 := distanceToSegment(p, a, Point{Lat: crossLat, Lng: crossLng})
		d2 := distanceToSegment(p, Point{Lat: crossLat, Lng: otherLng}, b)
		return math.Min(d1, d2)
	}
	return distanceToSegment(p, a, b)
}

func distanceToSegment(p, a, b Point) float64 {
	xt, at := CrossTrack(p, a, b)
	switch {
	case at < 0:
		return Haversine(p, a)
	case at > Haversine(a, b):
		return Haversine(p, b)
	default:
		return xt
	}
}

// datelineCrossing interpolates the latitude where a-b crosses ±180 and
// reports which side (180 or -180) a reaches first.
func datelineCrossing(a, b Point) (lat, lng float64) {
	bLng := a.Lng + transform.AngleDiff(a.Lng, b.Lng)
	lng = -180.0
	if bLng > a.Lng {
		lng = 180.0
	}
	t := (lng - a.Lng) / (bLng - a.Lng)
	return a.Lat + t*(b.Lat-a.Lat), lng
}

// DistanceToPolyline returns the minimum distance in km from p to a
// polyline. Segments that end at a break index are skipped: breaks[i] = k
// means points k-1 and k are not connected. An empty polyline is +Inf away.
func DistanceToPolyline(p Point, pts []Point, breaks []int) float64 {
	switch len(pts) {
	case 0:
		return math.Inf(1)
	case 1:
		return Haversine(p, pts[0])
	}

	min := math.Inf(1)
	bi := 0
	for i := 1; i < len(pts); i++ {
		for bi < len(breaks) && breaks[bi] < i {
			bi++
		}
		if bi < len(breaks) && breaks[bi] == i {
			// Disconnected: measure the vertex alone.
			if d := Haversine(p, pts[i]); d < min {
				min = d
			}
			continue
		}
		if d := DistanceToSegment(p, pts[i-1], pts[i]); d < min {
			min = d
		}
	}
	if d := Haversine(p, pts[0]); d < min {
		min = d
	}
	return min
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
