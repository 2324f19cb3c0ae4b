package geo

import "math"

// Simplify reduces a polyline with the Douglas-Peucker algorithm. The
// tolerance is planar, in degrees (0.1° is about 11 km at the equator).
// Endpoints are always kept.
func Simplify(pts []Point, tolerance float64) []Point {
	if len(pts) <= 2 || tolerance <= 0 {
		out := make([]Point, len(pts))
		copy(out, pts)
		return out
	}

	keep := make([]bool, len(pts))
	keep[0], keep[len(pts)-1] = true, true
	simplifyRange(pts, 0, len(pts)-1, tolerance, keep)

	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func simplifyRange(pts []Point, first, last int, tolerance float64, keep []bool) {
	if last-first < 2 {
		return
	}
	maxDist, maxIdx := 0.0, 0
	for i := first + 1; i < last; i++ {
		if d := perpendicular(pts[i], pts[first], pts[last]); d > maxDist {
			maxDist, maxIdx = d, i
		}
	}
	if maxDist <= tolerance {
		return
	}
	keep[maxIdx] = true
	simplifyRange(pts, first, maxIdx, tolerance, keep)
	simplifyRange(pts, maxIdx, last, tolerance, keep)
}

// perpendicular is the planar distance in degrees from p to the line a-b.
func perpendicular(p, a, b Point) float64 {
	dx := b.Lng - a.Lng
	dy := b.Lat - a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lng-a.Lng, p.Lat-a.Lat)
	}
	num := math.Abs(dy*p.Lng - dx*p.Lat + b.Lng*a.Lat - b.Lat*a.Lng)
	return num / math.Hypot(dx, dy)
}

// Centroid returns the arithmetic mean of the points, or the zero Point.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var lat, lng float64
	for _, p := range pts {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(pts))
	return Point{Lat: lat / n, Lng: lng / n}
}
