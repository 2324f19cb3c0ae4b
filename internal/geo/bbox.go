package geo

import (
	"math"
	"sort"
)

// BBox is a latitude/longitude box padded by a buffer. When MinLng > MaxLng
// the box wraps across the antimeridian.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	BufferDeg      float64
}

// Everywhere is the box that contains every point.
var Everywhere = BBox{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}

// BoundsOf returns the bounding box of pts padded by bufferKm. The box is
// conservative: the buffer uses the degree length of the haversine sphere
// and is widened in longitude by the cosine of the highest latitude it
// reaches.
func BoundsOf(pts []Point, bufferKm float64) BBox {
	if len(pts) == 0 {
		return Everywhere
	}

	b := BBox{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLng: math.Inf(1), MaxLng: math.Inf(-1),
	}
	for _, p := range pts {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	b.BufferDeg = bufferKm / kmPerDegree

	// A run that hugs both edges of the map is treated as wrapping. Its
	// extent is recomputed from the largest longitude gap.
	if b.MaxLng-b.MinLng > 180 {
		b.MinLng, b.MaxLng = wrappedExtent(pts)
	}
	return b
}

// wrappedExtent finds the smallest longitude arc covering pts and returns
// it as (start, end) with start > end when the arc crosses ±180.
func wrappedExtent(pts []Point) (float64, float64) {
	lngs := make([]float64, len(pts))
	for i, p := range pts {
		lngs[i] = p.Lng
	}
	sort.Float64s(lngs)

	gap, at := 360-(lngs[len(lngs)-1]-lngs[0]), len(lngs)-1
	for i := 1; i < len(lngs); i++ {
		if g := lngs[i] - lngs[i-1]; g > gap {
			gap, at = g, i-1
		}
	}
	if at == len(lngs)-1 {
		return lngs[0], lngs[len(lngs)-1]
	}
	return lngs[at+1], lngs[at]
}

// MightContain reports whether p could lie within the buffer of the box.
// False is definitive; true needs an exact distance check.
func (b BBox) MightContain(p Point) bool {
	if p.Lat < b.MinLat-b.BufferDeg || p.Lat > b.MaxLat+b.BufferDeg {
		return false
	}

	// Longitude degrees shrink toward the poles.
	lat := math.Min(89, math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))+b.BufferDeg)
	lngBuf := b.BufferDeg / math.Cos(lat*math.Pi/180)
	if lngBuf >= 180 {
		return true
	}

	lo, hi := b.MinLng-lngBuf, b.MaxLng+lngBuf
	if b.MinLng > b.MaxLng {
		return p.Lng >= lo || p.Lng <= hi
	}
	return (p.Lng >= lo && p.Lng <= hi) ||
		(p.Lng+360 >= lo && p.Lng+360 <= hi) ||
		(p.Lng-360 >= lo && p.Lng-360 <= hi)
}

// Contains reports whether p is inside the unpadded box.
func (b BBox) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.MinLng > b.MaxLng {
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Around returns an unpadded box covering a radius around center.
func Around(center Point, radiusKm float64) BBox {
	dLat := radiusKm / kmPerDegree
	b := BBox{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
	}
	maxAbs := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	if maxAbs >= 89.9 {
		b.MinLng, b.MaxLng = -180, 180
		return b
	}
	dLng := dLat / math.Cos(maxAbs*math.Pi/180)
	if dLng >= 180 {
		b.MinLng, b.MaxLng = -180, 180
		return b
	}
	b.MinLng = NewPoint(0, center.Lng-dLng).Lng
	b.MaxLng = NewPoint(0, center.Lng+dLng).Lng
	return b
}
