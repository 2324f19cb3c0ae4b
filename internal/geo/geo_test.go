package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", Point{51.5, -0.1}, Point{51.5, -0.1}, 0, 1e-9},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111.19, 0.1},
		{"London to Paris", Point{51.5074, -0.1278}, Point{48.8566, 2.3522}, 343.5, 1.0},
		{"across dateline", Point{0, 179.5}, Point{0, -179.5}, 111.19, 0.1},
		{"antipodes", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusKm, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Haversine = %.3f km, want %.3f km", got, tt.want)
			}
		})
	}
}

func TestEquirectangular_CloseToHaversine(t *testing.T) {
	a := Point{45, 10}
	for _, b := range []Point{{46, 10}, {45, 12}, {47, 13}, {44, 179.5 - 170}} {
		h := Haversine(a, b)
		e := Equirectangular(a, b)
		if math.Abs(h-e)/h > 0.01 {
			t.Errorf("Equirectangular(%v, %v) = %.2f, haversine %.2f", a, b, e, h)
		}
	}
	// Antimeridian-aware.
	if d := Equirectangular(Point{0, 179.9}, Point{0, -179.9}); d > 25 {
		t.Errorf("Equirectangular across dateline = %.2f, want ~22", d)
	}
}

// TestDestination verifies travelling then measuring recovers the distance.
func TestDestination(t *testing.T) {
	origin := Point{40.7128, -74.006}
	for _, brg := range []float64{0, 45, 90, 180, 270, 333} {
		for _, dist := range []float64{100, 1000, 5000} {
			p := Destination(origin, brg, dist)
			if got := Haversine(origin, p); math.Abs(got-dist) > 1e-6 {
				t.Errorf("Destination(%v, %v) distance = %.6f, want %v", brg, dist, got, dist)
			}
			if p.Lng <= -180 || p.Lng > 180 {
				t.Errorf("Destination(%v, %v) lng = %v out of range", brg, dist, p.Lng)
			}
		}
	}

	north := Destination(Point{0, 0}, 0, 111.19492664455873)
	if math.Abs(north.Lat-1) > 1e-9 || math.Abs(north.Lng) > 1e-9 {
		t.Errorf("Destination north = %v, want {1 0}", north)
	}
}

func TestCrossTrack(t *testing.T) {
	// A point one degree north of an equatorial segment.
	xt, at := CrossTrack(Point{1, 5}, Point{0, 0}, Point{0, 10})
	if math.Abs(xt-111.19) > 0.1 {
		t.Errorf("cross-track = %.3f, want 111.19", xt)
	}
	if math.Abs(at-5*111.19) > 1 {
		t.Errorf("along-track = %.3f, want %.3f", at, 5*111.19)
	}

	// Behind the start.
	_, at = CrossTrack(Point{0, -3}, Point{0, 0}, Point{0, 10})
	if at >= 0 {
		t.Errorf("along-track behind start = %.3f, want negative", at)
	}
}

func TestDistanceToSegment(t *testing.T) {
	tests := []struct {
		name    string
		p, a, b Point
		want    float64
		tol     float64
	}{
		{"perpendicular", Point{1, 5}, Point{0, 0}, Point{0, 10}, 111.19, 0.1},
		{"past end clamps to endpoint", Point{0, 12}, Point{0, 0}, Point{0, 10}, 2 * 111.19, 0.1},
		{"before start clamps to endpoint", Point{0, -1}, Point{0, 0}, Point{0, 10}, 111.19, 0.1},
		{"meridian segment", Point{10, 1}, Point{-70, 0}, Point{70, 0}, 109.5, 0.5},
		{"segment across dateline", Point{1, 180}, Point{0, 179}, Point{0, -179}, 111.19, 0.2},
		{"dateline point on far side", Point{0, -179.5}, Point{0, 179}, Point{0, -179}, 0, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceToSegment(tt.p, tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceToSegment = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

func TestDistanceToPolyline(t *testing.T) {
	line := []Point{{0, 0}, {0, 10}, {10, 10}, {10, 20}}

	if got := DistanceToPolyline(Point{5, 10.5}, line, nil); math.Abs(got-0.5*111.19*math.Cos(5*math.Pi/180)) > 1 {
		t.Errorf("distance to middle segment = %.3f", got)
	}

	// With a break between points 1 and 2 the vertical segment disappears.
	withBreak := DistanceToPolyline(Point{5, 10.5}, line, []int{2})
	if withBreak < 500 {
		t.Errorf("distance with break = %.3f, want > 500", withBreak)
	}

	if got := DistanceToPolyline(Point{0, 0}, nil, nil); !math.IsInf(got, 1) {
		t.Errorf("empty polyline distance = %v, want +Inf", got)
	}
	if got := DistanceToPolyline(Point{0, 1}, []Point{{0, 0}}, nil); math.Abs(got-111.19) > 0.1 {
		t.Errorf("single point distance = %.3f, want 111.19", got)
	}
}

func TestBBox(t *testing.T) {
	b := BoundsOf([]Point{{10, 10}, {20, 20}}, 111.32)
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside", Point{15, 15}, true},
		{"inside buffer", Point{20.5, 20.5}, true},
		{"far north", Point{40, 15}, false},
		{"far west", Point{15, -30}, false},
	}
	for _, tt := range tests {
		if got := b.MightContain(tt.p); got != tt.want {
			t.Errorf("%s: MightContain(%v) = %v, want %v", tt.name, tt.p, got, tt.want)
		}
	}

	// A run crossing the antimeridian wraps instead of spanning the globe.
	w := BoundsOf([]Point{{0, 175}, {1, 179}, {2, -178}, {3, -175}}, 0)
	if w.MinLng != 175 || w.MaxLng != -175 {
		t.Fatalf("wrapped extent = [%v, %v], want [175, -175]", w.MinLng, w.MaxLng)
	}
	if !w.MightContain(Point{1, 180}) || !w.MightContain(Point{1, -176}) {
		t.Error("wrapped box misses points near the antimeridian")
	}
	if w.MightContain(Point{1, 0}) {
		t.Error("wrapped box contains the prime meridian")
	}

	// Points just inside the buffer distance are never rejected.
	line := BoundsOf([]Point{{0, 0}, {0, 10}}, 500)
	for _, bearing := range []float64{0, 180} {
		p := Destination(Point{0, 5}, bearing, 499.7)
		if d := Haversine(Point{0, 5}, p); d > 500 {
			t.Fatalf("test point %v is %.3f km away", p, d)
		}
		if !line.MightContain(p) {
			t.Errorf("MightContain(%v) = false at 499.7 km, want true", p)
		}
	}

	if !BoundsOf(nil, 10).MightContain(Point{-89, 3}) {
		t.Error("empty bounds must contain everything")
	}
}

func TestAround(t *testing.T) {
	b := Around(Point{0, 179}, 300)
	if !b.Contains(Point{0, -179}) {
		t.Errorf("Around across dateline = %+v, missing {0 -179}", b)
	}
	if b.Contains(Point{0, 170}) {
		t.Errorf("Around = %+v contains {0 170}", b)
	}
	polar := Around(Point{89.5, 0}, 200)
	if polar.MinLng != -180 || polar.MaxLng != 180 {
		t.Errorf("polar Around = %+v, want full longitude range", polar)
	}
}

func TestSimplify(t *testing.T) {
	straight := []Point{{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}}
	if got := Simplify(straight, 0.1); len(got) != 2 {
		t.Errorf("Simplify(straight) kept %d points, want 2", len(got))
	}

	kinked := []Point{{0, 0}, {2.5, 1}, {5, 2}, {2.5, 3}, {0, 4}}
	got := Simplify(kinked, 0.1)
	if len(got) != 3 || got[1] != (Point{5, 2}) {
		t.Errorf("Simplify(kinked) = %v, want apex kept", got)
	}

	if got := Simplify(kinked, 0); len(got) != len(kinked) {
		t.Errorf("Simplify with zero tolerance kept %d, want %d", len(got), len(kinked))
	}
}

func TestCentroid(t *testing.T) {
	if c := Centroid([]Point{{0, 0}, {10, 20}}); c != (Point{5, 10}) {
		t.Errorf("Centroid = %v, want {5 10}", c)
	}
	if c := Centroid(nil); c != (Point{}) {
		t.Errorf("Centroid(nil) = %v, want zero", c)
	}
}
