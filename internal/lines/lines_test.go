package lines

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

const deg = transform.Deg2Rad

// TestMeridianIndependentOfSpan verifies the span changes which points are
// emitted, never the longitude.
func TestMeridianIndependentOfSpan(t *testing.T) {
	ra, gmst := 2.1, 4.7
	wide := DefaultOptions()
	narrow := DefaultOptions()
	narrow.MinLat, narrow.MaxLat = -30, 10

	for _, angle := range []Angle{MC, IC} {
		a := meridianLine(ephemeris.Sun, angle, ra, gmst, wide)
		b := meridianLine(ephemeris.Sun, angle, ra, gmst, narrow)
		if *a.Longitude != *b.Longitude {
			t.Errorf("%v longitude = %v vs %v", angle, *a.Longitude, *b.Longitude)
		}
		for _, p := range b.Points {
			if p.Lng != *a.Longitude {
				t.Errorf("%v point lng = %v, want %v", angle, p.Lng, *a.Longitude)
			}
			if p.Lat < -30 || p.Lat > 10 {
				t.Errorf("%v point lat %v outside span", angle, p.Lat)
			}
		}
		if len(a.Points) != 71 {
			t.Errorf("%v wide points = %d, want 71", angle, len(a.Points))
		}
	}
}

func TestMCICLongitude(t *testing.T) {
	tests := []struct {
		ra, gmst float64 // degrees
		wantMC   float64
		wantIC   float64
	}{
		{100, 40, 60, -120},
		{10, 350, 20, -160},
		{200, 10, -170, 10},
		{180, 0, 180, 0},
	}
	for _, tt := range tests {
		mc := MCLongitude(tt.ra*deg, tt.gmst*deg)
		ic := ICLongitude(tt.ra*deg, tt.gmst*deg)
		if math.Abs(transform.AngleDiff(tt.wantMC, mc)) > 1e-9 {
			t.Errorf("MCLongitude(%v, %v) = %v, want %v", tt.ra, tt.gmst, mc, tt.wantMC)
		}
		if math.Abs(transform.AngleDiff(tt.wantIC, ic)) > 1e-9 {
			t.Errorf("ICLongitude(%v, %v) = %v, want %v", tt.ra, tt.gmst, ic, tt.wantIC)
		}
		if mc <= -180 || mc > 180 {
			t.Errorf("MCLongitude out of range: %v", mc)
		}
	}
}

// TestHorizonPointsOnHorizon verifies every horizon point has altitude 0
// and that longitudes never decrease.
func TestHorizonPointsOnHorizon(t *testing.T) {
	tests := []struct {
		name     string
		ra, dec  float64 // degrees
		gmst     float64
		wantStep float64
	}{
		{"summer sun", 90, 23.4, 0, 1},
		{"southern body", 250, -27, 1.3, 1},
		{"near equator", 10, 3, 5.9, 0.5},
		{"high dec", 300, 60, 2.2, 1},
	}
	opts := DefaultOptions()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra, dec := tt.ra*deg, tt.dec*deg
			asc, dsc := horizonLines(ephemeris.Mars, ra, dec, tt.gmst, opts)
			for _, l := range []Line{asc, dsc} {
				if len(l.Points) == 0 {
					t.Fatalf("%v: no points", l.Angle)
				}
				for i, p := range l.Points {
					if alt := transform.Altitude(p.Lat, p.Lng, ra, dec, tt.gmst); math.Abs(alt) > 1e-6 {
						t.Errorf("%v point %d (%v, %v) altitude = %v, want 0", l.Angle, i, p.Lat, p.Lng, alt)
					}
					if i > 0 && p.Lng < l.Points[i-1].Lng {
						t.Errorf("%v point %d lng %v < previous %v", l.Angle, i, p.Lng, l.Points[i-1].Lng)
					}
					if i > 0 && l.Points[i-1].Lng != p.Lng && p.Lng-l.Points[i-1].Lng < tt.wantStep-1e-9 {
						t.Errorf("%v step %v, want %v", l.Angle, p.Lng-l.Points[i-1].Lng, tt.wantStep)
					}
				}
				for _, p := range l.Points {
					rising := Rising(ra, tt.gmst, p.Lng)
					if rising != (l.Angle == ASC) {
						t.Errorf("%v point at lng %v has rising=%v", l.Angle, p.Lng, rising)
					}
				}
			}
		})
	}
}

// TestRisingAtLondonLatitude covers a body at RA 6h, Dec +23.4° seen from
// 51.5°N: it rises, and the rising curve has one point per longitude step.
func TestRisingAtLondonLatitude(t *testing.T) {
	ra, dec, gmst := math.Pi/2, 23.4*deg, 0.0

	if _, ok := LongitudeAtLatitude(ra, dec, gmst, 51.5, ASC); !ok {
		t.Fatal("rising has no solution at 51.5°N")
	}
	if _, ok := LongitudeAtLatitude(ra, dec, gmst, 51.5, DSC); !ok {
		t.Fatal("setting has no solution at 51.5°N")
	}

	asc, _ := horizonLines(ephemeris.Sun, ra, dec, gmst, DefaultOptions())
	seen := make(map[float64]bool)
	for _, p := range asc.Points {
		if seen[p.Lng] {
			t.Fatalf("duplicate rising longitude %v", p.Lng)
		}
		seen[p.Lng] = true
	}
	if n := len(asc.Points); n < 179 || n > 181 {
		t.Errorf("rising points = %d, want ~180 (one per 1° step over half the globe)", n)
	}

	// Circumpolar above 90° − δ.
	if _, ok := LongitudeAtLatitude(ra, dec, gmst, 70, ASC); ok {
		t.Error("body should be circumpolar at 70°N")
	}
}

func TestHorizonEquatorialBody(t *testing.T) {
	if _, ok := HorizonLatitude(1.0, 0, 0.3, 45); ok {
		t.Error("HorizonLatitude with dec 0 should have no single solution")
	}
	// Hour angle exactly 90°: every latitude is on the horizon.
	ra, gmst := 0.0, math.Pi/2
	if !AllLatitudesOnHorizon(ra, 0, gmst, 0) {
		t.Error("AllLatitudesOnHorizon = false at H = 90°")
	}
	if AllLatitudesOnHorizon(ra, 0, gmst, 30) {
		t.Error("AllLatitudesOnHorizon = true at H = 120°")
	}
}

func TestSegmentBreaks(t *testing.T) {
	pts := []geo.Point{
		{Lat: 10, Lng: 0}, {Lat: 11, Lng: 1}, {Lat: 70, Lng: 2}, // latitude jump
		{Lat: 71, Lng: 3}, {Lat: 72, Lng: 9}, // longitude gap
		{Lat: 73, Lng: 10},
	}
	got := segmentBreaks(pts, 1, 45)
	want := []int{2, 4}
	if len(got) != len(want) {
		t.Fatalf("segmentBreaks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segmentBreaks = %v, want %v", got, want)
		}
	}
}

// TestParanConditionsHold verifies each reported paran satisfies both of
// its conditions at the reported latitude.
func TestParanConditionsHold(t *testing.T) {
	positions := []ephemeris.Position{
		{Body: ephemeris.Sun, RA: 80 * deg, Dec: 23 * deg},
		{Body: ephemeris.Moon, RA: 200 * deg, Dec: -12 * deg},
		{Body: ephemeris.Venus, RA: 40 * deg, Dec: 15 * deg},
		{Body: ephemeris.Mars, RA: 260 * deg, Dec: -24 * deg},
	}
	gmst := 1.1
	parans, err := Parans(context.Background(), positions, gmst, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	if len(parans) == 0 {
		t.Fatal("no parans found")
	}

	byBody := make(map[ephemeris.Body]ephemeris.Position)
	for _, p := range positions {
		byBody[p.Body] = p
	}
	for _, p := range parans {
		if p.Point {
			continue
		}
		b1, b2 := byBody[p.Body1], byBody[p.Body2]
		l1, ok1 := LongitudeAtLatitude(b1.RA, b1.Dec, gmst, p.Lat, p.Angle1)
		l2, ok2 := LongitudeAtLatitude(b2.RA, b2.Dec, gmst, p.Lat, p.Angle2)
		if !ok1 || !ok2 {
			t.Errorf("paran %v/%v %v/%v at %v: condition has no solution", p.Body1, p.Angle1, p.Body2, p.Angle2, p.Lat)
			continue
		}
		if d := math.Abs(transform.AngleDiff(l1, l2)); d >= paranCrossingTol {
			t.Errorf("paran %v/%v %v/%v at %v: longitudes %v and %v differ by %v",
				p.Body1, p.Angle1, p.Body2, p.Angle2, p.Lat, l1, l2, d)
		}
		if p.Lat < -paranMaxLat || p.Lat > paranMaxLat {
			t.Errorf("paran latitude %v outside scan range", p.Lat)
		}
	}
}

// TestRunMinima verifies each separate band under the tolerance yields its
// own closest sample.
func TestRunMinima(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name string
		vals []float64
		want []int
	}{
		{"none", []float64{2, 3, inf}, nil},
		{"single band", []float64{2, 0.8, 0.1, 0.6, 2}, []int{2}},
		{"two bands", []float64{0.5, 0.2, 1.5, inf, 0.9, 0.3, 0.4}, []int{1, 5}},
		{"no solution splits a band", []float64{0.4, inf, 0.3}, []int{0, 2}},
		{"tie keeps first", []float64{0.2, 0.2, 3}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runMinima(tt.vals, 1); !slices.Equal(got, tt.want) {
				t.Errorf("runMinima(%v) = %v, want %v", tt.vals, got, tt.want)
			}
		})
	}
}

func TestParanMeridianPoint(t *testing.T) {
	positions := []ephemeris.Position{
		{Body: ephemeris.Sun, RA: 100 * deg, Dec: 20 * deg},
		{Body: ephemeris.Jupiter, RA: 101 * deg, Dec: -5 * deg},
	}
	parans, err := Parans(context.Background(), positions, 0, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, p := range parans {
		if p.Point && p.Angle1 == MC && p.Angle2 == MC {
			t.Errorf("MC/MC is not a checked pair: %+v", p)
		}
		if p.Point {
			found = true
			if p.Lat != 0 {
				t.Errorf("point paran lat = %v, want 0", p.Lat)
			}
		}
	}
	// Sun MC at 100°, Jupiter IC at -79°: no MC/IC point paran.
	if found {
		t.Error("unexpected meridian point paran for lines 179° apart")
	}

	positions[1].RA = 281 * deg // Jupiter IC now 1° from Sun MC
	parans, _ = Parans(context.Background(), positions, 0, 0.25)
	found = false
	for _, p := range parans {
		if p.Point {
			found = true
		}
	}
	if !found {
		t.Error("expected a meridian point paran")
	}
}

func TestCompassDirection(t *testing.T) {
	tests := []struct {
		az   float64
		want string
	}{
		{0, "N"}, {359, "N"}, {22.4, "N"}, {22.5, "NE"}, {90, "E"},
		{135, "SE"}, {180, "S"}, {225, "SW"}, {270, "W"}, {315, "NW"}, {-10, "N"}, {720, "N"},
	}
	for _, tt := range tests {
		if got := CompassDirection(tt.az); got != tt.want {
			t.Errorf("CompassDirection(%v) = %q, want %q", tt.az, got, tt.want)
		}
	}
}

func TestRatings(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"saturn asc", BaseRating(ephemeris.Saturn, ASC), 1},
		{"venus dsc", BaseRating(ephemeris.Venus, DSC), 5},
		{"pluto ic", BaseRating(ephemeris.Pluto, IC), 1},
		{"moon ic", BaseRating(ephemeris.Moon, IC), 5},
		{"trine caps at 5", AspectRating(5, Trine), 5},
		{"sextile raises", AspectRating(3, Sextile), 4},
		{"square floors at 1", AspectRating(1, Square), 1},
		{"square lowers", AspectRating(4, Square), 3},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestAspectCoordinatesEcliptic(t *testing.T) {
	eps := 23.44 * deg
	pos := ephemeris.Position{Lon: 0, RA: 0, Dec: 0}
	ra, dec := aspectCoordinates(pos, 90, AspectModeEcliptic, eps)
	if math.Abs(ra-math.Pi/2) > 1e-9 {
		t.Errorf("ra = %v, want π/2", ra)
	}
	if math.Abs(dec-eps) > 1e-9 {
		t.Errorf("dec = %v, want %v", dec, eps)
	}

	pos = ephemeris.Position{RA: 350 * deg, Dec: 12 * deg}
	ra, dec = aspectCoordinates(pos, 60, AspectModeRA, eps)
	if math.Abs(ra-50*deg) > 1e-9 || dec != 12*deg {
		t.Errorf("ra mode = (%v, %v), want (50°, 12°)", ra*transform.Rad2Deg, dec*transform.Rad2Deg)
	}
}

// TestGenerate runs the full generator on the baseline tier.
func TestGenerate(t *testing.T) {
	inst := transform.NewInstant(time.Date(1990, 6, 15, 14, 30, 0, 0, time.UTC))
	res, err := Generate(context.Background(), ephemeris.NewBaseline(), inst, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	n := len(ephemeris.AllBodies)
	if len(res.Lines) != 4*n {
		t.Errorf("lines = %d, want %d", len(res.Lines), 4*n)
	}
	if want := 4 * len(LineAspects) * 2 * n; len(res.AspectLines) != want {
		t.Errorf("aspect lines = %d, want %d", len(res.AspectLines), want)
	}
	if len(res.Zeniths) != n {
		t.Errorf("zeniths = %d, want %d", len(res.Zeniths), n)
	}
	if res.Tiers.Baseline != n || res.Tiers.Precision != 0 {
		t.Errorf("tiers = %+v", res.Tiers)
	}
	if len(res.Parans) == 0 {
		t.Error("no parans")
	}

	for _, l := range res.Lines {
		if l.Rating != BaseRating(l.Body, l.Angle) {
			t.Errorf("%v %v rating = %d", l.Body, l.Angle, l.Rating)
		}
	}
	for _, z := range res.Zeniths {
		var mc *Line
		for i := range res.Lines {
			if res.Lines[i].Body == z.Body && res.Lines[i].Angle == MC {
				mc = &res.Lines[i]
			}
		}
		if mc == nil || *mc.Longitude != z.Lng {
			t.Errorf("%v zenith lng %v not on MC line", z.Body, z.Lng)
		}
	}
}

func TestGenerateOptions(t *testing.T) {
	inst := transform.NewInstant(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))
	res, err := Generate(context.Background(), ephemeris.NewBaseline(), inst, Options{
		Bodies:     []ephemeris.Body{ephemeris.Sun, ephemeris.Moon},
		NoAspects:  true,
		NoParans:   true,
		AspectMode: AspectModeEcliptic,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 8 || len(res.AspectLines) != 0 || len(res.Parans) != 0 {
		t.Errorf("lines=%d aspects=%d parans=%d", len(res.Lines), len(res.AspectLines), len(res.Parans))
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, ephemeris.NewBaseline(), transform.NewInstant(time.Now()), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLocalSpace(t *testing.T) {
	origin := geo.Point{Lat: 40.7128, Lng: -74.006}
	inst := transform.NewInstant(time.Date(1985, 3, 3, 9, 0, 0, 0, time.UTC))
	res, err := LocalSpace(context.Background(), ephemeris.NewBaseline(), inst, origin, LocalSpaceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != len(ephemeris.AllBodies) {
		t.Fatalf("lines = %d", len(res.Lines))
	}
	for _, l := range res.Lines {
		if l.Points[0] != origin {
			t.Errorf("%v first point = %v, want origin", l.Body, l.Points[0])
		}
		if len(l.Points) != 76 {
			t.Errorf("%v points = %d, want 76", l.Body, len(l.Points))
		}
		if l.Direction != CompassDirection(l.Azimuth) {
			t.Errorf("%v direction %q for azimuth %v", l.Body, l.Direction, l.Azimuth)
		}
		brg := geo.Bearing(origin, l.Points[1]) * transform.Rad2Deg
		if d := math.Abs(transform.AngleDiff(l.Azimuth, brg)); d > 0.01 {
			t.Errorf("%v initial bearing %v, want azimuth %v", l.Body, brg, l.Azimuth)
		}
		if d := geo.Haversine(origin, l.Points[5]); math.Abs(d-1000) > 1 {
			t.Errorf("%v point 5 at %v km, want 1000", l.Body, d)
		}
	}
}
