package ephemeris

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/soniakeys/meeus/v3/pluto"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// separation returns the angle between two equatorial directions in
// arcminutes.
func separation(ra1, dec1, ra2, dec2 float64) float64 {
	c := math.Sin(dec1)*math.Sin(dec2) + math.Cos(dec1)*math.Cos(dec2)*math.Cos(ra1-ra2)
	return math.Acos(math.Max(-1, math.Min(1, c))) * transform.Rad2Deg * 60
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		in      string
		want    Body
		wantErr bool
	}{
		{"sun", Sun, false},
		{"Moon", Moon, false},
		{" JUPITER ", Jupiter, false},
		{"north_node", NorthNode, false},
		{"northnode", NorthNode, false},
		{"true_node", NorthNode, false},
		{"chiron", Chiron, false},
		{"vulcan", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBody(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownBody) {
					t.Fatalf("ParseBody(%q) error = %v, want ErrUnknownBody", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBody(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseBody(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBodiesEmptyMeansAll(t *testing.T) {
	got, err := ParseBodies(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(AllBodies) {
		t.Errorf("len = %d, want %d", len(got), len(AllBodies))
	}
}

func TestBodyTextRoundTrip(t *testing.T) {
	for _, b := range AllBodies {
		text, err := b.MarshalText()
		if err != nil {
			t.Fatalf("%v.MarshalText: %v", b, err)
		}
		var got Body
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != b {
			t.Errorf("round trip %v = %v", b, got)
		}
	}
	if _, err := Body(99).MarshalText(); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("Body(99).MarshalText error = %v, want ErrUnknownBody", err)
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"", TierBaseline, false},
		{"baseline", TierBaseline, false},
		{"Precision", TierPrecision, false},
		{"exact", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseTier(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseTier(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestBaselineSunAtCardinalPoints verifies the Sun's apparent longitude at
// the 2024 equinox and solstice.
func TestBaselineSunAtCardinalPoints(t *testing.T) {
	tests := []struct {
		name    string
		at      time.Time
		wantLon float64
	}{
		{"march equinox", time.Date(2024, 3, 20, 3, 6, 0, 0, time.UTC), 0},
		{"june solstice", time.Date(2024, 6, 20, 20, 51, 0, 0, time.UTC), 90},
		{"september equinox", time.Date(2024, 9, 22, 12, 44, 0, 0, time.UTC), 180},
		{"december solstice", time.Date(2024, 12, 21, 9, 21, 0, 0, time.UTC), 270},
	}

	b := NewBaseline()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.Position(context.Background(), transform.NewInstant(tt.at), Sun)
			if err != nil {
				t.Fatal(err)
			}
			if d := math.Abs(transform.AngleDiff(tt.wantLon, p.Lon)); d > 0.05 {
				t.Errorf("sun lon = %.4f, want %.1f (off by %.4f°)", p.Lon, tt.wantLon, d)
			}
			if math.Abs(p.Lat) > 0.01 {
				t.Errorf("sun lat = %.5f, want ~0", p.Lat)
			}
			if p.Distance < 0.98 || p.Distance > 1.02 {
				t.Errorf("sun distance = %.4f AU", p.Distance)
			}
			if p.Tier != TierBaseline {
				t.Errorf("tier = %v, want baseline", p.Tier)
			}
		})
	}
}

// TestBaselineMoonMeeusExample checks the Moon against Meeus example 47.a
// (1992 April 12, 0h TD).
func TestBaselineMoonMeeusExample(t *testing.T) {
	f := NewFrame(transform.Instant{TT: 2448724.5})
	ps, err := NewBaseline().PositionsInFrame(f, []Body{Moon})
	if err != nil {
		t.Fatal(err)
	}
	m := ps[0]

	if d := math.Abs(transform.AngleDiff(133.167265, m.Lon)); d > 0.01 {
		t.Errorf("moon lon = %.6f, want 133.167265", m.Lon)
	}
	if math.Abs(m.Lat-(-3.229126)) > 0.01 {
		t.Errorf("moon lat = %.6f, want -3.229126", m.Lat)
	}
	if km := m.Distance * kmPerAU; math.Abs(km-368409.7) > 50 {
		t.Errorf("moon distance = %.1f km, want 368409.7", km)
	}
	wantRA, wantDec := 134.688470, 13.768368
	if sep := separation(m.RA, m.Dec, wantRA*transform.Deg2Rad, wantDec*transform.Deg2Rad); sep > 1 {
		t.Errorf("moon RA/Dec off by %.2f′", sep)
	}
}

// TestCrossTierMoon verifies baseline and precision agree on the Moon
// within 5 arcminutes. The lunar precision tier needs no data files.
func TestCrossTierMoon(t *testing.T) {
	ctx := context.Background()
	base := NewBaseline()
	prec := NewPrecision("", testLogger())

	for _, at := range []time.Time{
		time.Date(1955, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1990, 4, 15, 14, 30, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 5, 6, 0, 0, 0, time.UTC),
		time.Date(2040, 2, 29, 23, 0, 0, 0, time.UTC),
	} {
		inst := transform.NewInstant(at)
		b, err := base.Position(ctx, inst, Moon)
		if err != nil {
			t.Fatal(err)
		}
		p, err := prec.Position(ctx, inst, Moon)
		if err != nil {
			t.Fatal(err)
		}
		if p.Tier != TierPrecision {
			t.Errorf("precision moon tier = %v", p.Tier)
		}
		if sep := separation(b.RA, b.Dec, p.RA, p.Dec); sep > 5 {
			t.Errorf("%s: moon baseline vs precision = %.2f′, want < 5′", at.Format(time.RFC3339), sep)
		}
	}
}

// TestCrossTierVSOP compares every VSOP87-backed body. It runs only when
// ACG_VSOP87_DIR points at the VSOP87B files.
func TestCrossTierVSOP(t *testing.T) {
	dir := os.Getenv("ACG_VSOP87_DIR")
	if dir == "" {
		t.Skip("ACG_VSOP87_DIR not set")
	}
	ctx := context.Background()
	base := NewBaseline()
	prec := NewPrecision(dir, testLogger())
	if err := prec.Warm(); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	bodies := []Body{Sun, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}
	for _, at := range []time.Time{
		time.Date(1985, 10, 3, 8, 0, 0, 0, time.UTC),
		time.Date(2010, 6, 21, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 15, 18, 0, 0, 0, time.UTC),
	} {
		inst := transform.NewInstant(at)
		bp, err := base.Positions(ctx, inst, bodies)
		if err != nil {
			t.Fatal(err)
		}
		pp, err := prec.Positions(ctx, inst, bodies)
		if err != nil {
			t.Fatal(err)
		}
		for i := range bodies {
			if sep := separation(bp[i].RA, bp[i].Dec, pp[i].RA, pp[i].Dec); sep > 5 {
				t.Errorf("%s %v: baseline vs precision = %.2f′, want < 5′",
					at.Format("2006-01-02"), bodies[i], sep)
			}
		}
	}
}

// TestPlutoSeries verifies the heliocentric series against the meeus
// implementation of the same theory.
func TestPlutoSeries(t *testing.T) {
	for _, jde := range []float64{2448908.5, 2451545.0, 2460000.5} {
		T := (jde - transform.J2000) / 36525.0
		lon, lat, r := plutoHeliocentric(T)
		wl, wb, wr := pluto.Heliocentric(jde)

		if d := math.Abs(transform.AngleDiff(wl.Deg(), lon*transform.Rad2Deg)); d > 1e-4 {
			t.Errorf("jde %.1f: lon = %.6f, want %.6f", jde, lon*transform.Rad2Deg, wl.Deg())
		}
		if d := math.Abs(lat*transform.Rad2Deg - wb.Deg()); d > 1e-4 {
			t.Errorf("jde %.1f: lat = %.6f, want %.6f", jde, lat*transform.Rad2Deg, wb.Deg())
		}
		if math.Abs(r-wr) > 0.01 {
			t.Errorf("jde %.1f: r = %.5f, want %.5f", jde, r, wr)
		}
	}
}

// TestBaselineOuterBodies sanity-checks Pluto, Chiron and the node.
func TestBaselineOuterBodies(t *testing.T) {
	inst := transform.NewInstant(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	ps, err := NewBaseline().Positions(context.Background(), inst, []Body{Pluto, Chiron, NorthNode})
	if err != nil {
		t.Fatal(err)
	}

	// Pluto near 11° Sagittarius at J2000.
	if d := math.Abs(transform.AngleDiff(251.5, ps[0].Lon)); d > 1 {
		t.Errorf("pluto lon = %.3f, want ~251.5", ps[0].Lon)
	}
	if ps[0].Distance < 29 || ps[0].Distance > 32 {
		t.Errorf("pluto distance = %.2f AU", ps[0].Distance)
	}

	if math.Abs(ps[1].Lat) > 8 {
		t.Errorf("chiron lat = %.3f, want within orbital inclination", ps[1].Lat)
	}
	if ps[1].Distance < 7 || ps[1].Distance > 20 {
		t.Errorf("chiron distance = %.2f AU", ps[1].Distance)
	}

	// True node stays within 2° of the mean node (125.04° at J2000).
	if d := math.Abs(transform.AngleDiff(125.04, ps[2].Lon)); d > 2 {
		t.Errorf("node lon = %.3f, want within 2° of mean node", ps[2].Lon)
	}
	if math.Abs(ps[2].Lat) > 1e-6 {
		t.Errorf("node lat = %v, want 0", ps[2].Lat)
	}
}

// TestPositionsOrder verifies results follow the requested order.
func TestPositionsOrder(t *testing.T) {
	bodies := []Body{NorthNode, Mars, Sun, Moon}
	inst := transform.NewInstant(time.Date(2021, 5, 26, 11, 0, 0, 0, time.UTC))
	ps, err := NewBaseline().Positions(context.Background(), inst, bodies)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range bodies {
		if ps[i].Body != b {
			t.Errorf("ps[%d].Body = %v, want %v", i, ps[i].Body, b)
		}
	}
}

func TestBaselineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBaseline().Positions(ctx, transform.NewInstant(time.Now()), AllBodies)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// TestTieredFallback verifies that without VSOP87 data the Moon is served
// at precision and everything else at baseline, with no error.
func TestTieredFallback(t *testing.T) {
	tiered := NewTiered(NewPrecision("", testLogger()), NewBaseline(), testLogger())
	inst := transform.NewInstant(time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC))

	ps, err := tiered.Positions(context.Background(), inst, AllBodies)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(ps) != len(AllBodies) {
		t.Fatalf("len = %d, want %d", len(ps), len(AllBodies))
	}
	for i, p := range ps {
		if p.Body != AllBodies[i] {
			t.Errorf("ps[%d].Body = %v, want %v", i, p.Body, AllBodies[i])
		}
		want := TierBaseline
		if p.Body == Moon {
			want = TierPrecision
		}
		if p.Tier != want {
			t.Errorf("%v tier = %v, want %v", p.Body, p.Tier, want)
		}
	}
}

type failingProvider struct{ Baseline }

func (f *failingProvider) Tier() Tier              { return TierPrecision }
func (f *failingProvider) Supports(body Body) bool { return true }
func (f *failingProvider) Positions(ctx context.Context, inst transform.Instant, bodies []Body) ([]Position, error) {
	return nil, errors.New("backend exploded")
}

// TestTieredPrecisionFailure verifies a failing precise provider degrades
// to baseline instead of erroring.
func TestTieredPrecisionFailure(t *testing.T) {
	tiered := NewTiered(&failingProvider{}, NewBaseline(), testLogger())
	ps, err := tiered.Positions(context.Background(), transform.NewInstant(time.Now()), []Body{Sun, Venus})
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	for _, p := range ps {
		if p.Tier != TierBaseline {
			t.Errorf("%v tier = %v, want baseline", p.Body, p.Tier)
		}
	}
}

func TestTieredUnknownBody(t *testing.T) {
	tiered := NewTiered(NewPrecision("", testLogger()), NewBaseline(), testLogger())
	_, err := tiered.Positions(context.Background(), transform.NewInstant(time.Now()), []Body{Sun, Body(42)})
	if !errors.Is(err, ErrUnknownBody) {
		t.Errorf("error = %v, want ErrUnknownBody", err)
	}
}

func TestPrecisionUnsupported(t *testing.T) {
	prec := NewPrecision("", testLogger())
	for _, b := range []Body{Sun, Chiron, NorthNode} {
		if prec.Supports(b) {
			t.Errorf("Supports(%v) = true without VSOP87 data", b)
		}
	}
	_, err := prec.Position(context.Background(), transform.NewInstant(time.Now()), Chiron)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}
