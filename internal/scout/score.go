package scout

import (
	"cmp"
	"math"
	"slices"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
)

// diminishingWeights apply to the influences ranked by |benefit|. Only the
// first len(diminishingWeights) count, which bounds every score.
var diminishingWeights = [...]float64{1, 0.6, 0.35, 0.2, 0.1, 0.08, 0.05}

const (
	benefitScale    = 10.5 // 50 / (2 · Σweights)
	intensityScale  = 21.0 // 100 / (2 · Σweights)
	volatilityScale = 42.0 // 100 / Σweights
	mixedThreshold  = 0.5

	beneficialAbove  = 52.0
	challengingBelow = 48.0

	neutralBenefit = 50.0
)

// Prepared is a line ready for repeated distance queries: a bounding box
// padded by the scoring radius, and optionally a simplified polyline.
type Prepared struct {
	Body   ephemeris.Body
	Angle  lines.Angle
	Aspect *lines.AspectKind
	Rating int
	Points []geo.Point
	Breaks []int
	BBox   geo.BBox
}

// Prepare builds Prepared lines for a scoring radius. A positive tolerance
// (degrees) simplifies each connected run with Douglas-Peucker.
func Prepare(ls []lines.Line, maxKm, tolerance float64) []Prepared {
	out := make([]Prepared, 0, len(ls))
	for _, l := range ls {
		p := Prepared{
			Body:   l.Body,
			Angle:  l.Angle,
			Rating: l.Rating,
			Points: l.Points,
			Breaks: l.Breaks,
		}
		if l.Aspect != nil {
			kind := l.Aspect.Kind
			p.Aspect = &kind
		}
		if tolerance > 0 {
			p.Points, p.Breaks = simplifyRuns(l.Points, l.Breaks, tolerance)
		}
		p.BBox = geo.BoundsOf(p.Points, maxKm)
		out = append(out, p)
	}
	return out
}

// simplifyRuns simplifies each connected run separately and rebuilds the
// break indices for the shorter polyline.
func simplifyRuns(pts []geo.Point, breaks []int, tolerance float64) ([]geo.Point, []int) {
	var (
		out       []geo.Point
		outBreaks []int
		start     int
	)
	bounds := append(append([]int(nil), breaks...), len(pts))
	for _, end := range bounds {
		if end <= start || end > len(pts) {
			continue
		}
		if len(out) > 0 {
			outBreaks = append(outBreaks, len(out))
		}
		out = append(out, geo.Simplify(pts[start:end], tolerance)...)
		start = end
	}
	return out, outBreaks
}

// LineDistance returns the distance in km from p to a line.
func LineDistance(p geo.Point, l lines.Line) float64 {
	return geo.DistanceToPolyline(p, l.Points, l.Breaks)
}

// distance returns the distance from p when the line is within maxKm.
func (l *Prepared) distance(p geo.Point, maxKm float64) (float64, bool) {
	if !l.BBox.MightContain(p) {
		return 0, false
	}
	d := geo.DistanceToPolyline(p, l.Points, l.Breaks)
	return d, d <= maxKm
}

// Influences returns every line within cfg.MaxKm of p, with its
// contribution filled in.
func Influences(p geo.Point, ls []Prepared, cfg Config) []Influence {
	var out []Influence
	for i := range ls {
		d, ok := ls[i].distance(p, cfg.MaxKm)
		if !ok {
			continue
		}
		inf := Influence{
			Body:       ls[i].Body,
			Angle:      ls[i].Angle,
			Aspect:     ls[i].Aspect,
			Rating:     ls[i].Rating,
			DistanceKm: d,
		}
		inf.contribute(cfg)
		out = append(out, inf)
	}
	return out
}

// contribute fills in the kernel weight and the benefit, intensity and
// volatility contributions.
func (inf *Influence) contribute(cfg Config) {
	k := InfluenceStrength(inf.DistanceKm, cfg)
	base := float64(inf.Rating - 3)

	benefitMult, intensityMult := 1.0, 1.0
	if inf.Aspect != nil {
		benefitMult = AspectBenefit(*inf.Aspect)
		intensityMult = AspectIntensity(*inf.Aspect)
	}

	inf.Strength = k
	inf.Benefit = base * benefitMult * k
	inf.Intensity = math.Abs(base) * intensityMult * k
	inf.Volatility = 0
	if benefitMult < 0 && base != 0 {
		inf.Volatility = math.Abs(base) * k
	}
}

// Score aggregates every line within range of a candidate.
func Score(c Candidate, ls []Prepared, cfg Config) ScoreResult {
	return aggregate(c, Influences(c.Point, ls, cfg))
}

// aggregate combines influences with diminishing weights. No influences is
// the neutral score.
func aggregate(c Candidate, infl []Influence) ScoreResult {
	s := ScoreResult{
		Candidate:      c,
		Benefit:        neutralBenefit,
		InfluenceCount: len(infl),
		MinDistanceKm:  Distance(math.Inf(1)),
	}
	if len(infl) == 0 {
		return s
	}

	ranked := slices.Clone(infl)
	slices.SortStableFunc(ranked, func(a, b Influence) int {
		if o := cmp.Compare(math.Abs(b.Benefit), math.Abs(a.Benefit)); o != 0 {
			return o
		}
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})

	var benefit, intensity, pos, neg float64
	for i, inf := range ranked {
		if i >= len(diminishingWeights) {
			break
		}
		w := diminishingWeights[i]
		benefit += inf.Benefit * w
		pos += math.Max(inf.Benefit, 0) * w
		neg += math.Max(-inf.Benefit, 0) * w
	}

	// Intensity weights follow intensity order so each weighted term only
	// falls as the candidate moves away from the lines.
	byIntensity := make([]float64, len(infl))
	for i, inf := range infl {
		byIntensity[i] = inf.Intensity
	}
	slices.SortFunc(byIntensity, func(a, b float64) int { return cmp.Compare(b, a) })
	for i, v := range byIntensity {
		if i >= len(diminishingWeights) {
			break
		}
		intensity += v * diminishingWeights[i]
	}

	s.Benefit = clamp(neutralBenefit+benefit*benefitScale, 0, 100)
	s.Intensity = clamp(intensity*intensityScale, 0, 100)
	s.Volatility = clamp(math.Sqrt(pos*neg)*volatilityScale, 0, 100)
	s.Mixed = pos > mixedThreshold && neg > mixedThreshold

	minD := math.Inf(1)
	for _, inf := range infl {
		minD = math.Min(minD, inf.DistanceKm)
	}
	s.MinDistanceKm = Distance(minD)
	return s
}

// nature classifies a score: the mixed flag wins, then the benefit bands.
func nature(s ScoreResult) Nature {
	switch {
	case s.Mixed:
		return Mixed
	case s.Benefit > beneficialAbove:
		return Beneficial
	case s.Benefit < challengingBelow:
		return Challenging
	default:
		return Mixed
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
