package scout

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
)

// Grid scout parameters. The coarse pass covers the populated latitudes;
// each later pass refines around the best points of the one before.
const (
	gridMinLat = -60.0
	gridMaxLat = 70.0

	coarseStep   = 5.0
	regionalStep = 1.0
	fineStep     = 0.25

	hotZonePercentile = 0.2
	topZonePercentile = 0.1
	hotZoneRadius     = 5.0
	topZoneRadius     = 1.0

	gridSimplifyTolerance = 0.1
)

// GridPoint is one scored grid cell centre.
type GridPoint struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Score          float64 `json:"score"`
	InfluenceCount int     `json:"influence_count"`
}

// Zone is a square region around a promising grid point.
type Zone struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	RadiusDeg float64 `json:"radius_deg"`
}

// GridResult is the output of the deepest pass that found anything.
type GridResult struct {
	Phase    string      `json:"phase"` // coarse, regional or fine
	Points   []GridPoint `json:"points"`
	HotZones []Zone      `json:"hot_zones,omitempty"`
}

// Grid returns the lattice points at a resolution over the scouted
// latitude band, west to east within each row.
func Grid(step float64) []geo.Point {
	var pts []geo.Point
	for i := 0; ; i++ {
		lat := gridMinLat + float64(i)*step
		if lat > gridMaxLat+1e-9 {
			break
		}
		for j := 0; ; j++ {
			lng := -180 + float64(j)*step
			if lng >= 180-1e-9 {
				break
			}
			pts = append(pts, geo.Point{Lat: lat, Lng: lng})
		}
	}
	return pts
}

// zoneGrid samples every zone at step and drops duplicates where zones
// overlap.
func zoneGrid(zones []Zone, step float64) []geo.Point {
	seen := make(map[[2]int64]bool)
	var pts []geo.Point
	for _, z := range zones {
		n := int(math.Round(2 * z.RadiusDeg / step))
		for i := 0; i <= n; i++ {
			lat := z.Lat - z.RadiusDeg + float64(i)*step
			if lat < -90 || lat > 90 {
				continue
			}
			for j := 0; j <= n; j++ {
				p := geo.NewPoint(lat, z.Lng-z.RadiusDeg+float64(j)*step)
				key := [2]int64{int64(math.Round(p.Lat * 1000)), int64(math.Round(p.Lng * 1000))}
				if p.Lng == -180 {
					key[1] = 180000
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				pts = append(pts, p)
			}
		}
	}
	slices.SortFunc(pts, func(a, b geo.Point) int {
		if o := cmp.Compare(a.Lat, b.Lat); o != 0 {
			return o
		}
		return cmp.Compare(a.Lng, b.Lng)
	})
	return pts
}

// gridScore sums the undiminished benefit of every category line in range
// of p.
func gridScore(p geo.Point, ls []Prepared, cfg Config) (float64, int) {
	var total float64
	var count int
	for i := range ls {
		d, ok := ls[i].distance(p, cfg.MaxKm)
		if !ok {
			continue
		}
		benefit := float64(ls[i].Rating-3) * InfluenceStrength(d, cfg)
		if ls[i].Aspect != nil {
			benefit *= AspectBenefit(*ls[i].Aspect)
		}
		total += benefit
		count++
	}
	return clamp(neutralBenefit+total*benefitScale, 0, 100), count
}

func (p *Pool) scoreGrid(ctx context.Context, pts []geo.Point, ls []Prepared, cfg Config) ([]GridPoint, error) {
	out := make([]GridPoint, len(pts))
	err := p.run(ctx, len(pts), func(i int) {
		score, n := gridScore(pts[i], ls, cfg)
		out[i] = GridPoint{Lat: pts[i].Lat, Lng: pts[i].Lng, Score: score, InfluenceCount: n}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// hotZones returns a zone around every influenced point scoring at or above
// the given top percentile.
func hotZones(pts []GridPoint, percentile, radius float64) []Zone {
	var scores []float64
	for _, p := range pts {
		if p.InfluenceCount > 0 {
			scores = append(scores, p.Score)
		}
	}
	if len(scores) == 0 {
		return nil
	}
	slices.SortFunc(scores, func(a, b float64) int { return cmp.Compare(b, a) })
	idx := min(int(math.Ceil(float64(len(scores))*percentile)), len(scores)-1)
	threshold := scores[idx]

	var zones []Zone
	for _, p := range pts {
		if p.InfluenceCount > 0 && p.Score >= threshold {
			zones = append(zones, Zone{Lat: p.Lat, Lng: p.Lng, RadiusDeg: radius})
		}
	}
	return zones
}

// ScoutGrid searches the globe for the best areas for a category in three
// passes: a 5° coarse grid, 1° around its top fifth, then 0.25° around the
// top tenth of that. Lines are simplified to 0.1° first.
func (p *Pool) ScoutGrid(ctx context.Context, ls []lines.Line, category Category, cfg Config) (*GridResult, error) {
	if !category.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(category))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	prepared := forCategory(Prepare(ls, cfg.MaxKm, gridSimplifyTolerance), category)

	coarse, err := p.scoreGrid(ctx, Grid(coarseStep), prepared, cfg)
	if err != nil {
		return nil, err
	}
	hot := hotZones(coarse, hotZonePercentile, hotZoneRadius)
	if len(hot) == 0 {
		return &GridResult{Phase: "coarse", Points: coarse}, nil
	}

	regional, err := p.scoreGrid(ctx, zoneGrid(hot, regionalStep), prepared, cfg)
	if err != nil {
		return nil, err
	}
	top := hotZones(regional, topZonePercentile, topZoneRadius)
	if len(top) == 0 {
		return &GridResult{Phase: "regional", Points: regional, HotZones: hot}, nil
	}

	fine, err := p.scoreGrid(ctx, zoneGrid(top, fineStep), prepared, cfg)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("grid scout complete",
		"category", category.String(),
		"hot_zones", len(hot),
		"top_zones", len(top),
		"fine_points", len(fine),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &GridResult{Phase: "fine", Points: fine, HotZones: top}, nil
}
