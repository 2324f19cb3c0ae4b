package lines

import (
	"context"
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

const (
	paranMaxLat      = 66.0
	paranMeridianTol = 2.0 // degrees between coinciding meridian lines
	paranCrossingTol = 1.0 // degrees of longitude accepted as a crossing
	paranDedupLngTol = 1.0
)

// paranAnglePairs are the angle combinations checked for every body pair,
// in both orderings.
var paranAnglePairs = [][2]Angle{
	{MC, ASC}, {MC, DSC}, {MC, IC}, {IC, ASC}, {IC, DSC}, {ASC, DSC},
}

// condition is one (body, angle) half of a paran.
type condition struct {
	body  ephemeris.Body
	angle Angle
	ra    float64
	dec   float64
}

func (c condition) longitude(gmst, lat float64) (float64, bool) {
	return LongitudeAtLatitude(c.ra, c.dec, gmst, lat, c.angle)
}

// Parans finds every paran between the given positions. step is the
// latitude scan resolution in degrees.
func Parans(ctx context.Context, positions []ephemeris.Position, gmst, step float64) ([]Paran, error) {
	var out []Paran
	for i := 0; i < len(positions); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(positions); j++ {
			pi, pj := positions[i], positions[j]
			for _, pair := range paranAnglePairs {
				for _, order := range [2][2]Angle{{pair[0], pair[1]}, {pair[1], pair[0]}} {
					c1 := condition{pi.Body, order[0], pi.RA, pi.Dec}
					c2 := condition{pj.Body, order[1], pj.RA, pj.Dec}
					for _, p := range solveParan(c1, c2, gmst, step) {
						out = appendUnique(out, p, step)
					}
				}
			}
		}
	}
	return out, nil
}

// solveParan finds the crossings of two conditions. Two meridian
// conditions meet only when their longitudes coincide, reported as a point
// paran on the equator. Otherwise every run of latitudes whose longitude
// difference stays under paranCrossingTol yields its closest latitude.
func solveParan(c1, c2 condition, gmst, step float64) []Paran {
	p := Paran{Body1: c1.body, Angle1: c1.angle, Body2: c2.body, Angle2: c2.angle}

	if c1.angle.Meridian() && c2.angle.Meridian() {
		l1, _ := c1.longitude(gmst, 0)
		l2, _ := c2.longitude(gmst, 0)
		if math.Abs(transform.AngleDiff(l1, l2)) >= paranMeridianTol {
			return nil
		}
		p.Lng = &l1
		p.Point = true
		return []Paran{p}
	}

	n := int(math.Floor(2*paranMaxLat/step+1e-9)) + 1
	lats := make([]float64, n)
	lngs := make([]float64, n)
	diffs := make([]float64, n)
	for k := range n {
		lat := -paranMaxLat + float64(k)*step
		lats[k] = lat
		diffs[k] = math.Inf(1)
		l1, ok1 := c1.longitude(gmst, lat)
		l2, ok2 := c2.longitude(gmst, lat)
		if !ok1 || !ok2 {
			continue
		}
		diffs[k] = math.Abs(transform.AngleDiff(l1, l2))
		switch {
		case c1.angle.Meridian():
			lngs[k] = l1
		case c2.angle.Meridian():
			lngs[k] = l2
		default:
			lngs[k] = transform.NormalizeLongitude(l1 + transform.AngleDiff(l1, l2)/2)
		}
	}

	var out []Paran
	for _, k := range runMinima(diffs, paranCrossingTol) {
		q := p
		lng := lngs[k]
		q.Lat = lats[k]
		q.Lng = &lng
		out = append(out, q)
	}
	return out
}

// runMinima returns, for each maximal run of consecutive values below tol,
// the index of its smallest value. The first index wins ties.
func runMinima(vals []float64, tol float64) []int {
	var out []int
	best := -1
	for k, v := range vals {
		if v >= tol {
			if best >= 0 {
				out = append(out, best)
				best = -1
			}
			continue
		}
		if best < 0 || v < vals[best] {
			best = k
		}
	}
	if best >= 0 {
		out = append(out, best)
	}
	return out
}

// appendUnique drops a crossing of the same two conditions (in either
// order) that lies within the tolerance band of one already found.
func appendUnique(ps []Paran, p Paran, step float64) []Paran {
	for _, q := range ps {
		same := (q.Body1 == p.Body1 && q.Angle1 == p.Angle1 && q.Body2 == p.Body2 && q.Angle2 == p.Angle2) ||
			(q.Body1 == p.Body2 && q.Angle1 == p.Angle2 && q.Body2 == p.Body1 && q.Angle2 == p.Angle1)
		if !same || math.Abs(q.Lat-p.Lat) > step {
			continue
		}
		if q.Lng == nil || p.Lng == nil || math.Abs(transform.AngleDiff(*q.Lng, *p.Lng)) < paranDedupLngTol {
			return ps
		}
	}
	return append(ps, p)
}
