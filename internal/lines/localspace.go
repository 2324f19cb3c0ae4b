package lines

import (
	"context"
	"fmt"
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// LocalSpaceOptions controls the length and sampling of local-space rays.
type LocalSpaceOptions struct {
	Bodies []ephemeris.Body
	MaxKm  float64
	StepKm float64
}

// DefaultLocalSpaceOptions returns 15000 km rays sampled every 200 km.
func DefaultLocalSpaceOptions() LocalSpaceOptions {
	return LocalSpaceOptions{MaxKm: 15000, StepKm: 200}
}

// LocalSpaceLine is a great-circle ray from the origin along a body's
// azimuth.
type LocalSpaceLine struct {
	Body      ephemeris.Body `json:"body"`
	Azimuth   float64        `json:"azimuth"`
	Altitude  float64        `json:"altitude"`
	Direction string         `json:"direction"`
	Points    []geo.Point    `json:"points"`
}

// LocalSpaceResult is the set of rays for one origin and instant.
type LocalSpaceResult struct {
	Origin  geo.Point         `json:"origin"`
	Instant transform.Instant `json:"instant"`
	Lines   []LocalSpaceLine  `json:"lines"`
}

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassDirection labels an azimuth with one of eight 45° sectors
// centred on the compass points.
func CompassDirection(azimuthDeg float64) string {
	sector := int(math.Floor(transform.NormalizeDegrees(azimuthDeg+22.5) / 45))
	return compassPoints[sector%8]
}

// LocalSpace computes one ray per body from origin.
func LocalSpace(ctx context.Context, provider ephemeris.Provider, inst transform.Instant, origin geo.Point, opts LocalSpaceOptions) (*LocalSpaceResult, error) {
	d := DefaultLocalSpaceOptions()
	if opts.MaxKm <= 0 {
		opts.MaxKm = d.MaxKm
	}
	if opts.StepKm <= 0 {
		opts.StepKm = d.StepKm
	}
	bodies := opts.Bodies
	if len(bodies) == 0 {
		bodies = ephemeris.AllBodies
	}

	positions, err := provider.Positions(ctx, inst, bodies)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	gmst := inst.GMST()
	obs := transform.NewObserverPosition(origin.Lat, origin.Lng)
	res := &LocalSpaceResult{Origin: origin, Instant: inst, Lines: make([]LocalSpaceLine, 0, len(positions))}

	steps := int(math.Floor(opts.MaxKm/opts.StepKm + 1e-9))
	for _, p := range positions {
		look := transform.EquatorialToLookAngles(obs, p.RA, p.Dec, gmst)

		pts := make([]geo.Point, 0, steps+1)
		pts = append(pts, origin)
		for k := 1; k <= steps; k++ {
			pts = append(pts, geo.Destination(origin, look.AzimuthDeg, float64(k)*opts.StepKm))
		}

		res.Lines = append(res.Lines, LocalSpaceLine{
			Body:      p.Body,
			Azimuth:   look.AzimuthDeg,
			Altitude:  look.AltitudeDeg,
			Direction: CompassDirection(look.AzimuthDeg),
			Points:    pts,
		})
	}
	return res, nil
}
