package api

import (
	"fmt"
	"math"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/chart"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/httputil"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// Request limits.
const (
	maxCandidates  = 20000
	maxScoutKm     = 5000
	maxLocalKm     = 20037.5 // half the equatorial circumference
	minSampleStep  = 0.1
	maxSampleStep  = 10
	minParanStep   = 0.05
	maxParanStep   = 5
	minLocalStepKm = 10
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", httputil.ErrBadRequest, fmt.Sprintf(format, args...))
}

func checkPoint(name string, p geo.Point) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return badRequest("%s latitude must be within [-90, 90], got %v", name, p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return badRequest("%s longitude must be within [-180, 180], got %v", name, p.Lng)
	}
	return nil
}

// resolveInstant parses an RFC 3339 time, or a zoneless wall time read as
// local time at place.
func (s *Server) resolveInstant(value string, place *geo.Point) (transform.Instant, error) {
	if value == "" {
		return transform.Instant{}, badRequest("time is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return transform.NewInstant(t), nil
	}
	if place == nil {
		return transform.Instant{}, badRequest("time %q must be RFC 3339, or local wall time with a birthplace", value)
	}
	if err := checkPoint("birthplace", *place); err != nil {
		return transform.Instant{}, err
	}
	t, err := s.deps.TZ.ParseLocal(value, place.Lat, place.Lng)
	if err != nil {
		return transform.Instant{}, badRequest("%v", err)
	}
	return transform.NewInstant(t), nil
}

// instantRequest is the time of a chart. Birthplace locates a zoneless
// wall time; it is not needed when Time carries an offset.
type instantRequest struct {
	Time       string     `json:"time"`
	Birthplace *geo.Point `json:"birthplace,omitempty"`
}

type positionsRequest struct {
	instantRequest
	Bodies []ephemeris.Body `json:"bodies,omitempty"`
	Tier   *ephemeris.Tier  `json:"tier,omitempty"`
}

type linesRequest struct {
	instantRequest
	lineParams
}

type lineParams struct {
	Bodies         []ephemeris.Body `json:"bodies,omitempty"`
	LongitudeStep  float64          `json:"longitude_step,omitempty"`
	LatitudeStep   float64          `json:"latitude_step,omitempty"`
	MinLat         float64          `json:"min_lat,omitempty"`
	MaxLat         float64          `json:"max_lat,omitempty"`
	NoAspects      bool             `json:"no_aspects,omitempty"`
	AspectMode     string           `json:"aspect_mode,omitempty"`
	NoParans       bool             `json:"no_parans,omitempty"`
	ParanStep      float64          `json:"paran_step,omitempty"`
	BreakThreshold float64          `json:"break_threshold,omitempty"`
}

func checkStep(name string, v, lo, hi float64) error {
	if v != 0 && (v < lo || v > hi) {
		return badRequest("%s must be within [%v, %v], got %v", name, lo, hi, v)
	}
	return nil
}

func (p lineParams) options() (lines.Options, error) {
	mode, err := lines.ParseAspectMode(p.AspectMode)
	if err != nil {
		return lines.Options{}, badRequest("%v", err)
	}
	if err := checkStep("longitude_step", p.LongitudeStep, minSampleStep, maxSampleStep); err != nil {
		return lines.Options{}, err
	}
	if err := checkStep("latitude_step", p.LatitudeStep, minSampleStep, maxSampleStep); err != nil {
		return lines.Options{}, err
	}
	if err := checkStep("paran_step", p.ParanStep, minParanStep, maxParanStep); err != nil {
		return lines.Options{}, err
	}
	if math.Abs(p.MinLat) > 90 || math.Abs(p.MaxLat) > 90 {
		return lines.Options{}, badRequest("min_lat and max_lat must be within [-90, 90]")
	}
	if p.BreakThreshold < 0 {
		return lines.Options{}, badRequest("break_threshold must not be negative")
	}
	return lines.Options{
		Bodies:         p.Bodies,
		LongitudeStep:  p.LongitudeStep,
		MinLat:         p.MinLat,
		MaxLat:         p.MaxLat,
		LatitudeStep:   p.LatitudeStep,
		NoAspects:      p.NoAspects,
		AspectMode:     mode,
		NoParans:       p.NoParans,
		ParanStep:      p.ParanStep,
		BreakThreshold: p.BreakThreshold,
	}, nil
}

type localSpaceRequest struct {
	Time   string           `json:"time"`
	Lat    float64          `json:"lat"`
	Lng    float64          `json:"lng"`
	Bodies []ephemeris.Body `json:"bodies,omitempty"`
	MaxKm  float64          `json:"max_km,omitempty"`
	StepKm float64          `json:"step_km,omitempty"`
}

type chartRequest struct {
	Time        string            `json:"time"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	HouseSystem chart.HouseSystem `json:"house_system"`
	Sidereal    bool              `json:"sidereal,omitempty"`
	Bodies      []ephemeris.Body  `json:"bodies,omitempty"`
}

func (c chartRequest) options() chart.Options {
	return chart.Options{HouseSystem: c.HouseSystem, Sidereal: c.Sidereal, Bodies: c.Bodies}
}

type relocationRequest struct {
	chartRequest
	Relocated geo.Point `json:"relocated"`
}

// scoringParams selects a preset and overrides individual fields of it.
type scoringParams struct {
	Preset            string        `json:"preset,omitempty"`
	Kernel            *scout.Kernel `json:"kernel,omitempty"`
	KernelParam       *float64      `json:"kernel_param,omitempty"`
	MaxKm             *float64      `json:"max_km,omitempty"`
	VolatilityPenalty *float64      `json:"volatility_penalty,omitempty"`
}

func (p scoringParams) config() (scout.Config, error) {
	cfg, err := scout.Preset(p.Preset)
	if err != nil {
		return scout.Config{}, err
	}
	if p.Kernel != nil {
		cfg.Kernel = *p.Kernel
	}
	if p.KernelParam != nil {
		cfg.KernelParam = *p.KernelParam
	}
	if p.MaxKm != nil {
		cfg.MaxKm = *p.MaxKm
	}
	if p.VolatilityPenalty != nil {
		cfg.VolatilityPenalty = *p.VolatilityPenalty
	}
	if err := cfg.Validate(); err != nil {
		return scout.Config{}, err
	}
	if cfg.MaxKm > maxScoutKm {
		return scout.Config{}, badRequest("max_km must not exceed %d", maxScoutKm)
	}
	return cfg, nil
}

type scoreRequest struct {
	instantRequest
	Lat     float64       `json:"lat"`
	Lng     float64       `json:"lng"`
	Scoring scoringParams `json:"scoring"`
}

// rankRequest ranks either the supplied candidates or the catalog cities
// inside Bounds.
type rankRequest struct {
	instantRequest
	Category   scout.Category    `json:"category"`
	Sort       scout.SortMode    `json:"sort"`
	Scoring    scoringParams     `json:"scoring"`
	Bounds     *catalog.Bounds   `json:"bounds,omitempty"`
	Candidates []scout.Candidate `json:"candidates,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

func (r rankRequest) validate() error {
	switch {
	case r.Bounds == nil && len(r.Candidates) == 0:
		return badRequest("either bounds or candidates is required")
	case r.Bounds != nil && len(r.Candidates) > 0:
		return badRequest("bounds and candidates are mutually exclusive")
	case len(r.Candidates) > maxCandidates:
		return badRequest("at most %d candidates are allowed", maxCandidates)
	case r.Limit < 0:
		return badRequest("limit must not be negative")
	}
	if b := r.Bounds; b != nil {
		if b.MinLat > b.MaxLat {
			return badRequest("bounds min_lat exceeds max_lat")
		}
		if err := checkPoint("bounds min", geo.Point{Lat: b.MinLat, Lng: b.MinLng}); err != nil {
			return err
		}
		if err := checkPoint("bounds max", geo.Point{Lat: b.MaxLat, Lng: b.MaxLng}); err != nil {
			return err
		}
	}
	for _, c := range r.Candidates {
		if err := checkPoint("candidate "+c.ID, c.Point); err != nil {
			return err
		}
	}
	return nil
}

type gridRequest struct {
	instantRequest
	Category scout.Category `json:"category"`
	Scoring  scoringParams  `json:"scoring"`
}
