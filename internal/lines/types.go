// Package lines projects body positions onto the globe: meridian and
// horizon lines, aspect lines, parans, zenith points and local-space rays.
package lines

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// ErrUnknownAngle is returned for an angle name other than MC, IC, ASC, DSC.
var ErrUnknownAngle = errors.New("unknown angle")

// ErrUnknownAspect is returned for an unrecognized aspect name.
var ErrUnknownAspect = errors.New("unknown aspect")

// Angle is one of the four chart angles a line is drawn for.
type Angle int

const (
	MC Angle = iota
	IC
	ASC
	DSC
)

// AllAngles lists the angles in canonical order.
var AllAngles = []Angle{MC, IC, ASC, DSC}

var angleNames = [...]string{"MC", "IC", "ASC", "DSC"}

func (a Angle) String() string {
	if a < MC || a > DSC {
		return fmt.Sprintf("angle(%d)", int(a))
	}
	return angleNames[a]
}

// Meridian reports whether a is MC or IC.
func (a Angle) Meridian() bool { return a == MC || a == IC }

// ParseAngle parses an angle name, case-insensitively.
func ParseAngle(s string) (Angle, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range angleNames {
		if n == name {
			return Angle(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAngle, s)
}

func (a Angle) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Angle) UnmarshalText(text []byte) error {
	v, err := ParseAngle(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// AspectKind is an angular relationship between a body and an angle.
type AspectKind int

const (
	Conjunction AspectKind = iota
	Sextile
	Square
	Trine
	Quincunx
	Opposition
	Sesquisquare
)

var aspectNames = [...]string{"conjunction", "sextile", "square", "trine", "quincunx", "opposition", "sesquisquare"}

var aspectDegrees = [...]float64{0, 60, 90, 120, 150, 180, 135}

// LineAspects are the aspects drawn as aspect lines.
var LineAspects = []AspectKind{Trine, Sextile, Square}

func (k AspectKind) String() string {
	if k < Conjunction || k > Sesquisquare {
		return fmt.Sprintf("aspect(%d)", int(k))
	}
	return aspectNames[k]
}

// Degrees returns the exact aspect angle.
func (k AspectKind) Degrees() float64 { return aspectDegrees[k] }

// Harmonious reports whether the aspect raises a line's rating.
func (k AspectKind) Harmonious() bool {
	switch k {
	case Conjunction, Sextile, Trine:
		return true
	default:
		return false
	}
}

// ParseAspect parses an aspect name.
func ParseAspect(s string) (AspectKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range aspectNames {
		if n == name {
			return AspectKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAspect, s)
}

func (k AspectKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AspectKind) UnmarshalText(text []byte) error {
	v, err := ParseAspect(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Direction distinguishes the applying (+θ) and separating (−θ) side of an
// aspect.
type Direction int

const (
	Applying   Direction = 1
	Separating Direction = -1
)

func (d Direction) String() string {
	if d == Separating {
		return "separating"
	}
	return "applying"
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "applying", "+":
		*d = Applying
	case "separating", "-":
		*d = Separating
	default:
		return fmt.Errorf("unknown aspect direction %q", text)
	}
	return nil
}

// Aspect tags an aspect line.
type Aspect struct {
	Kind      AspectKind `json:"kind"`
	Angle     float64    `json:"angle"`
	Direction Direction  `json:"direction"`
}

// Line is a polyline on the globe where a body (or an aspect point) sits on
// one of the four angles. Breaks[i] = k means Points[k-1] and Points[k] are
// not connected.
type Line struct {
	Body      ephemeris.Body `json:"body"`
	Angle     Angle          `json:"angle"`
	Aspect    *Aspect        `json:"aspect,omitempty"`
	Points    []geo.Point    `json:"points"`
	Breaks    []int          `json:"breaks,omitempty"`
	Longitude *float64       `json:"longitude,omitempty"`
	Rating    int            `json:"rating"`
}

// Paran is a latitude where two bodies are simultaneously on two angles.
// Point marks a meridian-meridian coincidence reported at the equator.
type Paran struct {
	Body1  ephemeris.Body `json:"body1"`
	Angle1 Angle          `json:"angle1"`
	Body2  ephemeris.Body `json:"body2"`
	Angle2 Angle          `json:"angle2"`
	Lat    float64        `json:"lat"`
	Lng    *float64       `json:"lng,omitempty"`
	Point  bool           `json:"point,omitempty"`
}

// Zenith is the meridian projection of a body's zenith point: latitude is
// the declination, longitude the MC line. It is not the instantaneous
// sub-body point.
type Zenith struct {
	Body        ephemeris.Body `json:"body"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	Declination float64        `json:"declination"`
	MaxAltitude float64        `json:"max_altitude"`
}

// AspectMode selects how aspect points are offset from a body.
type AspectMode int

const (
	// AspectModeRA shifts right ascension by θ at the body's declination.
	AspectModeRA AspectMode = iota
	// AspectModeEcliptic shifts ecliptic longitude by θ at latitude 0.
	AspectModeEcliptic
)

func (m AspectMode) String() string {
	if m == AspectModeEcliptic {
		return "ecliptic"
	}
	return "ra"
}

// ParseAspectMode parses "ra" or "ecliptic". Empty means ra.
func ParseAspectMode(s string) (AspectMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ra", "equatorial":
		return AspectModeRA, nil
	case "ecliptic", "zodiacal":
		return AspectModeEcliptic, nil
	default:
		return 0, fmt.Errorf("unknown aspect mode %q", s)
	}
}

// Options controls line generation. Zero values take defaults.
type Options struct {
	Bodies         []ephemeris.Body
	LongitudeStep  float64 // degrees between horizon samples
	MinLat         float64 // meridian line span
	MaxLat         float64
	LatitudeStep   float64 // degrees between meridian points
	NoAspects      bool
	AspectMode     AspectMode
	NoParans       bool
	ParanStep      float64 // degrees between paran latitude samples
	BreakThreshold float64 // latitude jump, degrees, that splits a horizon line
	Concurrency    int
}

// DefaultOptions returns the standard generation settings.
func DefaultOptions() Options {
	return Options{
		LongitudeStep:  1,
		MinLat:         -70,
		MaxLat:         70,
		LatitudeStep:   2,
		ParanStep:      0.25,
		BreakThreshold: 45,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Bodies) == 0 {
		o.Bodies = ephemeris.AllBodies
	}
	if o.LongitudeStep <= 0 {
		o.LongitudeStep = d.LongitudeStep
	}
	if o.MinLat == 0 && o.MaxLat == 0 {
		o.MinLat, o.MaxLat = d.MinLat, d.MaxLat
	}
	if o.MinLat > o.MaxLat {
		o.MinLat, o.MaxLat = o.MaxLat, o.MinLat
	}
	if o.LatitudeStep <= 0 {
		o.LatitudeStep = d.LatitudeStep
	}
	if o.ParanStep <= 0 {
		o.ParanStep = d.ParanStep
	}
	if o.BreakThreshold <= 0 {
		o.BreakThreshold = d.BreakThreshold
	}
	return o
}

// TierSummary counts positions by the tier that produced them.
type TierSummary struct {
	Baseline  int `json:"baseline"`
	Precision int `json:"precision"`
}

// Result is the full line set for one instant.
type Result struct {
	Instant     transform.Instant    `json:"instant"`
	GMST        float64              `json:"gmst"`
	Positions   []ephemeris.Position `json:"positions"`
	Lines       []Line               `json:"lines"`
	AspectLines []Line               `json:"aspect_lines,omitempty"`
	Parans      []Paran              `json:"parans,omitempty"`
	Zeniths     []Zenith             `json:"zeniths"`
	Tiers       TierSummary          `json:"tiers"`
}
