// Package ephemeris computes geocentric apparent positions of the Sun, Moon,
// planets, Pluto, Chiron and the lunar node at two accuracy tiers.
package ephemeris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// ErrUnknownBody is returned for a body name outside the supported set.
var ErrUnknownBody = errors.New("unknown body")

// Body identifies a celestial body.
type Body int

const (
	Sun Body = iota
	Moon
	Mercury
	Venus
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
	Pluto
	Chiron
	NorthNode
)

// AllBodies lists every supported body in canonical order.
var AllBodies = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto, Chiron, NorthNode}

var bodyNames = [...]string{"sun", "moon", "mercury", "venus", "mars", "jupiter", "saturn", "uranus", "neptune", "pluto", "chiron", "north_node"}

// String returns the lowercase body name.
func (b Body) String() string {
	if b < 0 || int(b) >= len(bodyNames) {
		return fmt.Sprintf("body(%d)", int(b))
	}
	return bodyNames[b]
}

// Valid reports whether b is one of the supported bodies.
func (b Body) Valid() bool {
	return b >= Sun && b <= NorthNode
}

// ParseBody parses a body name, case-insensitively. "northnode", "node" and
// "true_node" are accepted for the north node.
func ParseBody(s string) (Body, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "northnode", "node", "true_node", "truenode":
		return NorthNode, nil
	}
	for i, n := range bodyNames {
		if n == name {
			return Body(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBody, s)
}

// ParseBodies parses a list of body names. An empty list means all bodies.
func ParseBodies(names []string) ([]Body, error) {
	if len(names) == 0 {
		return append([]Body(nil), AllBodies...), nil
	}
	out := make([]Body, 0, len(names))
	for _, n := range names {
		b, err := ParseBody(n)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (b Body) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBody, int(b))
	}
	return []byte(b.String()), nil
}

func (b *Body) UnmarshalText(text []byte) error {
	v, err := ParseBody(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Tier is the accuracy tier that produced a position.
type Tier int

const (
	// TierBaseline is the closed-form series, roughly 5 arcminutes.
	TierBaseline Tier = iota
	// TierPrecision is the full VSOP87/ELP series, sub-arcsecond.
	TierPrecision
)

func (t Tier) String() string {
	switch t {
	case TierBaseline:
		return "baseline"
	case TierPrecision:
		return "precision"
	default:
		return "unknown"
	}
}

// ParseTier parses "baseline" or "precision".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "baseline":
		return TierBaseline, nil
	case "precision":
		return TierPrecision, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", s)
	}
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Position is the apparent geocentric position of a body at an instant.
// RA and Dec are radians, true equator and equinox of date. Lon and Lat are
// apparent ecliptic coordinates in degrees. Distance is in AU, 0 when the
// tier does not provide it.
type Position struct {
	Body     Body    `json:"body"`
	RA       float64 `json:"ra"`
	Dec      float64 `json:"dec"`
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Distance float64 `json:"distance,omitempty"`
	Tier     Tier    `json:"tier"`
}

// Provider computes body positions.
type Provider interface {
	// Name returns the provider name for logging.
	Name() string
	// Tier returns the best tier this provider can produce.
	Tier() Tier
	// Position computes one body at an instant.
	Position(ctx context.Context, inst transform.Instant, body Body) (Position, error)
	// Positions computes several bodies at one instant, sharing the
	// per-instant quantities. Results follow the order of bodies.
	Positions(ctx context.Context, inst transform.Instant, bodies []Body) ([]Position, error)
	// Supports reports whether this provider can compute body.
	Supports(body Body) bool
}

// ErrUnsupported is returned by a provider asked for a body it cannot
// compute. Tiered turns it into a baseline fallback.
var ErrUnsupported = errors.New("body not supported by provider")
