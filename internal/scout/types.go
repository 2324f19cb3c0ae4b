// Package scout scores candidate locations against a set of
// astrocartography lines and ranks them for a life category.
package scout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownSortMode = errors.New("unknown sort mode")
	ErrUnknownKernel   = errors.New("unknown kernel")
	ErrUnknownPreset   = errors.New("unknown scoring preset")
	ErrInvalidConfig   = errors.New("invalid scoring config")
)

// Category is a life area a ranking is computed for.
type Category int

const (
	Career Category = iota
	Love
	Health
	Home
	Wellbeing
	Wealth
)

var categoryNames = [...]string{"career", "love", "health", "home", "wellbeing", "wealth"}

// Categories lists every category.
var Categories = []Category{Career, Love, Health, Home, Wellbeing, Wealth}

func (c Category) String() string {
	if c < Career || c > Wealth {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

func (c Category) valid() bool { return c >= Career && c <= Wealth }

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(text []byte) error {
	v, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// SortMode orders a category ranking.
type SortMode int

const (
	BenefitFirst SortMode = iota
	IntensityFirst
	Balanced
)

var sortModeNames = [...]string{"benefit_first", "intensity_first", "balanced"}

func (m SortMode) String() string {
	if m < BenefitFirst || m > Balanced {
		return fmt.Sprintf("sort_mode(%d)", int(m))
	}
	return sortModeNames[m]
}

func (m SortMode) valid() bool { return m >= BenefitFirst && m <= Balanced }

// ParseSortMode parses a sort mode. "benefit" and "intensity" are accepted
// as short forms, and the empty string selects BenefitFirst.
func ParseSortMode(s string) (SortMode, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "", "benefit":
		return BenefitFirst, nil
	case "intensity":
		return IntensityFirst, nil
	case "balanced_benefit":
		return Balanced, nil
	default:
		for i, n := range sortModeNames {
			if n == name {
				return SortMode(i), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSortMode, s)
}

func (m SortMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *SortMode) UnmarshalText(text []byte) error {
	v, err := ParseSortMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Nature is the overall character of a ranked location.
type Nature string

const (
	Beneficial  Nature = "beneficial"
	Challenging Nature = "challenging"
	Mixed       Nature = "mixed"
)

// Candidate is a location to score. Population is an optional weight
// carried from the catalog; zero means unknown.
type Candidate struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Country    string    `json:"country"`
	Point      geo.Point `json:"point"`
	Population int64     `json:"population,omitempty"`
}

// Influence is one line within range of a candidate, with its
// contribution to the score.
type Influence struct {
	Body       ephemeris.Body    `json:"body"`
	Angle      lines.Angle       `json:"angle"`
	Aspect     *lines.AspectKind `json:"aspect,omitempty"`
	Rating     int               `json:"rating"`
	DistanceKm float64           `json:"distance_km"`
	Strength   float64           `json:"strength"`
	Benefit    float64           `json:"benefit"`
	Intensity  float64           `json:"intensity"`
	Volatility float64           `json:"volatility"`
}

// Distance is a length in km that encodes +Inf as JSON null.
type Distance float64

func (d Distance) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(d), 0) || math.IsNaN(float64(d)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(d))
}

func (d *Distance) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Distance(math.Inf(1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = Distance(v)
	return nil
}

// ScoreResult is the aggregate of every influence on one candidate.
// Benefit is centred on 50; intensity and volatility start at 0. All three
// lie in [0, 100].
type ScoreResult struct {
	Candidate      Candidate `json:"candidate"`
	Benefit        float64   `json:"benefit"`
	Intensity      float64   `json:"intensity"`
	Volatility     float64   `json:"volatility"`
	Mixed          bool      `json:"mixed"`
	InfluenceCount int       `json:"influence_count"`
	MinDistanceKm  Distance  `json:"min_distance_km"`
}

// Ranking is a scored candidate within a category ranking.
type Ranking struct {
	ScoreResult
	Nature        Nature      `json:"nature"`
	TopInfluences []Influence `json:"top_influences"`
}

// RankedCountry groups the rankings of one country.
type RankedCountry struct {
	Country          string    `json:"country"`
	Cities           []Ranking `json:"cities"`
	BeneficialCount  int       `json:"beneficial_count"`
	ChallengingCount int       `json:"challenging_count"`
}
