// Package chart computes natal and relocated horoscope charts: the four
// angles, house cusps in seven systems and per-body placements.
package chart

import (
	"context"
	"fmt"
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// Sign is a zodiac sign, 30° of ecliptic longitude.
type Sign int

const (
	Aries Sign = iota
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

var signNames = [...]string{"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo", "Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces"}

func (s Sign) String() string {
	if s < Aries || s > Pisces {
		return fmt.Sprintf("sign(%d)", int(s))
	}
	return signNames[s]
}

func (s Sign) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SignOf returns the sign of a longitude and the degree within it.
func SignOf(lon float64) (Sign, float64) {
	lon = transform.NormalizeDegrees(lon)
	idx := int(lon / 30)
	if idx > 11 {
		idx = 11
	}
	return Sign(idx), lon - float64(idx)*30
}

// Zodiac names the reference frame of chart longitudes.
type Zodiac string

const (
	Tropical Zodiac = "tropical"
	Sidereal Zodiac = "sidereal"
)

// LahiriAyanamsa returns the Lahiri ayanamsa in degrees for a UTC Julian
// date: 23°51′09″ at J2000.0 advancing 50.29″ a year.
func LahiriAyanamsa(jd float64) float64 {
	years := (jd - transform.J2000) / 365.25
	return 23.85250 + years*50.29/3600
}

// retrogradeWindow is the half-width in days of the interval the
// longitude rate is measured over.
const retrogradeWindow = 0.5

// Options controls chart construction.
type Options struct {
	HouseSystem HouseSystem
	Sidereal    bool
	Bodies      []ephemeris.Body
}

// Placement is one body in a chart.
type Placement struct {
	Body              ephemeris.Body `json:"body"`
	Longitude         float64        `json:"longitude"`
	SiderealLongitude *float64       `json:"longitude_sidereal,omitempty"`
	Sign              Sign           `json:"sign"`
	DegreeInSign      float64        `json:"degree_in_sign"`
	House             int            `json:"house"`
	Retrograde        bool           `json:"retrograde"`
	Speed             float64        `json:"speed"` // degrees per day
}

// Chart is a natal chart for one instant and site.
type Chart struct {
	Instant     transform.Instant `json:"instant"`
	Site        geo.Point         `json:"site"`
	HouseSystem HouseSystem       `json:"house_system"`
	// Requested differs from HouseSystem when a polar fallback applied.
	Requested  HouseSystem `json:"requested_house_system"`
	Zodiac     Zodiac      `json:"zodiac"`
	Ayanamsa   *float64    `json:"ayanamsa,omitempty"`
	Obliquity  float64     `json:"obliquity"`
	Angles     Angles      `json:"angles"`
	Cusps      Cusps       `json:"cusps"`
	Placements []Placement `json:"placements"`
}

// bodyMotion is a position with its longitude rate.
type bodyMotion struct {
	pos   ephemeris.Position
	speed float64
}

// Natal computes a chart for an instant and site.
func Natal(ctx context.Context, provider ephemeris.Provider, inst transform.Instant, site geo.Point, opts Options) (*Chart, error) {
	motions, err := motionsAt(ctx, provider, inst, opts.Bodies)
	if err != nil {
		return nil, err
	}
	eps := ephemeris.NewFrame(inst).TrueEps * transform.Rad2Deg
	return build(inst, site, eps, motions, opts), nil
}

// motionsAt fetches positions at the instant and half a day either side.
func motionsAt(ctx context.Context, provider ephemeris.Provider, inst transform.Instant, bodies []ephemeris.Body) ([]bodyMotion, error) {
	if len(bodies) == 0 {
		bodies = ephemeris.AllBodies
	}
	now, err := provider.Positions(ctx, inst, bodies)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	before, err := provider.Positions(ctx, inst.Add(-retrogradeWindow), bodies)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	after, err := provider.Positions(ctx, inst.Add(retrogradeWindow), bodies)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	out := make([]bodyMotion, len(now))
	for i, p := range now {
		out[i] = bodyMotion{
			pos:   p,
			speed: transform.AngleDiff(before[i].Lon, after[i].Lon) / (2 * retrogradeWindow),
		}
	}
	return out, nil
}

// build assembles a chart from precomputed motions. It does no I/O.
func build(inst transform.Instant, site geo.Point, eps float64, motions []bodyMotion, opts Options) *Chart {
	armc := transform.LocalSidereal(inst.GMST(), site.Lng) * transform.Rad2Deg
	angles := ComputeAngles(armc, site.Lat, eps)
	cusps, effective := Houses(opts.HouseSystem, angles, site.Lat, eps)

	c := &Chart{
		Instant:     inst,
		Site:        site,
		HouseSystem: effective,
		Requested:   opts.HouseSystem,
		Zodiac:      Tropical,
		Obliquity:   eps,
		Angles:      angles,
		Cusps:       cusps,
		Placements:  make([]Placement, 0, len(motions)),
	}

	var ayanamsa float64
	if opts.Sidereal {
		ayanamsa = LahiriAyanamsa(inst.JD)
		c.Zodiac = Sidereal
		c.Ayanamsa = &ayanamsa
		c.Angles = angles.shift(ayanamsa)
		if effective == WholeSign {
			c.Cusps = wholeSignHouses(c.Angles.ASC)
		} else {
			for i := range c.Cusps {
				c.Cusps[i] = transform.NormalizeDegrees(cusps[i] - ayanamsa)
			}
		}
	}

	for _, m := range motions {
		lon := transform.NormalizeDegrees(m.pos.Lon)
		pl := Placement{
			Body:       m.pos.Body,
			Longitude:  lon,
			Retrograde: m.speed < 0,
			Speed:      m.speed,
		}
		zodiacLon := lon
		if opts.Sidereal {
			sid := transform.NormalizeDegrees(lon - ayanamsa)
			pl.SiderealLongitude = &sid
			zodiacLon = sid
		}
		pl.Sign, pl.DegreeInSign = SignOf(zodiacLon)
		pl.House = FindHouse(zodiacLon, c.Cusps)
		c.Placements = append(c.Placements, pl)
	}
	return c
}

// HouseChange records a body's house in the original and relocated charts.
type HouseChange struct {
	Body      ephemeris.Body `json:"body"`
	Original  int            `json:"original_house"`
	Relocated int            `json:"relocated_house"`
	Changed   bool           `json:"house_changed"`
}

// Relocation compares a chart with the same instant cast for another site.
type Relocation struct {
	Original  *Chart        `json:"original"`
	Relocated *Chart        `json:"relocated"`
	ASCShift  float64       `json:"ascendant_shift"`
	MCShift   float64       `json:"midheaven_shift"`
	Changes   []HouseChange `json:"changes"`
}

// Relocate casts the chart for the same instant at original and at
// relocated. Body positions are computed once and shared.
func Relocate(ctx context.Context, provider ephemeris.Provider, inst transform.Instant, original, relocated geo.Point, opts Options) (*Relocation, error) {
	motions, err := motionsAt(ctx, provider, inst, opts.Bodies)
	if err != nil {
		return nil, err
	}
	eps := ephemeris.NewFrame(inst).TrueEps * transform.Rad2Deg

	orig := build(inst, original, eps, motions, opts)
	reloc := build(inst, relocated, eps, motions, opts)

	r := &Relocation{
		Original:  orig,
		Relocated: reloc,
		ASCShift:  shortestShift(orig.Angles.ASC, reloc.Angles.ASC),
		MCShift:   shortestShift(orig.Angles.MC, reloc.Angles.MC),
		Changes:   make([]HouseChange, len(orig.Placements)),
	}
	for i, p := range orig.Placements {
		q := reloc.Placements[i]
		r.Changes[i] = HouseChange{
			Body:      p.Body,
			Original:  p.House,
			Relocated: q.House,
			Changed:   p.House != q.House,
		}
	}
	return r, nil
}

// shortestShift is the signed difference to-from in (-180, 180], with an
// exact zero for identical inputs.
func shortestShift(from, to float64) float64 {
	if from == to {
		return 0
	}
	d := transform.AngleDiff(from, to)
	if math.Abs(d) < 1e-12 {
		return 0
	}
	return d
}
