package chart

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// ErrUnknownHouseSystem is returned for a house system name outside the
// supported set.
var ErrUnknownHouseSystem = errors.New("unknown house system")

// HouseSystem selects how the twelve house cusps are placed.
type HouseSystem int

const (
	Placidus HouseSystem = iota
	Koch
	Equal
	WholeSign
	Campanus
	Regiomontanus
	Porphyry
)

var houseSystemNames = [...]string{"placidus", "koch", "equal", "whole_sign", "campanus", "regiomontanus", "porphyry"}

func (h HouseSystem) String() string {
	if h < Placidus || h > Porphyry {
		return fmt.Sprintf("house_system(%d)", int(h))
	}
	return houseSystemNames[h]
}

// ParseHouseSystem parses a house system name, case-insensitively. An empty
// name selects Placidus.
func ParseHouseSystem(s string) (HouseSystem, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return Placidus, nil
	case "wholesign", "whole-sign":
		return WholeSign, nil
	}
	for i, n := range houseSystemNames {
		if n == name {
			return HouseSystem(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHouseSystem, s)
}

func (h HouseSystem) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *HouseSystem) UnmarshalText(text []byte) error {
	v, err := ParseHouseSystem(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Cusps holds the ecliptic longitudes of the twelve house cusps in
// degrees. Cusps[0] is the first house.
type Cusps [12]float64

// placidusPasses is the number of refinement passes after the initial
// semi-arc estimate.
const placidusPasses = 2

const verySmall = 1e-10

// Houses computes the cusps for a house system from the chart angles. lat
// and eps are in degrees. The returned system differs from the requested
// one when Placidus or Koch falls back to Porphyry inside the polar circle.
func Houses(system HouseSystem, a Angles, lat, eps float64) (Cusps, HouseSystem) {
	switch system {
	case Equal:
		return equalHouses(a.ASC), Equal
	case WholeSign:
		return wholeSignHouses(a.ASC), WholeSign
	case Porphyry:
		return porphyryHouses(a.ASC, a.MC), Porphyry
	case Placidus, Koch:
		if math.Abs(lat) >= 90-eps {
			return porphyryHouses(a.ASC, a.MC), Porphyry
		}
	}

	lat = clampLatitude(lat)
	sine, cose := sind(eps), cosd(eps)
	th := a.ARMC
	var c11, c12, c2, c3 float64

	switch system {
	case Placidus:
		tane, tanfi := tand(eps), tand(lat)
		arc := asind(tanfi * tane)
		fh1 := atand(sind(arc/3) / tane)
		fh2 := atand(sind(arc*2/3) / tane)
		c11 = placidusCusp(th+30, fh1, 3, tanfi, sine, cose)
		c12 = placidusCusp(th+60, fh2, 1.5, tanfi, sine, cose)
		c2 = placidusCusp(th+120, fh2, 1.5, tanfi, sine, cose)
		c3 = placidusCusp(th+150, fh1, 3, tanfi, sine, cose)
	case Koch:
		sina := sind(a.MC) * sine / cosd(lat)
		sina = math.Max(-1, math.Min(1, sina))
		cosa := math.Sqrt(1 - sina*sina)
		c := atand(tand(lat) / cosa)
		ad3 := asind(sind(c)*sina) / 3
		c11 = asc1(th+30-2*ad3, lat, sine, cose)
		c12 = asc1(th+60-ad3, lat, sine, cose)
		c2 = asc1(th+120+ad3, lat, sine, cose)
		c3 = asc1(th+150+2*ad3, lat, sine, cose)
	case Campanus:
		fh1 := asind(sind(lat) / 2)
		fh2 := asind(math.Sqrt(3) / 2 * sind(lat))
		cosfi := cosd(lat)
		xh1 := atand(math.Sqrt(3) / cosfi)
		xh2 := atand(1 / math.Sqrt(3) / cosfi)
		c11 = asc1(th+90-xh1, fh1, sine, cose)
		c12 = asc1(th+90-xh2, fh2, sine, cose)
		c2 = asc1(th+90+xh2, fh2, sine, cose)
		c3 = asc1(th+90+xh1, fh1, sine, cose)
	case Regiomontanus:
		tanfi := tand(lat)
		fh1 := atand(tanfi * 0.5)
		fh2 := atand(tanfi * cosd(30))
		c11 = asc1(th+30, fh1, sine, cose)
		c12 = asc1(th+60, fh2, sine, cose)
		c2 = asc1(th+120, fh2, sine, cose)
		c3 = asc1(th+150, fh1, sine, cose)
	default:
		return equalHouses(a.ASC), Equal
	}

	var cusps Cusps
	cusps[0], cusps[9] = a.ASC, a.MC
	cusps[10], cusps[11], cusps[1], cusps[2] = c11, c12, c2, c3
	for i := 3; i < 9; i++ {
		cusps[i] = transform.NormalizeDegrees(cusps[(i+6)%12] + 180)
	}
	return cusps, system
}

// placidusCusp finds the ecliptic point whose hour angle is the given
// fraction of its semi-arc, starting from the pole height fh and refining
// placidusPasses times.
func placidusCusp(rectasc, fh, div, tanfi, sine, cose float64) float64 {
	rectasc = transform.NormalizeDegrees(rectasc)
	tant := tand(asind(sine * sind(asc1(rectasc, fh, sine, cose))))
	if math.Abs(tant) < verySmall {
		return rectasc
	}
	f := atand(sind(asind(tanfi*tant)/div) / tant)
	cusp := asc1(rectasc, f, sine, cose)
	for range placidusPasses {
		tant = tand(asind(sine * sind(cusp)))
		if math.Abs(tant) < verySmall {
			return rectasc
		}
		f = atand(sind(asind(tanfi*tant)/div) / tant)
		cusp = asc1(rectasc, f, sine, cose)
	}
	return cusp
}

func equalHouses(asc float64) Cusps {
	var c Cusps
	for i := range c {
		c[i] = transform.NormalizeDegrees(asc + float64(i)*30)
	}
	return c
}

func wholeSignHouses(asc float64) Cusps {
	first := math.Floor(transform.NormalizeDegrees(asc)/30) * 30
	var c Cusps
	for i := range c {
		c[i] = transform.NormalizeDegrees(first + float64(i)*30)
	}
	return c
}

// porphyryHouses trisects each quadrant between the angles.
func porphyryHouses(asc, mc float64) Cusps {
	var c Cusps
	c[0], c[9] = asc, mc
	c[3] = transform.NormalizeDegrees(mc + 180)
	c[6] = transform.NormalizeDegrees(asc + 180)

	trisect := func(from, to float64, i1, i2 int) {
		q := transform.NormalizeDegrees(to - from)
		c[i1] = transform.NormalizeDegrees(from + q/3)
		c[i2] = transform.NormalizeDegrees(from + 2*q/3)
	}
	trisect(mc, asc, 10, 11)
	trisect(asc, c[3], 1, 2)
	trisect(c[3], c[6], 4, 5)
	trisect(c[6], mc, 7, 8)
	return c
}

// FindHouse returns the house (1..12) containing an ecliptic longitude.
// A house spans from its cusp up to, not including, the next cusp, and may
// wrap through 0°.
func FindHouse(lon float64, cusps Cusps) int {
	lon = transform.NormalizeDegrees(lon)
	for i := range cusps {
		start, end := cusps[i], cusps[(i+1)%12]
		if start <= end {
			if lon >= start && lon < end {
				return i + 1
			}
		} else if lon >= start || lon < end {
			return i + 1
		}
	}
	return 1
}

// asc1 returns the ecliptic longitude on the eastern horizon of a pole of
// height f for the equator point x1 (all degrees).
func asc1(x1, f, sine, cose float64) float64 {
	x1 = transform.NormalizeDegrees(x1)
	if math.Abs(90-f) < verySmall {
		return 180
	}
	if math.Abs(90+f) < verySmall {
		return 0
	}

	var ass float64
	switch {
	case x1 < 90:
		ass = asc2(x1, f, sine, cose)
	case x1 < 180:
		ass = 180 - asc2(180-x1, -f, sine, cose)
	case x1 < 270:
		ass = 180 + asc2(x1-180, -f, sine, cose)
	default:
		ass = 360 - asc2(360-x1, f, sine, cose)
	}
	ass = transform.NormalizeDegrees(ass)

	for _, cardinal := range []float64{90, 180, 270} {
		if math.Abs(ass-cardinal) < verySmall {
			return cardinal
		}
	}
	if math.Abs(ass-360) < verySmall || math.Abs(ass) < verySmall {
		return 0
	}
	return ass
}

// asc2 is asc1 restricted to the first quadrant.
func asc2(x, f, sine, cose float64) float64 {
	ass := -tand(f)*sine + cose*cosd(x)
	if math.Abs(ass) < verySmall {
		ass = 0
	}
	sinx := sind(x)
	if math.Abs(sinx) < verySmall {
		sinx = 0
	}

	var r float64
	switch {
	case sinx == 0:
		r = verySmall
		if ass < 0 {
			r = -verySmall
		}
	case ass == 0:
		r = 90
		if sinx < 0 {
			r = -90
		}
	default:
		r = atand(sinx / ass)
	}
	if r < 0 {
		return 180 + r
	}
	return r
}

func sind(x float64) float64  { return math.Sin(x * transform.Deg2Rad) }
func cosd(x float64) float64  { return math.Cos(x * transform.Deg2Rad) }
func tand(x float64) float64  { return math.Tan(x * transform.Deg2Rad) }
func asind(x float64) float64 { return math.Asin(math.Max(-1, math.Min(1, x))) * transform.Rad2Deg }
func atand(x float64) float64 { return math.Atan(x) * transform.Rad2Deg }
