package chart

import (
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

// maxLatitude keeps tan(φ) finite in the ascendant formula.
const maxLatitude = 89.9

// Angles are the four chart angles as ecliptic longitudes in degrees,
// together with the sidereal angle they were computed from.
type Angles struct {
	ASC  float64 `json:"ascendant"`
	MC   float64 `json:"midheaven"`
	DSC  float64 `json:"descendant"`
	IC   float64 `json:"imum_coeli"`
	ARMC float64 `json:"armc"` // right ascension of the MC, degrees
}

// ComputeAngles returns the angles for a local sidereal angle armc, a
// geographic latitude and the obliquity, all in degrees.
func ComputeAngles(armc, lat, eps float64) Angles {
	ramc := armc * transform.Deg2Rad
	phi := clampLatitude(lat) * transform.Deg2Rad
	e := eps * transform.Deg2Rad

	sinR, cosR := math.Sincos(ramc)
	sinE, cosE := math.Sincos(e)

	asc := transform.NormalizeDegrees(math.Atan2(cosR, -sinR*cosE-math.Tan(phi)*sinE) * transform.Rad2Deg)
	mc := transform.NormalizeDegrees(math.Atan2(sinR, cosR*cosE) * transform.Rad2Deg)
	if math.IsNaN(asc) {
		asc = 0
	}
	if math.IsNaN(mc) {
		mc = 0
	}

	return Angles{
		ASC:  asc,
		MC:   mc,
		DSC:  transform.NormalizeDegrees(asc + 180),
		IC:   transform.NormalizeDegrees(mc + 180),
		ARMC: transform.NormalizeDegrees(armc),
	}
}

// shift returns a copy of the angles with a zodiac offset subtracted from
// each longitude.
func (a Angles) shift(offset float64) Angles {
	a.ASC = transform.NormalizeDegrees(a.ASC - offset)
	a.MC = transform.NormalizeDegrees(a.MC - offset)
	a.DSC = transform.NormalizeDegrees(a.DSC - offset)
	a.IC = transform.NormalizeDegrees(a.IC - offset)
	return a
}

func clampLatitude(lat float64) float64 {
	return math.Max(-maxLatitude, math.Min(maxLatitude, lat))
}
