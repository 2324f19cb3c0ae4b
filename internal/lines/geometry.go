package lines

import (
	"math"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

const (
	degenerateEps = 1e-9
	polarLat      = 89.0
	polarStep     = 2.0
)

// MCLongitude returns the longitude (degrees, (-180, 180]) where a body
// with right ascension ra culminates. ra and gmst are radians.
func MCLongitude(ra, gmst float64) float64 {
	return transform.NormalizeLongitude((ra - gmst) * transform.Rad2Deg)
}

// ICLongitude is the MC longitude plus 180°.
func ICLongitude(ra, gmst float64) float64 {
	return transform.NormalizeLongitude((ra-gmst)*transform.Rad2Deg + 180)
}

// hourAngle returns the body's hour angle at a longitude, in (-π, π].
func hourAngle(ra, gmst, lngDeg float64) float64 {
	return transform.SignedRadians(gmst + lngDeg*transform.Deg2Rad - ra)
}

// HorizonLatitude solves altitude = 0 for latitude at one longitude. ok is
// false when no single latitude exists: either the body never crosses the
// horizon there, or every latitude does (see AllLatitudesOnHorizon).
func HorizonLatitude(ra, dec, gmst, lngDeg float64) (lat float64, ok bool) {
	sinD, cosD := math.Sincos(dec)
	if math.Abs(sinD) < degenerateEps {
		return 0, false
	}
	h := hourAngle(ra, gmst, lngDeg)
	lat = math.Atan(-cosD*math.Cos(h)/sinD) * transform.Rad2Deg
	return math.Max(-90, math.Min(90, lat)), true
}

// AllLatitudesOnHorizon reports the degenerate case of an equatorial body
// at hour angle ±90°, where the whole meridian is on the horizon.
func AllLatitudesOnHorizon(ra, dec, gmst, lngDeg float64) bool {
	h := hourAngle(ra, gmst, lngDeg)
	return math.Abs(math.Sin(dec)) < degenerateEps && math.Abs(math.Cos(h)) < degenerateEps
}

// Rising reports whether a body is east of the meridian at a longitude.
func Rising(ra, gmst, lngDeg float64) bool {
	return math.Sin(hourAngle(ra, gmst, lngDeg)) < 0
}

// LongitudeAtLatitude returns the longitude where a body sits on angle at
// a given latitude. Horizon angles have no solution when the body is
// circumpolar or never rises at that latitude.
func LongitudeAtLatitude(ra, dec, gmst, latDeg float64, angle Angle) (float64, bool) {
	switch angle {
	case MC:
		return MCLongitude(ra, gmst), true
	case IC:
		return ICLongitude(ra, gmst), true
	case ASC, DSC:
		cosH := -math.Tan(latDeg*transform.Deg2Rad) * math.Tan(dec)
		if math.Abs(cosH) > 1 {
			return 0, false
		}
		h := math.Acos(cosH)
		if angle == ASC {
			h = -h
		}
		return transform.NormalizeLongitude((ra + h - gmst) * transform.Rad2Deg), true
	default:
		return 0, false
	}
}

// meridianLine draws a constant-longitude line over the latitude span.
func meridianLine(body ephemeris.Body, angle Angle, ra, gmst float64, opts Options) Line {
	lng := MCLongitude(ra, gmst)
	if angle == IC {
		lng = ICLongitude(ra, gmst)
	}
	n := int(math.Floor((opts.MaxLat-opts.MinLat)/opts.LatitudeStep+1e-9)) + 1
	pts := make([]geo.Point, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, geo.Point{Lat: opts.MinLat + float64(i)*opts.LatitudeStep, Lng: lng})
	}
	return Line{Body: body, Angle: angle, Points: pts, Longitude: &lng}
}

// horizonLines samples every longitude and splits the solutions into the
// rising (ASC) and setting (DSC) curves.
func horizonLines(body ephemeris.Body, ra, dec, gmst float64, opts Options) (asc, dsc Line) {
	step := opts.LongitudeStep
	if math.Abs(dec*transform.Rad2Deg) < 10 {
		step = math.Min(step, 0.5)
	}

	asc = Line{Body: body, Angle: ASC}
	dsc = Line{Body: body, Angle: DSC}
	n := int(math.Floor(360/step+1e-9)) + 1
	for i := 0; i < n; i++ {
		lng := -180 + float64(i)*step
		target := &dsc
		if Rising(ra, gmst, lng) {
			target = &asc
		}

		if AllLatitudesOnHorizon(ra, dec, gmst, lng) {
			for lat := -polarLat; lat <= polarLat; lat += polarStep {
				target.Points = append(target.Points, geo.Point{Lat: lat, Lng: lng})
			}
			continue
		}
		if lat, ok := HorizonLatitude(ra, dec, gmst, lng); ok {
			target.Points = append(target.Points, geo.Point{Lat: lat, Lng: lng})
		}
	}

	asc.Breaks = segmentBreaks(asc.Points, step, opts.BreakThreshold)
	dsc.Breaks = segmentBreaks(dsc.Points, step, opts.BreakThreshold)
	return asc, dsc
}

// segmentBreaks marks where consecutive points must not be joined: a
// latitude jump of at least threshold, or a longitude gap left by omitted
// samples.
func segmentBreaks(pts []geo.Point, step, threshold float64) []int {
	var breaks []int
	for i := 1; i < len(pts); i++ {
		dLat := math.Abs(pts[i].Lat - pts[i-1].Lat)
		dLng := pts[i].Lng - pts[i-1].Lng
		if dLat >= threshold || dLng > 1.5*step {
			breaks = append(breaks, i)
		}
	}
	return breaks
}

// aspectCoordinates returns the equatorial position of the point θ away
// from a body, in the chosen mode. eps is the true obliquity in radians.
func aspectCoordinates(pos ephemeris.Position, theta float64, mode AspectMode, eps float64) (ra, dec float64) {
	if mode == AspectModeEcliptic {
		lon := (pos.Lon + theta) * transform.Deg2Rad
		return transform.EclipticToEquatorial(lon, 0, eps)
	}
	return transform.NormalizeRadians(pos.RA + theta*transform.Deg2Rad), pos.Dec
}
