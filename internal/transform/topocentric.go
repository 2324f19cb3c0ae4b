package transform

import "math"

// ObserverPosition holds a ground observer's geodetic location. The
// trigonometric terms are precomputed once so they can be reused across
// many body lookups from the same site.
type ObserverPosition struct {
	LatRad, LonRad float64

	sinLat, cosLat float64
	sinLon, cosLon float64
}

// LookAngles holds azimuth and altitude of a body as seen by an observer.
type LookAngles struct {
	AzimuthDeg  float64 // 0 = North, clockwise
	AltitudeDeg float64 // 0 = horizon, 90 = zenith
}

// NewObserverPosition creates an ObserverPosition from latitude and
// longitude in degrees. Directions to celestial bodies are parallax-free,
// so the site is treated as a point on the sphere.
func NewObserverPosition(latDeg, lonDeg float64) ObserverPosition {
	lat := latDeg * Deg2Rad
	lon := lonDeg * Deg2Rad
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	return ObserverPosition{
		LatRad: lat,
		LonRad: lon,
		sinLat: sinLat,
		cosLat: cosLat,
		sinLon: sinLon,
		cosLon: cosLon,
	}
}

// EquatorialToLookAngles computes azimuth and altitude of a body at right
// ascension ra and declination dec (radians) for an observer, given
// Greenwich sidereal time gmst in radians.
//
// The body's Earth-fixed direction is rotated into the SEZ
// (South-East-Zenith) topocentric frame per Vallado Section 4.4.
func EquatorialToLookAngles(obs ObserverPosition, ra, dec, gmst float64) LookAngles {
	sinD, cosD := math.Sincos(dec)
	sinL, cosL := math.Sincos(ra - gmst) // Earth-fixed longitude of the body
	return sezLookAngles(obs, cosD*cosL, cosD*sinL, sinD)
}

// Altitude returns a body's altitude in degrees for a site given in degrees.
func Altitude(latDeg, lonDeg, ra, dec, gmst float64) float64 {
	return EquatorialToLookAngles(NewObserverPosition(latDeg, lonDeg), ra, dec, gmst).AltitudeDeg
}

// sezLookAngles rotates an Earth-fixed direction vector into SEZ and
// derives azimuth and altitude.
func sezLookAngles(obs ObserverPosition, rx, ry, rz float64) LookAngles {
	south := obs.sinLat*obs.cosLon*rx + obs.sinLat*obs.sinLon*ry - obs.cosLat*rz
	east := -obs.sinLon*rx + obs.cosLon*ry
	zenith := obs.cosLat*obs.cosLon*rx + obs.cosLat*obs.sinLon*ry + obs.sinLat*rz

	mag := math.Sqrt(south*south + east*east + zenith*zenith)
	if mag == 0 {
		return LookAngles{}
	}

	el := math.Asin(clamp1(zenith / mag))

	// In SEZ, North = -South direction, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:  az * Rad2Deg,
		AltitudeDeg: el * Rad2Deg,
	}
}
