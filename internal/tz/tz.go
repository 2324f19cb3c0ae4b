// Package tz resolves local civil time at a coordinate to UTC.
package tz

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ringsaturn/tzf"
)

// Resolver maps coordinates to IANA time zones. A Resolver with no finder
// (e.g. when the polygon data failed to load) uses the longitude-based
// nautical offset for every lookup.
type Resolver struct {
	finder tzf.F
	logger *slog.Logger
}

// NewResolver loads the bundled time zone polygons. Failure to load is not
// fatal: the returned Resolver falls back to longitude offsets.
func NewResolver(logger *slog.Logger) *Resolver {
	r := &Resolver{logger: logger.With("component", "tz")}
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		r.logger.Warn("time zone finder unavailable, using longitude offsets", "error", err)
		return r
	}
	r.finder = f
	return r
}

// Location returns the time zone in effect at (lat, lng).
func (r *Resolver) Location(lat, lng float64) *time.Location {
	if r != nil && r.finder != nil {
		if name := r.finder.GetTimezoneName(lng, lat); name != "" {
			loc, err := time.LoadLocation(name)
			if err == nil {
				return loc
			}
			r.logger.Debug("time zone not in tzdata, using longitude offset", "zone", name, "error", err)
		}
	}
	return FixedOffset(lng)
}

// FixedOffset returns the nautical zone for a longitude, rounded to the
// nearest half hour.
func FixedOffset(lng float64) *time.Location {
	hours := math.Round(lng/15.0*2) / 2
	secs := int(hours * 3600)
	sign := '+'
	if secs < 0 {
		sign = '-'
	}
	abs := secs
	if abs < 0 {
		abs = -abs
	}
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, abs/3600, (abs%3600)/60)
	return time.FixedZone(name, secs)
}

// ToUTC interprets a wall-clock date and time as local time at (lat, lng)
// and returns the corresponding UTC instant.
func (r *Resolver) ToUTC(year int, month time.Month, day, hour, min, sec int, lat, lng float64) time.Time {
	loc := r.Location(lat, lng)
	return time.Date(year, month, day, hour, min, sec, 0, loc).UTC()
}

// ParseLocal parses "2006-01-02T15:04[:05]" as wall time at (lat, lng).
func (r *Resolver) ParseLocal(value string, lat, lng float64) (time.Time, error) {
	loc := r.Location(lat, lng)
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse local time %q: expected YYYY-MM-DDTHH:MM[:SS]", value)
}
