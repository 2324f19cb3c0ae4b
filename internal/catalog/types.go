// Package catalog provides the city catalog locations are scouted from:
// an in-memory snapshot loaded from CSV and a Postgres-backed store.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/geo"
)

var (
	// ErrEmpty is returned when no catalog has been loaded.
	ErrEmpty = errors.New("catalog is empty")
	// ErrBadHeader is returned for CSV input missing a required column.
	ErrBadHeader = errors.New("catalog header missing required column")
)

// City is one catalog entry.
type City struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Population int64   `json:"population,omitempty"`
}

// Point returns the city's location.
func (c City) Point() geo.Point { return geo.Point{Lat: c.Lat, Lng: c.Lng} }

// Bounds is a latitude/longitude rectangle. MinLng > MaxLng wraps across
// the antimeridian.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

func (b Bounds) box() geo.BBox {
	return geo.BBox{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLng: b.MinLng, MaxLng: b.MaxLng}
}

// Contains reports whether c lies inside b.
func (b Bounds) Contains(c City) bool { return b.box().Contains(c.Point()) }

// Catalog looks up cities by location.
type Catalog interface {
	Nearest(ctx context.Context, lat, lng float64) (City, error)
	WithinBounds(ctx context.Context, b Bounds) ([]City, error)
	WithinRadius(ctx context.Context, lat, lng, km float64) ([]City, error)
}

// Dataset is a complete catalog snapshot.
type Dataset struct {
	Source   string
	LoadedAt time.Time
	Cities   []City
}
