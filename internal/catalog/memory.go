package catalog

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/geo"
)

// Memory serves lookups from an in-memory snapshot that can be swapped
// atomically while readers are active.
type Memory struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes loads
}

// NewMemory creates an empty catalog.
func NewMemory() *Memory {
	return &Memory{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (m *Memory) Get() *Dataset {
	return m.dataset.Load()
}

// Set atomically replaces the current dataset.
func (m *Memory) Set(ds *Dataset) {
	m.dataset.Store(ds)
}

// Len returns the number of cities in the current snapshot.
func (m *Memory) Len() int {
	if ds := m.dataset.Load(); ds != nil {
		return len(ds.Cities)
	}
	return 0
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (m *Memory) AgeSeconds() float64 {
	ds := m.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.LoadedAt).Seconds()
}

func (m *Memory) cities() ([]City, error) {
	ds := m.dataset.Load()
	if ds == nil || len(ds.Cities) == 0 {
		return nil, ErrEmpty
	}
	return ds.Cities, nil
}

// Nearest returns the city closest to (lat, lng).
func (m *Memory) Nearest(_ context.Context, lat, lng float64) (City, error) {
	cities, err := m.cities()
	if err != nil {
		return City{}, err
	}
	p := geo.Point{Lat: lat, Lng: lng}
	best, bestD := 0, math.Inf(1)
	for i := range cities {
		if d := geo.Haversine(p, cities[i].Point()); d < bestD {
			best, bestD = i, d
		}
	}
	return cities[best], nil
}

// WithinBounds returns the cities inside b, in catalog order.
func (m *Memory) WithinBounds(_ context.Context, b Bounds) ([]City, error) {
	cities, err := m.cities()
	if err != nil {
		return nil, err
	}
	var out []City
	for _, c := range cities {
		if b.Contains(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// WithinRadius returns the cities within km of (lat, lng), in catalog
// order.
func (m *Memory) WithinRadius(_ context.Context, lat, lng, km float64) ([]City, error) {
	cities, err := m.cities()
	if err != nil {
		return nil, err
	}
	center := geo.Point{Lat: lat, Lng: lng}
	box := geo.Around(center, km)
	var out []City
	for _, c := range cities {
		if box.Contains(c.Point()) && geo.Haversine(center, c.Point()) <= km {
			out = append(out, c)
		}
	}
	return out, nil
}
