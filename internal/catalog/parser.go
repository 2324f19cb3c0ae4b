package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Parse reads a CSV catalog from r. Columns are located by header name:
// name, country, lat and lng are required, id and population optional.
// Malformed rows are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]City, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, req := range []string{"name", "country", "lat", "lng"} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrBadHeader, req)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var cities []City
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable catalog row", "line", line, "error", err)
			continue
		}

		name := field(rec, "name")
		lat, latErr := strconv.ParseFloat(field(rec, "lat"), 64)
		lng, lngErr := strconv.ParseFloat(field(rec, "lng"), 64)
		if name == "" || latErr != nil || lngErr != nil ||
			math.Abs(lat) > 90 || math.Abs(lng) > 180 {
			logger.Warn("skipping malformed catalog row", "line", line, "name", name)
			continue
		}

		c := City{
			ID:      field(rec, "id"),
			Name:    name,
			Country: field(rec, "country"),
			Lat:     lat,
			Lng:     lng,
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(name, " ", "-")), line)
		}
		if v := field(rec, "population"); v != "" {
			pop, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				logger.Warn("ignoring invalid population", "line", line, "value", v)
			} else {
				c.Population = pop
			}
		}
		cities = append(cities, c)
	}
	return cities, nil
}
