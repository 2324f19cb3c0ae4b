package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/harshasoftware/halohome-sub007/internal/geo"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations to the database at url.
func Migrate(ctx context.Context, url string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	logger.Info("catalog migrations applied", "version", version)
	return nil
}

// Postgres is a Catalog stored in the cities table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a connection pool and checks it with a ping.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool, logger: logger.With("component", "catalog_pg")}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// Ping checks the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

const cityColumns = `id, name, country, lat, lng, population`

func scanCities(rows pgx.Rows) ([]City, error) {
	defer rows.Close()
	var out []City
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.Lat, &c.Lng, &c.Population); err != nil {
			return nil, fmt.Errorf("scanning city: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cities: %w", err)
	}
	return out, nil
}

// Replace swaps the table contents for cities in one transaction.
func (p *Postgres) Replace(ctx context.Context, cities []City) (err error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM cities`); err != nil {
		return fmt.Errorf("clearing cities: %w", err)
	}
	rows := make([][]any, len(cities))
	for i, c := range cities {
		rows[i] = []any{c.ID, c.Name, c.Country, c.Lat, c.Lng, c.Population}
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"cities"},
		[]string{"id", "name", "country", "lat", "lng", "population"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copying cities: %w", err)
	}
	p.logger.Info("catalog replaced", "cities", n)
	return nil
}

// Len returns the number of stored cities.
func (p *Postgres) Len(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM cities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cities: %w", err)
	}
	return n, nil
}

// WithinBounds returns the cities inside b ordered by id.
func (p *Postgres) WithinBounds(ctx context.Context, b Bounds) ([]City, error) {
	q := `SELECT ` + cityColumns + ` FROM cities
		WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4
		ORDER BY id`
	if b.MinLng > b.MaxLng {
		q = `SELECT ` + cityColumns + ` FROM cities
		WHERE lat BETWEEN $1 AND $2 AND (lng >= $3 OR lng <= $4)
		ORDER BY id`
	}
	rows, err := p.pool.Query(ctx, q, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("querying cities in bounds: %w", err)
	}
	return scanCities(rows)
}

// WithinRadius selects the bounding box in SQL and refines by
// great-circle distance.
func (p *Postgres) WithinRadius(ctx context.Context, lat, lng, km float64) ([]City, error) {
	center := geo.Point{Lat: lat, Lng: lng}
	box := geo.Around(center, km)
	cities, err := p.WithinBounds(ctx, Bounds{MinLat: box.MinLat, MaxLat: box.MaxLat, MinLng: box.MinLng, MaxLng: box.MaxLng})
	if err != nil {
		return nil, err
	}
	out := cities[:0]
	for _, c := range cities {
		if geo.Haversine(center, c.Point()) <= km {
			out = append(out, c)
		}
	}
	return out, nil
}

// nearestRadiiKm are the search radii tried by Nearest before falling back
// to a full scan.
var nearestRadiiKm = []float64{50, 250, 1000, 5000}

// Nearest searches growing radii around (lat, lng).
func (p *Postgres) Nearest(ctx context.Context, lat, lng float64) (City, error) {
	center := geo.Point{Lat: lat, Lng: lng}
	for _, km := range nearestRadiiKm {
		cities, err := p.WithinRadius(ctx, lat, lng, km)
		if err != nil {
			return City{}, err
		}
		if c, ok := closest(center, cities); ok {
			return c, nil
		}
	}

	rows, err := p.pool.Query(ctx, `SELECT `+cityColumns+` FROM cities`)
	if err != nil {
		return City{}, fmt.Errorf("querying cities: %w", err)
	}
	cities, err := scanCities(rows)
	if err != nil {
		return City{}, err
	}
	if c, ok := closest(center, cities); ok {
		return c, nil
	}
	return City{}, ErrEmpty
}

func closest(p geo.Point, cities []City) (City, bool) {
	best, bestD := -1, math.Inf(1)
	for i := range cities {
		if d := geo.Haversine(p, cities[i].Point()); d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return City{}, false
	}
	return cities[best], true
}

// IsNotFound reports whether err means the catalog had nothing to return.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmpty) || errors.Is(err, pgx.ErrNoRows)
}
