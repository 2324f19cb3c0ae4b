package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harshasoftware/halohome-sub007/internal/metrics"
)

// LoaderConfig selects where the in-memory catalog comes from. File wins
// over URL; fetched data is kept in CacheDir and reloaded from there when
// the source is unreachable.
type LoaderConfig struct {
	File     string
	URL      string
	CacheDir string
	MaxFiles int
	Refresh  string // cron spec, empty disables refresh
}

// Loader fills a Memory catalog from its configured source.
type Loader struct {
	config  LoaderConfig
	memory  *Memory
	fetcher *Fetcher
	disk    *DiskCache
	logger  *slog.Logger
	now     func() time.Time
	onLoad  []func(context.Context, *Dataset) error
}

// NewLoader creates a loader for memory.
func NewLoader(config LoaderConfig, memory *Memory, logger *slog.Logger) *Loader {
	l := &Loader{
		config: config,
		memory: memory,
		logger: logger.With("component", "catalog"),
		now:    time.Now,
	}
	if config.URL != "" {
		l.fetcher = NewFetcher(config.URL, l.logger)
	}
	if config.CacheDir != "" {
		l.disk = NewDiskCache(config.CacheDir, config.MaxFiles)
	}
	return l
}

// OnLoad registers fn to run after every successful load, with the new
// snapshot. A hook error is logged and does not fail the load.
func (l *Loader) OnLoad(fn func(context.Context, *Dataset) error) {
	l.onLoad = append(l.onLoad, fn)
}

// Load reads the catalog once and swaps it in. A failed load leaves the
// previous snapshot in place.
func (l *Loader) Load(ctx context.Context) error {
	l.memory.mu.Lock()
	defer l.memory.mu.Unlock()

	data, source, ts, err := l.read(ctx)
	if err != nil {
		metrics.RecordCatalogRefresh("error")
		return err
	}

	cities, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		metrics.RecordCatalogRefresh("error")
		return fmt.Errorf("parsing catalog from %s: %w", source, err)
	}
	if len(cities) == 0 {
		metrics.RecordCatalogRefresh("error")
		return fmt.Errorf("catalog from %s: %w", source, ErrEmpty)
	}

	ds := &Dataset{Source: source, LoadedAt: ts, Cities: cities}
	l.memory.Set(ds)
	metrics.SetCatalogSize(len(cities))
	metrics.RecordCatalogRefresh("ok")
	l.logger.Info("catalog loaded", "source", source, "cities", len(cities), "loaded_at", ts.Format(time.RFC3339))

	for _, fn := range l.onLoad {
		if err := fn(ctx, ds); err != nil {
			l.logger.Warn("catalog load hook failed", "error", err)
		}
	}
	return nil
}

func (l *Loader) read(ctx context.Context) ([]byte, string, time.Time, error) {
	if l.config.File != "" {
		data, err := os.ReadFile(l.config.File)
		if err != nil {
			return nil, "", time.Time{}, fmt.Errorf("reading catalog file: %w", err)
		}
		return data, l.config.File, l.now(), nil
	}

	var fetchErr error
	if l.fetcher != nil {
		data, err := l.fetcher.Fetch(ctx)
		if err == nil {
			ts := l.now()
			if l.disk != nil {
				if err := l.disk.Write(data, ts); err != nil {
					l.logger.Warn("failed to write catalog cache", "error", err)
				}
			}
			return data, l.fetcher.SourceURL(), ts, nil
		}
		fetchErr = err
		l.logger.Warn("catalog fetch failed, trying disk cache", "url", l.fetcher.SourceURL(), "error", err)
	}

	if l.disk != nil {
		data, ts, err := l.disk.LoadLatest()
		if err == nil {
			return data, "cache", ts, nil
		}
		fetchErr = errors.Join(fetchErr, err)
	}

	if fetchErr == nil {
		fetchErr = errors.New("no catalog source configured")
	}
	return nil, "", time.Time{}, fetchErr
}

// StartRefresh schedules Load on the configured cron spec until ctx is
// cancelled. It returns without scheduling when no spec is set.
func (l *Loader) StartRefresh(ctx context.Context) error {
	if l.config.Refresh == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(l.config.Refresh, func() {
		if err := l.Load(ctx); err != nil {
			l.logger.Warn("catalog refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", l.config.Refresh, err)
	}
	c.Start()
	l.logger.Info("catalog refresh scheduled", "spec", l.config.Refresh)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		l.logger.Info("catalog refresh stopped")
	}()
	return nil
}
