package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
)

// Backend stores positions. Implementations are safe for concurrent use.
type Backend interface {
	// Name identifies the backend in stats and logs.
	Name() string
	// Get returns the stored position and when it was stored.
	Get(ctx context.Context, key Key) (ephemeris.Position, time.Time, bool, error)
	// Put stores a position stamped with now.
	Put(ctx context.Context, key Key, pos ephemeris.Position, now time.Time) error
	// Sweep removes at most batch entries older than ttl and returns how
	// many it removed.
	Sweep(ctx context.Context, now time.Time, ttl time.Duration, batch int) (int, error)
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
	Close() error
}

type memoryEntry struct {
	pos      ephemeris.Position
	storedAt time.Time
}

type queued struct {
	key      Key
	storedAt time.Time
}

// Memory is an in-process Backend. Entries are swept oldest first in
// insertion order, so a sweep never scans the whole table.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	order   []queued
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]memoryEntry)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(_ context.Context, key Key) (ephemeris.Position, time.Time, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	return e.pos, e.storedAt, ok, nil
}

func (m *Memory) Put(_ context.Context, key Key, pos ephemeris.Position, now time.Time) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry{pos: pos, storedAt: now}
	m.order = append(m.order, queued{key: key, storedAt: now})
	m.mu.Unlock()
	return nil
}

// Sweep pops expired keys off the insertion queue. A queued key that was
// stored again since is dropped from the queue without deleting the newer
// entry; it still counts against the batch.
func (m *Memory) Sweep(_ context.Context, now time.Time, ttl time.Duration, batch int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var visited, removed int
	for visited < batch && len(m.order) > 0 {
		q := m.order[0]
		if now.Sub(q.storedAt) < ttl {
			break
		}
		m.order = m.order[1:]
		visited++
		if e, ok := m.entries[q.key]; ok && e.storedAt.Equal(q.storedAt) {
			delete(m.entries, q.key)
			removed++
		}
	}
	if len(m.order) == 0 {
		m.order = nil
	}
	return removed, nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *Memory) Close() error { return nil }

// Redis stores positions as JSON with a server-side expiry, so Sweep has
// nothing to do.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis wraps a connected client. Keys expire after ttl.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "acg:pos:"}
}

type redisEntry struct {
	Position ephemeris.Position `json:"position"`
	StoredAt time.Time          `json:"stored_at"`
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) key(k Key) string { return r.prefix + k.String() }

func (r *Redis) Get(ctx context.Context, key Key) (ephemeris.Position, time.Time, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ephemeris.Position{}, time.Time{}, false, nil
	}
	if err != nil {
		return ephemeris.Position{}, time.Time{}, false, fmt.Errorf("redis get: %w", err)
	}
	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return ephemeris.Position{}, time.Time{}, false, fmt.Errorf("decoding cached position: %w", err)
	}
	return e.Position, e.StoredAt, true, nil
}

func (r *Redis) Put(ctx context.Context, key Key, pos ephemeris.Position, now time.Time) error {
	data, err := json.Marshal(redisEntry{Position: pos, StoredAt: now})
	if err != nil {
		return fmt.Errorf("encoding position: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Sweep(context.Context, time.Time, time.Duration, int) (int, error) { return 0, nil }

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("redis dbsize: %w", err)
	}
	return int(n), nil
}

func (r *Redis) Close() error { return r.client.Close() }

// dialTimeout bounds the startup connectivity check.
const dialTimeout = 2 * time.Second

// Dial connects to Redis and pings it.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.DialTimeout = dialTimeout
	opts.MaxRetries = 0

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// OpenBackend returns a Redis backend for url, or the in-memory backend
// when url is empty or Redis cannot be reached. The client is returned
// too so the score cache can share it; it is nil on fallback.
func OpenBackend(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (Backend, *redis.Client) {
	if url == "" {
		return NewMemory(), nil
	}
	client, err := Dial(ctx, url)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory cache", "error", err)
		return NewMemory(), nil
	}
	logger.Info("redis cache connected", "addr", client.Options().Addr)
	return NewRedis(client, ttl), client
}
