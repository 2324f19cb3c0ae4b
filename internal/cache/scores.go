package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/harshasoftware/halohome-sub007/internal/metrics"
)

const scoresCache = "scores"

// ScoreKey derives the cache key for a scoring request: a hex SHA-256 over
// the instant, the location, the category and any further request
// parameters, in order.
func ScoreKey(jd, lat, lng float64, category string, params ...string) string {
	h := sha256.New()
	for _, f := range []float64{jd, lat, lng} {
		h.Write([]byte(strconv.FormatFloat(f, 'g', -1, 64)))
		h.Write([]byte{0})
	}
	h.Write([]byte(category))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ScoreCache holds encoded score results in an LRU, optionally backed by
// Redis. A miss only means the caller recomputes.
type ScoreCache struct {
	lru    *lru.Cache[string, []byte]
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewScoreCache creates a cache of size entries. client may be nil.
func NewScoreCache(size int, client *redis.Client, ttl time.Duration, logger *slog.Logger) (*ScoreCache, error) {
	l, err := lru.NewWithEvict(size, func(string, []byte) {
		metrics.RecordCacheEvictions(scoresCache, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("creating score cache: %w", err)
	}
	return &ScoreCache{lru: l, redis: client, ttl: ttl, logger: logger}, nil
}

func (c *ScoreCache) redisKey(key string) string { return "acg:score:" + key }

// Get returns the blob for key, looking in Redis after the LRU.
func (c *ScoreCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if blob, ok := c.lru.Get(key); ok {
		metrics.RecordCacheHit(scoresCache)
		return blob, true
	}
	if c.redis != nil {
		blob, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
		switch {
		case err == nil:
			c.lru.Add(key, blob)
			metrics.RecordCacheHit(scoresCache)
			return blob, true
		case !errors.Is(err, redis.Nil):
			c.logger.Debug("score cache redis read failed", "error", err)
		}
	}
	metrics.RecordCacheMiss(scoresCache)
	return nil, false
}

// Put stores blob under key.
func (c *ScoreCache) Put(ctx context.Context, key string, blob []byte) {
	c.lru.Add(key, blob)
	metrics.SetCacheEntries(scoresCache, c.lru.Len())
	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, c.redisKey(key), blob, c.ttl).Err(); err != nil {
		c.logger.Debug("score cache redis write failed", "error", err)
	}
}

// Len returns the number of entries in the LRU.
func (c *ScoreCache) Len() int { return c.lru.Len() }
