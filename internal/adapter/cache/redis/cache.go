// Package redis provides a read-through cache for deterministic model calls.
//
// Intent labels and translations are produced at zero temperature, so the
// same input yields the same output; caching them saves provider calls. All
// cache failures are fail-open: a broken Redis never degrades a request
// beyond an extra provider call.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache is a small namespaced string cache. A nil *Cache is valid and always
// misses, so callers need no nil checks at call sites.
type Cache struct {
	rdb *goredis.Client
	ttl time.Duration
}

// New connects to Redis at addr. TTL bounds entry lifetime.
func New(addr string, ttl time.Duration) *Cache {
	return NewWithClient(goredis.NewClient(&goredis.Options{Addr: addr}), ttl)
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(rdb *goredis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get returns the cached value for (kind, key) and whether it was present.
func (c *Cache) Get(ctx context.Context, kind, key string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	v, err := c.rdb.Get(ctx, cacheKey(kind, key)).Result()
	if err != nil {
		if err != goredis.Nil {
			slog.Debug("cache get failed", slog.String("kind", kind), slog.Any("error", err))
		}
		return "", false
	}
	return v, true
}

// Set stores value under (kind, key). Errors are logged and swallowed.
func (c *Cache) Set(ctx context.Context, kind, key, value string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(kind, key), value, c.ttl).Err(); err != nil {
		slog.Debug("cache set failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

// Ping checks connectivity; used by readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func cacheKey(kind, key string) string {
	h := sha256.Sum256([]byte(key))
	return "ia:" + kind + ":" + hex.EncodeToString(h[:])
}
