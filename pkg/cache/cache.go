// Package cache memoizes the expensive recomputation paths (cells,
// shortcuts) behind go-redis, keyed by a hash of the current edit state;
// impact recalculation is not cached here. Grounded on
// SoySergo-location_microservice/internal/repository/cache/redis.go's
// client construction and
// internal/usecase/poi_tile_usecase.go's get-or-compute-then-set shape.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/azybler/ltn/internal/appconfig"
)

// Cache wraps a redis client with JSON get-or-compute helpers.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// Open connects to the redis instance described by cfg.
func Open(ctx context.Context, cfg appconfig.CacheConfig, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("cache connected", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{client: client, ttl: ttl, logger: logger}, nil
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// EditStateKey hashes the mutable parts of a MapModel's edit state — modal
// filters, diagonal filters, turn restrictions, travel flow overrides, and
// the main road penalty — into a short cache-key component. Two edit
// states that hash equal are guaranteed to route and partition identically,
// since Component C/E/F/H's inputs are exactly this set plus the
// (immutable) base graph.
func EditStateKey(parts ...interface{}) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		_ = enc.Encode(p)
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// GetOrCompute returns the cached JSON value for key, or calls compute,
// caches its result, and returns that. A cache error (connection down,
// serialization failure) falls back to always computing rather than
// failing the request — the cache is an optimization, never a dependency.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, compute func() (T, error)) (T, error) {
	var zero T
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := compute()
	if err != nil {
		return zero, err
	}

	if raw, err := json.Marshal(v); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("cache: failed to store value", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

// Invalidate deletes the named keys, mirroring how counts_after is cleared
// on every edit (spec.md §4.8) and counts_before only on a baseline change.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}
