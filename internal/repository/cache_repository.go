package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
)

// CacheRepository keeps derived payloads, primarily generated slot listings,
// in Redis. A nil client turns every operation into a no-op miss so the API
// runs without Redis in development.
type CacheRepository struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	return &CacheRepository{rdb: client, log: logger}
}

// Get unmarshals the cached value at key into dest. Misses surface as
// appErrors.ErrCacheMiss so callers can tell "not cached" from a Redis failure.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.rdb == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("cache read %q: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode cached %q: %w", key, err)
	}
	return nil
}

// Set stores value at key for ttl. With no client configured it silently
// drops the write.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.rdb == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	if err := r.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache write %q: %w", key, err)
	}
	return nil
}

// DeleteByPattern removes every key matching pattern, collecting matches via
// SCAN and deleting them in one round trip. Schedule writes use this to drop
// a doctor's slot listings.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.rdb == nil {
		return nil
	}

	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate %q: %w", pattern, err)
	}
	r.log.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("keys", len(keys)))
	return nil
}
