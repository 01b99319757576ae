package core

import (
	"context"
	"fmt"
	"time"

	"scoreline/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache wraps a go-redis client with the few primitives the admission
// windows need.
type RedisCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// Ping tests the Redis connection
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// IncrWindow increments the counter stored at key and returns the new value.
// The key expires window after the first increment, so the counter resets at
// the end of each fixed window.
func (rc *RedisCache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := rc.client.Incr(ctx, key).Result()
	if err != nil {
		metrics.AdmissionBackendErrors.WithLabelValues("redis", "incr").Inc()
		return 0, fmt.Errorf("incr window %s: %w", key, err)
	}
	if count == 1 {
		if err := rc.client.PExpire(ctx, key, window).Err(); err != nil {
			metrics.AdmissionBackendErrors.WithLabelValues("redis", "expire").Inc()
			return 0, fmt.Errorf("expire window %s: %w", key, err)
		}
	}
	return count, nil
}

// TTL returns the remaining time to live of key.
func (rc *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := rc.client.PTTL(ctx, key).Result()
	if err != nil {
		metrics.AdmissionBackendErrors.WithLabelValues("redis", "ttl").Inc()
		return 0, err
	}
	return ttl, nil
}

// Cache key prefixes
const (
	CacheKeyAdmissionPrefix = "admission:"
)

// GetAdmissionCacheKey builds the window counter key for a profile and client.
func GetAdmissionCacheKey(profile, client string) string {
	return CacheKeyAdmissionPrefix + profile + ":" + client
}
