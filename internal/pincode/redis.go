package pincode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

const redisKeyPrefix = "pin:"

// RedisCache is the distributed cache tier. Connection failures degrade to
// misses and are logged, never propagated: an unavailable tier only forces a
// more expensive fallback.
type RedisCache struct {
	client  *redis.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRedisCache wraps a Redis client as a cache tier.
func NewRedisCache(client *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, metrics: metrics, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	pin, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.metrics.PinCacheLookups.WithLabelValues("redis", "error").Inc()
			c.logger.Warn("redis get failed, degrading to miss", "key", key, "error", err)
			return "", false
		}
		c.metrics.PinCacheLookups.WithLabelValues("redis", "miss").Inc()
		return "", false
	}
	c.metrics.PinCacheLookups.WithLabelValues("redis", "hit").Inc()
	return pin, true
}

func (c *RedisCache) Set(ctx context.Context, key, pin string, ttl time.Duration) {
	if err := c.client.Set(ctx, redisKeyPrefix+key, pin, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed, local tier only", "key", key, "error", err)
	}
}
