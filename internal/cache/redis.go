package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RedisCache implements Cache on Redis with JSON values. All operations run
// through a circuit breaker so a degraded Redis cannot slow the hot path: once
// the breaker opens, every call short-circuits to a miss until Redis recovers.
type RedisCache struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	c := &RedisCache{client: client, logger: logger}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-cache",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.cb.Execute(func() (any, error) {
		return c.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		}
		c.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(data.([]byte), dest); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss", zap.String("key", key), zap.Error(err))
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	return true
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if _, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Set(ctx, key, data, ttl).Err()
	}); err != nil {
		c.logger.Debug("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if _, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Del(ctx, key).Err()
	}); err != nil {
		// An entry that could not be invalidated will still age out via TTL.
		c.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Exists(ctx context.Context, key string) bool {
	n, err := c.cb.Execute(func() (any, error) {
		return c.client.Exists(ctx, key).Result()
	})
	if err != nil {
		return false
	}
	return n.(int64) > 0
}

// Stats returns cumulative hit/miss counters for health logging.
func (c *RedisCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
