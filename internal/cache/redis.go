package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/config"
	"github.com/stocktide/stocktide/internal/confidence"
)

const confidenceKeyPrefix = "stocktide:confidence:"

// RedisConfidenceCache stores serialized confidence results in Redis with a
// short TTL so repeated reads within a cycle do not re-run the scorer.
type RedisConfidenceCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisConfidenceCache connects to Redis and verifies the connection.
func NewRedisConfidenceCache(ctx context.Context, cfg config.RedisConfig) (*RedisConfidenceCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisConfidenceCache{
		client: client,
		ttl:    cfg.TTL,
		log:    log.With().Str("component", "redis_cache").Logger(),
	}, nil
}

// NewRedisConfidenceCacheWithClient wraps an existing client. Used by tests
// with redismock.
func NewRedisConfidenceCacheWithClient(client *redis.Client, ttl time.Duration) *RedisConfidenceCache {
	return &RedisConfidenceCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "redis_cache").Logger(),
	}
}

// Get returns the cached confidence result for a key, or false on miss,
// expiry, or any Redis error. Errors never block scoring.
func (c *RedisConfidenceCache) Get(ctx context.Context, key string) (*confidence.Result, bool) {
	raw, err := c.client.Get(ctx, confidenceKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	var res confidence.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("corrupt cached confidence result")
		return nil, false
	}
	return &res, true
}

// Set stores a confidence result under the prefixed key with the configured TTL.
func (c *RedisConfidenceCache) Set(ctx context.Context, key string, res *confidence.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal confidence result: %w", err)
	}
	if err := c.client.Set(ctx, confidenceKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Name identifies the cache in health reports.
func (c *RedisConfidenceCache) Name() string { return "redis" }

// Ping tests connectivity.
func (c *RedisConfidenceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *RedisConfidenceCache) Close() error {
	return c.client.Close()
}
