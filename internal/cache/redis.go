package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/models"
)

const redisKeyPrefix = "prism:response:"

// RedisCache stores responses in Redis so multiple instances share hits.
// Read and write failures degrade to cache misses; they never fail a query.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	hits   int64
	misses int64
}

// RedisOptions configures the Redis cache backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects to Redis and verifies it with a ping.
func NewRedisCache(ctx context.Context, opts RedisOptions, logger *logrus.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = logrus.New()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisCache{
		client: client,
		ttl:    opts.TTL,
		logger: logger,
	}, nil
}

// Get fetches a cached response.
func (c *RedisCache) Get(ctx context.Context, key string) (models.QueryResponse, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("redis cache read failed")
		}
		atomic.AddInt64(&c.misses, 1)
		return models.QueryResponse{}, false
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.WithError(err).Warn("redis cache entry corrupt")
		atomic.AddInt64(&c.misses, 1)
		return models.QueryResponse{}, false
	}
	atomic.AddInt64(&c.hits, 1)
	return resp, true
}

// Set stores a response with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, response models.QueryResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		c.logger.WithError(err).Warn("marshal cache entry failed")
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("redis cache write failed")
	}
}

// Stats returns hit/miss counters. Size and evictions are managed by Redis
// itself and reported as zero.
func (c *RedisCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
