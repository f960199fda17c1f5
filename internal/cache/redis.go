// Package cache provides the Redis layer: per-IP rate limit buckets, plus
// the shared connection the orphan cleanup stream runs on.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the shared Redis connection. The traffic through it is small
// and latency-bound: one token bucket script per rate-limited request and a
// stream publish on upload error paths.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection before returning.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse Redis URL: %w", err)
	}

	// Rate limit checks sit on the request path, so keep idle connections
	// warm and fail fast rather than queueing callers behind a slow Redis.
	// The cleanup worker's blocking stream reads carry their own timeouts.
	opt.PoolSize = 16
	opt.MinIdleConns = 4
	opt.PoolTimeout = 2 * time.Second
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = 500 * time.Millisecond
	opt.WriteTimeout = 500 * time.Millisecond

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity, used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection for the cleanup stream, which
// needs raw stream commands rather than cache methods.
func (c *Cache) Client() *redis.Client {
	return c.client
}
