package cache

import (
	"context"
	"time"
)

// LayeredCache puts a small in-process layer in front of Redis.
// Reads hit memory first; writes go through to Redis and then seed
// memory. A per-process layer is safe here because cached query
// results are already stale-tolerant.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache
}

// LayeredOption configures the layered cache.
type LayeredOption func(*layeredConfig)

type layeredConfig struct {
	localMax int
}

// WithLayeredMemorySize caps the in-process layer.
func WithLayeredMemorySize(n int) LayeredOption {
	return func(c *layeredConfig) { c.localMax = n }
}

// NewLayeredCache wraps a Redis cache with an in-process front.
func NewLayeredCache(remote *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &layeredConfig{localMax: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.localMax)),
		remote: remote,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, value, ttl)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	return lc.remote.Get(ctx, key, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

// Redis exposes the remote layer so callers can share its client.
func (lc *LayeredCache) Redis() *RedisCache {
	return lc.remote
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}
