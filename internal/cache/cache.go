// Package cache provides the shared read-through cache used by the folder
// service decorator. Values are stored as JSON bytes.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Cache is a byte-oriented key/value cache with per-entry TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error
	// Backend names the store currently serving requests ("redis" or "memory")
	Backend() string
	Close() error
}

// GetOrSet returns the cached value for key, or calls fetch, caches its result
// for ttl and returns it. Cache failures are logged and never returned; only
// fetch errors reach the caller.
func GetOrSet[T any](ctx context.Context, c Cache, logger *slog.Logger, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	return GetOrSetGuarded(ctx, c, logger, key, ttl, fetch, nil)
}

// GetOrSetGuarded is GetOrSet for values a concurrent write can outdate.
// current reports whether what fetch read is still valid. Once it turns false
// the value is returned to the caller but not left in the cache. A nil current
// always keeps the value.
func GetOrSetGuarded[T any](ctx context.Context, c Cache, logger *slog.Logger, key string, ttl time.Duration, fetch func(context.Context) (T, error), current func() bool) (T, error) {
	if raw, ok, err := c.Get(ctx, key); err != nil {
		logger.Warn("cache get failed", "key", key, "error", err)
	} else if ok {
		var cached T
		err := json.Unmarshal(raw, &cached)
		if err == nil {
			return cached, nil
		}
		logger.Warn("cache entry undecodable, refetching", "key", key, "error", err)
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("cache encode failed", "key", key, "error", err)
		return value, nil
	}
	if current != nil && !current() {
		return value, nil
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn("cache set failed", "key", key, "error", err)
		return value, nil
	}

	// An invalidation may have landed between the check and the Set
	if current != nil && !current() {
		if err := c.Delete(ctx, key); err != nil {
			logger.Warn("cache delete of outdated entry failed", "key", key, "error", err)
		}
	}

	return value, nil
}
