package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 500

// RedisCache stores entries in Redis. While Redis is unreachable every call is
// served by an in-process MemoryCache; a health loop pings Redis and switches
// back once it answers again.
type RedisCache struct {
	client   *redis.Client
	fallback *MemoryCache
	logger   *slog.Logger

	available atomic.Bool

	// Invalidations issued while Redis was down, replayed before switching back
	// so entries written before the outage cannot resurface
	pendingMu       sync.Mutex
	pendingKeys     map[string]struct{}
	pendingPrefixes map[string]struct{}

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// RedisOptions configures NewRedisCache
type RedisOptions struct {
	URL            string
	HealthInterval time.Duration
	// OpTimeout bounds each Redis round-trip so an unreachable server fails fast
	OpTimeout time.Duration
}

// NewRedisCache connects to Redis at opts.URL. An unreachable server is not an
// error: the cache starts on the fallback and keeps probing.
func NewRedisCache(ctx context.Context, opts RedisOptions, fallback *MemoryCache, logger *slog.Logger) (*RedisCache, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 500 * time.Millisecond
	}
	redisOpts.DialTimeout = opts.OpTimeout
	redisOpts.ReadTimeout = opts.OpTimeout
	redisOpts.WriteTimeout = opts.OpTimeout
	redisOpts.MaxRetries = 0

	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 10 * time.Second
	}

	c := &RedisCache{
		client:          redis.NewClient(redisOpts),
		fallback:        fallback,
		logger:          logger,
		pendingKeys:     make(map[string]struct{}),
		pendingPrefixes: make(map[string]struct{}),
		stop:            make(chan struct{}),
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory cache", "addr", redisOpts.Addr, "error", err)
	} else {
		c.available.Store(true)
		logger.Info("redis cache connected", "addr", redisOpts.Addr)
	}

	c.wg.Add(1)
	go c.healthLoop(opts.HealthInterval)

	return c, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.available.Load() {
		return c.fallback.Get(ctx, key)
	}

	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.markDown(err)
		return c.fallback.Get(ctx, key)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.available.Load() {
		return c.fallback.Set(ctx, key, value, ttl)
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.markDown(err)
		return c.fallback.Set(ctx, key, value, ttl)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_ = c.fallback.Delete(ctx, keys...)

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.available.Load() {
		err := c.client.Del(ctx, keys...).Err()
		if err == nil {
			return nil
		}
		c.markDown(err)
	}
	for _, key := range keys {
		c.pendingKeys[key] = struct{}{}
	}
	return nil
}

func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	_ = c.fallback.DeletePrefix(ctx, prefix)

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.available.Load() {
		err := c.deletePrefix(ctx, prefix)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}
	c.pendingPrefixes[prefix] = struct{}{}
	return nil
}

func (c *RedisCache) Backend() string {
	if c.available.Load() {
		return "redis"
	}
	return "memory"
}

// Close stops the health loop, the fallback sweep and the Redis client
func (c *RedisCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	return errors.Join(c.client.Close(), c.fallback.Close())
}

// deletePrefix walks the keyspace with SCAN so Redis is never blocked by KEYS
func (c *RedisCache) deletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("scan %s*: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("unlink %d keys: %w", len(keys), err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *RedisCache) markDown(err error) {
	if c.available.CompareAndSwap(true, false) {
		c.logger.Warn("redis cache unavailable, falling back to memory", "error", err)
	}
}

func (c *RedisCache) healthLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.probe()
		case <-c.stop:
			return
		}
	}
}

// probe checks Redis and switches back to it once pending invalidations are replayed
func (c *RedisCache) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		c.markDown(err)
		return
	}
	if c.available.Load() {
		return
	}

	// Holding pendingMu keeps invalidations from slipping in between the
	// replay and the switch
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if err := c.replayPending(ctx); err != nil {
		c.logger.Warn("redis reachable but replay failed, staying on memory", "error", err)
		return
	}

	c.fallback.Clear()
	c.available.Store(true)
	c.logger.Info("redis cache recovered")
}

// replayPending runs the invalidations recorded during the outage. Caller holds pendingMu.
func (c *RedisCache) replayPending(ctx context.Context) error {
	for prefix := range c.pendingPrefixes {
		if err := c.deletePrefix(ctx, prefix); err != nil {
			return err
		}
		delete(c.pendingPrefixes, prefix)
	}

	if len(c.pendingKeys) > 0 {
		keys := make([]string, 0, len(c.pendingKeys))
		for key := range c.pendingKeys {
			keys = append(keys, key)
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("replay delete: %w", err)
		}
		clear(c.pendingKeys)
	}

	return nil
}
