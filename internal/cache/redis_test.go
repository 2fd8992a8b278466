package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Nothing listens on port 1, so every Redis call fails fast with connection refused
const unreachableRedis = "redis://127.0.0.1:1/0"

func newUnreachableRedis(t *testing.T) *RedisCache {
	t.Helper()
	c, err := NewRedisCache(context.Background(), RedisOptions{
		URL:            unreachableRedis,
		HealthInterval: time.Hour,
		OpTimeout:      100 * time.Millisecond,
	}, NewMemoryCache(10, 0), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisOptions{URL: "not-a-url"}, NewMemoryCache(10, 0), slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestRedisCache_FallsBackWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	c := newUnreachableRedis(t)

	assert.Equal(t, "memory", c.Backend())

	require.NoError(t, c.Set(ctx, "folder:tree", []byte("[]"), time.Minute))
	v, ok, err := c.Get(ctx, "folder:tree")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("[]"), v)
}

func TestRedisCache_RecordsInvalidationsDuringOutage(t *testing.T) {
	ctx := context.Background()
	c := newUnreachableRedis(t)

	require.NoError(t, c.Set(ctx, "folder:tree", []byte("[]"), time.Minute))
	require.NoError(t, c.DeletePrefix(ctx, "folder:"))
	require.NoError(t, c.Delete(ctx, "folder:search:basic:x"))

	_, ok, err := c.Get(ctx, "folder:tree")
	require.NoError(t, err)
	assert.False(t, ok, "fallback entry is cleared immediately")

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	assert.Contains(t, c.pendingPrefixes, "folder:")
	assert.Contains(t, c.pendingKeys, "folder:search:basic:x")
}

func TestRedisCache_ProbeKeepsFallbackWhileDown(t *testing.T) {
	ctx := context.Background()
	c := newUnreachableRedis(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	c.probe()

	assert.Equal(t, "memory", c.Backend())
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "fallback survives a failed probe")
}

func newMiniredisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisOptions{
		URL:            "redis://" + mr.Addr() + "/0",
		HealthInterval: time.Hour,
		OpTimeout:      200 * time.Millisecond,
	}, NewMemoryCache(10, 0), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_Connected(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredisCache(t)
	require.Equal(t, "redis", c.Backend())

	require.NoError(t, c.Set(ctx, "folder:tree", []byte("[]"), time.Minute))
	stored, err := mr.Get("folder:tree")
	require.NoError(t, err)
	assert.Equal(t, "[]", stored)
	assert.Positive(t, mr.TTL("folder:tree"))
	assert.Zero(t, c.fallback.Len(), "nothing is written to the fallback while redis is up")

	v, ok, err := c.Get(ctx, "folder:tree")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("[]"), v)

	_, ok, err = c.Get(ctx, "folder:missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "redis", c.Backend(), "a miss is not a failure")

	require.NoError(t, c.Set(ctx, "folder:children:root", []byte("[]"), time.Minute))
	require.NoError(t, c.Set(ctx, "folder:search:basic:docs", []byte("[]"), time.Minute))
	require.NoError(t, mr.Set("session:1", "keep"))

	require.NoError(t, c.DeletePrefix(ctx, "folder:"))
	assert.False(t, mr.Exists("folder:tree"))
	assert.False(t, mr.Exists("folder:children:root"))
	assert.False(t, mr.Exists("folder:search:basic:docs"))
	assert.True(t, mr.Exists("session:1"), "keys outside the prefix survive")

	require.NoError(t, c.Delete(ctx, "session:1"))
	assert.False(t, mr.Exists("session:1"))
}

func TestRedisCache_OutageAndRecovery(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredisCache(t)

	require.NoError(t, c.Set(ctx, "folder:tree", []byte(`"before outage"`), time.Minute))
	mr.Close()

	_, ok, err := c.Get(ctx, "folder:tree")
	require.NoError(t, err, "a live failure is absorbed by the fallback")
	assert.False(t, ok)
	assert.Equal(t, "memory", c.Backend())

	require.NoError(t, c.Set(ctx, "folder:children:root", []byte("[]"), time.Minute))
	v, ok, err := c.Get(ctx, "folder:children:root")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("[]"), v)

	// A write during the outage invalidates, then a read caches again
	require.NoError(t, c.DeletePrefix(ctx, "folder:"))
	require.NoError(t, c.Set(ctx, "folder:outage", []byte("1"), time.Minute))

	require.NoError(t, mr.Restart())
	require.Eventually(t, func() bool {
		c.probe()
		return c.Backend() == "redis"
	}, 2*time.Second, 20*time.Millisecond)

	assert.False(t, mr.Exists("folder:tree"), "entry from before the outage is unlinked on recovery")
	assert.Zero(t, c.fallback.Len(), "fallback is cleared on recovery")

	c.pendingMu.Lock()
	assert.Empty(t, c.pendingPrefixes)
	assert.Empty(t, c.pendingKeys)
	c.pendingMu.Unlock()

	_, ok, err = c.Get(ctx, "folder:outage")
	require.NoError(t, err)
	assert.False(t, ok, "entries cached during the outage do not carry over")

	require.NoError(t, c.Set(ctx, "folder:tree", []byte("[]"), time.Minute))
	assert.True(t, mr.Exists("folder:tree"), "writes go to redis again")
}
