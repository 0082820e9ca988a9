package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/avc/laundry-loyalty/internal/domain"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStatsCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Miss then hit", func(t *testing.T) {
		_, client := newRedis(t)
		cache := NewRedisStatsCache(client, time.Minute)

		_, ok, err := cache.Get(ctx, 3, 0)
		require.NoError(t, err)
		assert.False(t, ok)

		stats := domain.CustomerStats{CustomerID: 3, OrderCount: 4, TotalSpent: decimal.RequireFromString("4200.50")}
		require.NoError(t, cache.Set(ctx, stats))

		cached, ok, err := cache.Get(ctx, 3, 0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(4), cached.OrderCount)
		assert.True(t, cached.TotalSpent.Equal(stats.TotalSpent))

		_, ok, err = cache.Get(ctx, 3, 30)
		require.NoError(t, err)
		assert.False(t, ok, "windows are cached separately")
	})

	t.Run("Invalidate drops every window", func(t *testing.T) {
		_, client := newRedis(t)
		cache := NewRedisStatsCache(client, time.Minute)

		require.NoError(t, cache.Set(ctx, domain.CustomerStats{CustomerID: 3, OrderCount: 1, WindowDays: 0}))
		require.NoError(t, cache.Set(ctx, domain.CustomerStats{CustomerID: 3, OrderCount: 1, WindowDays: 7}))
		require.NoError(t, cache.Invalidate(ctx, 3))

		for _, window := range []int{0, 7} {
			_, ok, err := cache.Get(ctx, 3, window)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("Entries expire", func(t *testing.T) {
		mr, client := newRedis(t)
		cache := NewRedisStatsCache(client, time.Minute)

		require.NoError(t, cache.Set(ctx, domain.CustomerStats{CustomerID: 5, OrderCount: 2}))
		assert.Equal(t, time.Minute, mr.TTL("customer_stats:5"))

		mr.FastForward(2 * time.Minute)

		_, ok, err := cache.Get(ctx, 5, 0)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Corrupted entry", func(t *testing.T) {
		mr, client := newRedis(t)
		cache := NewRedisStatsCache(client, time.Minute)

		mr.HSet("customer_stats:6", "0", "not json")

		_, _, err := cache.Get(ctx, 6, 0)
		assert.Error(t, err)
	})
}

func TestNoopStatsCache(t *testing.T) {
	ctx := context.Background()
	var cache StatsCache = NoopStatsCache{}

	require.NoError(t, cache.Set(ctx, domain.CustomerStats{CustomerID: 1, OrderCount: 3}))
	_, ok, err := cache.Get(ctx, 1, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cache.Invalidate(ctx, 1))
}

func TestLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("Exclusive until released", func(t *testing.T) {
		_, client := newRedis(t)
		locker := NewLocker(client)

		token, ok, err := locker.TryLock(ctx, "jobs:birthday", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEmpty(t, token)

		_, ok, err = locker.TryLock(ctx, "jobs:birthday", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, locker.Release(ctx, "jobs:birthday", token))

		_, ok, err = locker.TryLock(ctx, "jobs:birthday", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Foreign token does not release", func(t *testing.T) {
		mr, client := newRedis(t)
		locker := NewLocker(client)

		_, ok, err := locker.TryLock(ctx, "jobs:birthday", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, locker.Release(ctx, "jobs:birthday", "someone-else"))
		assert.True(t, mr.Exists("jobs:birthday"))
	})

	t.Run("Expires after ttl", func(t *testing.T) {
		mr, client := newRedis(t)
		locker := NewLocker(client)

		_, ok, err := locker.TryLock(ctx, "jobs:birthday", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(2 * time.Second)

		_, ok, err = locker.TryLock(ctx, "jobs:birthday", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Validation", func(t *testing.T) {
		_, client := newRedis(t)
		locker := NewLocker(client)

		_, _, err := locker.TryLock(ctx, "", time.Second)
		assert.Error(t, err)
		_, _, err = locker.TryLock(ctx, "jobs:birthday", 0)
		assert.Error(t, err)

		var missing *Locker
		_, _, err = missing.TryLock(ctx, "jobs:birthday", time.Second)
		assert.Error(t, err)
		assert.NoError(t, missing.Release(ctx, "jobs:birthday", "token"))
		assert.Nil(t, NewLocker(nil))
	})
}
