package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc, err := NewRedisCacheWithClient(client)
	require.NoError(t, err)
	return rc, mr
}

func TestRedisCacheMissingKeyIsEmpty(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	value, err := rc.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	n, err := rc.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetJSONWithCached(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"Beeline", "Ucell"}, nil
	}
	isEmpty := func(v []string) bool { return len(v) == 0 }

	first, err := GetJSONWithCached(ctx, rc, "ops", time.Minute, time.Second, isEmpty, load)
	require.NoError(t, err)
	second, err := GetJSONWithCached(ctx, rc, "ops", time.Minute, time.Second, isEmpty, load)
	require.NoError(t, err)

	assert.Equal(t, []string{"Beeline", "Ucell"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	stored, err := mr.Get("ops")
	require.NoError(t, err)
	assert.JSONEq(t, `["Beeline","Ucell"]`, stored)
}

func TestGetWithCachedCachesEmpty(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return nil, nil
	}
	isEmpty := func(v []string) bool { return len(v) == 0 }

	for i := 0; i < 3; i++ {
		got, err := GetJSONWithCached(ctx, rc, "coms:none", time.Minute, time.Minute, isEmpty, load)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 1, calls)

	stored, err := mr.Get("coms:none")
	require.NoError(t, err)
	assert.Equal(t, NullCacheValue, stored)
}

func TestGetWithCachedPropagatesLoadError(t *testing.T) {
	rc, mr := newTestRedis(t)
	boom := errors.New("db down")

	_, err := GetJSONWithCached(context.Background(), rc, "ops", time.Minute, time.Minute,
		func(v []string) bool { return len(v) == 0 },
		func(context.Context) ([]string, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("ops"))
}

func TestJitterTTL(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := JitterTTL(10 * time.Minute)
		assert.LessOrEqual(t, got, 10*time.Minute)
		assert.GreaterOrEqual(t, got, 9*time.Minute)
	}
	assert.Equal(t, time.Duration(0), JitterTTL(0))
}

func TestLRUEvictsOldest(t *testing.T) {
	lru := NewLRU[int](2, 0)
	lru.Set("a", 1)
	lru.Set("b", 2)
	_, _ = lru.Get("a")
	lru.Set("c", 3)

	_, ok := lru.Get("b")
	assert.False(t, ok)
	v, ok := lru.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, lru.Len())

	lru.Purge()
	assert.Equal(t, 0, lru.Len())
}

func TestLRUExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lru := NewLRU[string](4, time.Second)
	lru.now = func() time.Time { return now }

	lru.Set("k", "v")
	_, ok := lru.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = lru.Get("k")
	assert.False(t, ok)
}
