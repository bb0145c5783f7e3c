package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

func TestCacheSetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", map[string]int{"a": 1}, time.Minute))

	var dest map[string]int
	hit, err := c.Get(ctx, "k1", &dest)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, dest["a"])
}

func TestCacheGetMiss(t *testing.T) {
	c := newTestCache(t)
	var dest string
	hit, err := c.Get(context.Background(), "missing", &dest)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
	require.NoError(t, c.Delete(ctx, "k1"))

	var dest string
	hit, err := c.Get(ctx, "k1", &dest)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheInvalidateTag(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:1:profile", "v1", time.Minute, "user:1"))
	require.NoError(t, c.Set(ctx, "user:1:perms", "v2", time.Minute, "user:1"))
	require.NoError(t, c.Set(ctx, "user:2:profile", "v3", time.Minute, "user:2"))

	require.NoError(t, c.InvalidateTag(ctx, "user:1"))

	var dest string
	hit, err := c.Get(ctx, "user:1:profile", &dest)
	require.NoError(t, err)
	require.False(t, hit)

	hit, err = c.Get(ctx, "user:1:perms", &dest)
	require.NoError(t, err)
	require.False(t, hit)

	hit, err = c.Get(ctx, "user:2:profile", &dest)
	require.NoError(t, err)
	require.True(t, hit)
}

func TestCacheGetOrBuildCallsBuildOnceOnMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	build := func() (any, []string, error) {
		calls++
		return "built-value", []string{"tag1"}, nil
	}

	var dest string
	require.NoError(t, c.GetOrBuild(ctx, "k", time.Minute, &dest, build))
	require.Equal(t, "built-value", dest)
	require.Equal(t, 1, calls)

	// Second call hits the cache, build must not run again.
	var dest2 string
	require.NoError(t, c.GetOrBuild(ctx, "k", time.Minute, &dest2, build))
	require.Equal(t, "built-value", dest2)
	require.Equal(t, 1, calls)
}
