package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	c := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: server.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, server
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheExpires(t *testing.T) {
	c, server := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	server.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenPrefixesKeys(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	ctx := context.Background()

	for name, cfg := range map[string]RedisConfig{
		"url":  {URL: "redis://" + server.Addr() + "/0"},
		"addr": {Addr: server.Addr()},
	} {
		t.Run(name, func(t *testing.T) {
			server.FlushAll()
			c, err := Open(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })

			require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
			assert.True(t, server.Exists(KeyPrefix+"k"))
		})
	}
}

func TestOpenFailsWhenUnreachable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	_, err = Open(context.Background(), RedisConfig{Addr: addr})
	assert.Error(t, err)

	_, err = Open(context.Background(), RedisConfig{URL: "http://not-redis"})
	assert.Error(t, err)

	assert.False(t, RedisConfig{}.Enabled())
}

func TestNoopCache(t *testing.T) {
	c := NewNoop()
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	c, server := newTestRedis(t)
	ctx := context.Background()

	type entry struct {
		Slug string `json:"slug"`
	}
	require.NoError(t, SetJSON(ctx, c, "list", []entry{{Slug: "a"}, {Slug: "b"}}, time.Minute))

	got, ok, err := GetJSON[[]entry](ctx, c, "list")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []entry{{Slug: "a"}, {Slug: "b"}}, got)

	_, ok, err = GetJSON[[]entry](ctx, c, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, server.Set("broken", "{not json"))
	_, ok, err = GetJSON[[]entry](ctx, c, "broken")
	assert.Error(t, err)
	assert.False(t, ok)
}
