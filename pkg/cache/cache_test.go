package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(client), mr
}

func TestCacheSetGet(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{Name: "jacket", Count: 2}, time.Minute))

	var got entry
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, entry{Name: "jacket", Count: 2}, got)

	raw, err := mr.Get("k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"jacket","count":2}`, raw)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestCacheZeroTTLKeepsKey(t *testing.T) {
	c, mr := setupCache(t)

	require.NoError(t, c.Set(context.Background(), "k", "v", 0))

	assert.True(t, mr.Exists("k"))
	assert.Zero(t, mr.TTL("k"))
}

func TestCacheMiss(t *testing.T) {
	c, _ := setupCache(t)

	var got entry
	err := c.Get(context.Background(), "missing", &got)

	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheCorruptEntry(t *testing.T) {
	c, mr := setupCache(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var got entry
	err := c.Get(context.Background(), "k", &got)

	assert.ErrorIs(t, err, ErrCorrupt)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}

func TestCacheDeleteAndExists(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))

	ok, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "a", "b"))
	require.NoError(t, c.Delete(ctx))

	ok, err = c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheCount(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, UserDataKey(strconv.Itoa(i)), i, 0))
	}
	require.NoError(t, c.Set(ctx, "ratelimit:1.2.3.4:auth", 1, 0))

	n, err := c.Count(ctx, UserDataPattern())
	require.NoError(t, err)
	assert.Equal(t, 250, n)
}

func TestCacheUnavailable(t *testing.T) {
	c, mr := setupCache(t)
	mr.Close()

	err := c.Set(context.Background(), "k", "v", 0)
	assert.Error(t, err)

	var got string
	err = c.Get(context.Background(), "k", &got)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}

func TestUserDataKey(t *testing.T) {
	assert.Equal(t, "userData:abc", UserDataKey("abc"))
	assert.Equal(t, "userData:*", UserDataPattern())
}
