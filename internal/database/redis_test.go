package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisDB(t *testing.T) {
	t.Run("connects and pings", func(t *testing.T) {
		mr := miniredis.RunT(t)

		db, err := NewRedisDB(&config.RedisConfig{Host: mr.Host(), Port: mr.Port()})
		require.NoError(t, err)
		defer db.Close()

		assert.NoError(t, db.Ping(context.Background()))
	})

	t.Run("gives up on its own when Redis is down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.RedisConfig{Host: mr.Host(), Port: mr.Port()}
		mr.Close()

		start := time.Now()
		_, err := NewRedisDB(cfg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
		assert.Less(t, time.Since(start), 15*time.Second)
	})
}

func TestIncrementRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	db, err := NewRedisDB(&config.RedisConfig{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		count, err := db.IncrementRateLimit(ctx, "203.0.113.7", "auth", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:203.0.113.7:auth"))

	mr.FastForward(time.Minute)
	count, err := db.IncrementRateLimit(ctx, "203.0.113.7", "auth", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
