package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ieraasyl/Storefront/internal/database"
	"github.com/ieraasyl/Storefront/pkg/cache"
	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/redis/go-redis/v9"
)

// SetupMiniRedis starts a miniredis server that is closed with the test.
func SetupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// NewTestRedisDB creates a RedisDB connected to miniredis for testing
func NewTestRedisDB(t *testing.T, mr *miniredis.Miniredis) *database.RedisDB {
	t.Helper()

	db, err := database.NewRedisDB(&config.RedisConfig{
		Host: mr.Host(),
		Port: mr.Port(),
	})
	if err != nil {
		t.Fatalf("Failed to create test Redis DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// NewTestCache creates a cache backed by miniredis.
func NewTestCache(t *testing.T, mr *miniredis.Miniredis) *cache.Cache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return cache.NewCache(client)
}
