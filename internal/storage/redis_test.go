package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/live-vibe/internal/config"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestNewRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	host, port, _ := splitAddr(mr.Addr())
	cache, err := NewRedisCache(&config.RedisConfig{Host: host, Port: port, MaxConnections: 5})
	require.NoError(t, err)
	defer cache.Close()

	assert.NoError(t, cache.Ping(testContext(t)))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(&config.RedisConfig{Host: "127.0.0.1", Port: "1", MaxConnections: 1})
	assert.Error(t, err)
}

func TestRedisCache_Operations(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := testContext(t)

	require.NoError(t, cache.Set(ctx, "plan:artist_pro", "v1", time.Minute))
	got, err := cache.Get(ctx, "plan:artist_pro")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
	assert.Equal(t, time.Minute, mr.TTL("plan:artist_pro"))

	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, "plan:artist_pro")
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, cache.Set(ctx, "plans:artist", "a", 0))
	require.NoError(t, cache.Set(ctx, "plans:promoter", "b", 0))
	require.NoError(t, cache.Del(ctx, "plans:artist", "plans:promoter"))
	assert.False(t, mr.Exists("plans:artist"))
	assert.False(t, mr.Exists("plans:promoter"))
}
