package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, 15*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	videos := []domain.Video{
		{ID: "vid_1", Title: "Morning flow", Price: 49.99},
		{ID: "vid_2", Title: "Breathwork", Price: 19.99},
	}
	data, _ := json.Marshal(videos)
	mr.Set(cacheKey("/videos"), string(data))

	var result []domain.Video
	err := cache.Get(context.Background(), "/videos", &result)
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, "vid_1", result[0].ID)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	var result []domain.Video
	err := cache.Get(context.Background(), "/videos", &result)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(cacheKey("/blog"), `[{"post_id":`)

	var result []domain.BlogPost
	err := cache.Get(context.Background(), "/blog", &result)
	require.ErrorContains(t, err, "unmarshal /blog failed")
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	items := []domain.ShopItem{{ID: "item_1", Name: "Mat", Price: 15}}
	require.NoError(t, cache.Set(context.Background(), "/shop/items", items))

	stored, err := mr.Get(cacheKey("/shop/items"))
	require.NoError(t, err)
	assert.Contains(t, stored, `"item_id":"item_1"`)

	ttl := mr.TTL(cacheKey("/shop/items"))
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl < 15*time.Minute+defaultJitter, "TTL should be below base + max jitter")
}

func TestDelete_Keys(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(cacheKey("/videos"), "[]")
	mr.Set(cacheKey("/blog"), "[]")

	require.NoError(t, cache.Delete(context.Background(), "/videos", "/blog", "/missing"))
	assert.False(t, mr.Exists(cacheKey("/videos")))
	assert.False(t, mr.Exists(cacheKey("/blog")))
}

func TestDelete_NoKeys(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, cache.Delete(context.Background()))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "catalog:/videos", cacheKey("/videos"))
}

func TestNoopCache(t *testing.T) {
	var c CatalogCache = NoopCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "/videos", []int{1}))
	var out []int
	assert.ErrorIs(t, c.Get(ctx, "/videos", &out), ErrCacheMiss)
	assert.NoError(t, c.Delete(ctx, "/videos"))
}
