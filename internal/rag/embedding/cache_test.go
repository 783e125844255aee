// internal/rag/embedding/cache_test.go
package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, ttl, NewTestLogger(t)), mr
}

func TestCache_SetAndGet(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	vector := []float64{0.1, 0.2, 0.3}
	cache.Set(ctx, "model-a", "some text", vector)

	got, ok := cache.Get(ctx, "model-a", "some text")
	require.True(t, ok)
	assert.Equal(t, vector, got)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)

	_, ok := cache.Get(context.Background(), "model-a", "never stored")
	assert.False(t, ok)
}

func TestCache_KeyedByModelAndText(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	cache.Set(ctx, "model-a", "text", []float64{1})

	_, ok := cache.Get(ctx, "model-b", "text")
	assert.False(t, ok, "different model must not share entries")

	_, ok = cache.Get(ctx, "model-a", "other text")
	assert.False(t, ok)
}

func TestCache_EntryExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	cache.Set(ctx, "model-a", "text", []float64{1, 2})

	mr.FastForward(2 * time.Second)

	_, ok := cache.Get(ctx, "model-a", "text")
	assert.False(t, ok)
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	cache, mr := newTestCache(t, time.Hour)

	require.NoError(t, mr.Set(cacheKey("model-a", "text"), "not json"))

	_, ok := cache.Get(context.Background(), "model-a", "text")
	assert.False(t, ok)
}

func TestCache_DownRedisDegradesToMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Hour, NewTestLogger(t))
	mr.Close()

	_, ok := cache.Get(context.Background(), "model-a", "text")
	assert.False(t, ok)

	// writes must not panic either
	cache.Set(context.Background(), "model-a", "text", []float64{1})
}

func TestRetriever_CachedEmbedSkipsEndpoint(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{1, 0, 0}},
			},
		})
	}))
	defer server.Close()

	cache, _ := newTestCache(t, time.Hour)
	retriever := NewRetriever(Config{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		Model:     "test-embedding",
		Dimension: 3,
	}, NewTestLogger(t)).WithCache(cache)

	first := retriever.Embed(context.Background(), "cached text")
	second := retriever.Embed(context.Background(), "cached text")

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}
