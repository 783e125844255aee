// internal/rag/embedding/cache.go
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores computed embeddings in Redis keyed by model and text.
// All cache errors degrade to a miss; the retriever recomputes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{
			"component": "embedding-cache",
		}),
	}
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (c *Cache) Get(ctx context.Context, model, text string) ([]float64, bool) {
	payload, err := c.client.Get(ctx, cacheKey(model, text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("embedding cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, false
	}

	var vector []float64
	if err := json.Unmarshal(payload, &vector); err != nil {
		c.logger.Warn("embedding cache entry corrupt", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}
	return vector, true
}

func (c *Cache) Set(ctx context.Context, model, text string, vector []float64) {
	payload, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(model, text), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
