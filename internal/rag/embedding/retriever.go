// internal/rag/embedding/retriever.go

// Package embedding generates dense vectors for text through an
// OpenAI-compatible embeddings endpoint. Every vector is resized to the
// configured target dimension and L2-normalized; endpoint failures fall
// back to a random unit vector so callers never stall on a dead model.
package embedding

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"agentic-apps/internal/common/metrics"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type Retriever struct {
	config Config
	client *resty.Client
	cache  *Cache
	logger Logger
}

func NewRetriever(cfg Config, log Logger) *Retriever {
	cfg.applyDefaults()

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &Retriever{
		config: cfg,
		client: client,
		logger: log.With(map[string]interface{}{
			"component": "embedding",
		}),
	}
}

// WithCache attaches an embedding cache. Cache failures are non-fatal.
func (r *Retriever) WithCache(cache *Cache) *Retriever {
	r.cache = cache
	return r
}

// Dimension returns the target vector dimension.
func (r *Retriever) Dimension() int {
	return r.config.Dimension
}

// Embed returns a unit vector for the text. The endpoint response is
// resized to the target dimension; on any failure a random unit vector
// keeps the caller alive.
func (r *Retriever) Embed(ctx context.Context, text string) []float64 {
	if r.cache != nil {
		if vector, ok := r.cache.Get(ctx, r.config.Model, text); ok {
			metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			return vector
		}
		metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()
	}

	vector := r.fetch(ctx, text)

	if r.cache != nil {
		r.cache.Set(ctx, r.config.Model, text, vector)
	}

	return vector
}

// EmbedBatch embeds texts sequentially.
func (r *Retriever) EmbedBatch(ctx context.Context, texts []string) [][]float64 {
	vectors := make([][]float64, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, r.Embed(ctx, text))
	}
	return vectors
}

func (r *Retriever) fetch(ctx context.Context, text string) []float64 {
	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.WithLabelValues("embedding").Observe(time.Since(start).Seconds())
	}()

	var result embeddingResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: r.config.Model, Input: text}).
		SetResult(&result).
		Post(r.endpoint())

	if err != nil {
		r.logger.Error("embedding request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return r.randomEmbedding()
	}

	if resp.StatusCode() != http.StatusOK {
		r.logger.Warn("embedding endpoint returned non-200", map[string]interface{}{
			"status": resp.StatusCode(),
			"body":   truncate(string(resp.Body()), 200),
		})
		return r.randomEmbedding()
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		r.logger.Warn("embedding endpoint returned no vector", nil)
		return r.randomEmbedding()
	}

	return r.resize(result.Data[0].Embedding)
}

func (r *Retriever) endpoint() string {
	base := strings.TrimSuffix(r.config.BaseURL, "/")
	if strings.HasSuffix(base, "/embeddings") {
		return base
	}
	return base + "/embeddings"
}

// resize maps a vector of any length onto the target dimension by block
// averaging, then normalizes to unit length.
func (r *Retriever) resize(vector []float64) []float64 {
	dim := r.config.Dimension
	if len(vector) == dim {
		return Normalize(vector)
	}

	result := make([]float64, dim)
	ratio := float64(len(vector)) / float64(dim)

	for i := 0; i < dim; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(vector) {
			end = len(vector)
		}
		if start >= end {
			continue
		}

		sum := 0.0
		for j := start; j < end; j++ {
			sum += vector[j]
		}
		result[i] = sum / float64(end-start)
	}

	return Normalize(result)
}

func (r *Retriever) randomEmbedding() []float64 {
	vector := make([]float64, r.config.Dimension)
	for i := range vector {
		vector[i] = rand.Float64()*2 - 1
	}
	return Normalize(vector)
}

// Normalize scales a vector to unit length. Zero vectors pass through.
func Normalize(vector []float64) []float64 {
	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	magnitude := math.Sqrt(sum)
	if magnitude == 0 {
		return vector
	}

	result := make([]float64, len(vector))
	for i, v := range vector {
		result[i] = v / magnitude
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
