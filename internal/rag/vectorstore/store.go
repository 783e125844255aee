// internal/rag/vectorstore/store.go

// Package vectorstore manages the knowledge embedding index on an
// OpenSearch-compatible cluster, reached over the Elasticsearch wire
// protocol.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"agentic-apps/internal/common/errors"
	"agentic-apps/internal/common/metrics"
)

var (
	ErrIndexCreateFailed = errors.Sentinel(errors.ErrCodeIndexCreateFailed)
	ErrIndexFailed       = errors.Sentinel(errors.ErrCodeDocumentStoreFailed)
	ErrSearchFailed      = errors.Sentinel(errors.ErrCodeSearchQueryFailed)
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Store struct {
	index     string
	dimension int
	client    *elasticsearch.Client
	logger    Logger
}

func NewStore(index string, dimension int, client *elasticsearch.Client, log Logger) *Store {
	if dimension <= 0 {
		dimension = 384
	}
	return &Store{
		index:     index,
		dimension: dimension,
		client:    client,
		logger: log.With(map[string]interface{}{
			"component": "vectorstore",
			"index":     index,
		}),
	}
}

// IndexName returns the backing index name.
func (s *Store) IndexName() string {
	return s.index
}

// Exists reports whether the knowledge index exists.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{s.index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

// EnsureIndex creates the knn index when missing. The mapping matches the
// cluster-side approximate-knn setup: hnsw over cosine similarity.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Info("knowledge index already exists", nil)
		return nil
	}

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{
				"knn":            true,
				"knn.space_type": "cosinesimil",
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"embedding": map[string]interface{}{
					"type":      "knn_vector",
					"dimension": s.dimension,
					"method": map[string]interface{}{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "nmslib",
						"parameters": map[string]interface{}{
							"ef_construction": 128,
							"m":               16,
						},
					},
				},
				"document": map[string]interface{}{
					"type":  "text",
					"store": true,
				},
				"metadata": map[string]interface{}{
					"type": "object",
				},
				"timestamp": map[string]interface{}{
					"type": "date",
				},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCreateFailed, err)
	}

	res, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCreateFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: %s %s", ErrIndexCreateFailed, res.Status(), msg)
	}

	s.logger.Info("knowledge index created", map[string]interface{}{
		"dimension": s.dimension,
	})
	return nil
}

// Add indexes a single document with an immediate refresh so it is
// searchable right away.
func (s *Store) Add(ctx context.Context, doc Document) error {
	timestamp := doc.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(indexedDocument{
		Embedding: doc.Vector,
		Document:  doc.Content,
		Metadata:  doc.Metadata,
		Timestamp: timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(doc.ID),
		s.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: %s %s", ErrIndexFailed, res.Status(), msg)
	}

	metrics.DocumentsIndexed.WithLabelValues(s.index).Inc()
	return nil
}

// BulkAdd indexes documents in one bulk request.
func (s *Store) BulkAdd(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]interface{}{
			"index": map[string]interface{}{"_index": s.index},
		}
		if doc.ID != "" {
			action["index"].(map[string]interface{})["_id"] = doc.ID
		}

		timestamp := doc.Timestamp
		if timestamp.IsZero() {
			timestamp = time.Now().UTC()
		}

		actionLine, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIndexFailed, err)
		}
		docLine, err := json.Marshal(indexedDocument{
			Embedding: doc.Vector,
			Document:  doc.Content,
			Metadata:  doc.Metadata,
			Timestamp: timestamp.Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIndexFailed, err)
		}

		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: %s %s", ErrIndexFailed, res.Status(), msg)
	}

	var bulkResult struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResult); err == nil && bulkResult.Errors {
		return fmt.Errorf("%w: bulk response reported item errors", ErrIndexFailed)
	}

	metrics.DocumentsIndexed.WithLabelValues(s.index).Add(float64(len(docs)))
	s.logger.Info("bulk indexed documents", map[string]interface{}{
		"count": len(docs),
	})
	return nil
}

// SimilaritySearch runs an approximate knn query and returns the top-k hits.
// Optional term filters are combined with the knn query in a bool clause.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float64, k int, filters map[string]interface{}) ([]SearchResult, error) {
	if k <= 0 {
		k = 5
	}

	start := time.Now()
	defer func() {
		metrics.RetrievalQueryDuration.WithLabelValues("knowledge_base").Observe(time.Since(start).Seconds())
	}()
	metrics.RetrievalQueries.WithLabelValues("knowledge_base").Inc()

	knnQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"embedding": map[string]interface{}{
				"vector": vector,
				"k":      k,
			},
		},
	}

	query := map[string]interface{}{
		"size":    k,
		"query":   knnQuery,
		"_source": []string{"document", "metadata"},
	}

	if len(filters) > 0 {
		filterClauses := make([]map[string]interface{}, 0, len(filters))
		for key, value := range filters {
			filterClauses = append(filterClauses, map[string]interface{}{
				"term": map[string]interface{}{key: value},
			})
		}
		query["query"] = map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []interface{}{knnQuery},
				"filter": filterClauses,
			},
		}
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: %s %s", ErrSearchFailed, res.Status(), msg)
	}

	var response struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source struct {
					Document string                 `json:"document"`
					Metadata map[string]interface{} `json:"metadata"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	results := make([]SearchResult, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		source := "Unknown"
		if v, ok := hit.Source.Metadata["source"].(string); ok && v != "" {
			source = v
		}
		results = append(results, SearchResult{
			ID:      hit.ID,
			Content: hit.Source.Document,
			Source:  source,
			Score:   hit.Score,
		})
	}

	s.logger.Info("similarity search completed", map[string]interface{}{
		"hits": len(results),
		"k":    k,
	})
	return results, nil
}

// Count returns the number of documents in the index.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("%w: %s %s", ErrSearchFailed, res.Status(), msg)
	}

	var response struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	return response.Count, nil
}

// DeleteIndex removes the knowledge index. A missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Info("knowledge index does not exist, nothing to delete", nil)
		return nil
	}

	res, err := s.client.Indices.Delete(
		[]string{s.index},
		s.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: %s %s", ErrIndexFailed, res.Status(), msg)
	}

	s.logger.Info("knowledge index deleted", nil)
	return nil
}
