// internal/rag/vectorstore/models.go
package vectorstore

import "time"

// Document is one entry in the knowledge index.
type Document struct {
	ID        string                 `json:"id,omitempty"`
	Content   string                 `json:"content"`
	Vector    []float64              `json:"vector"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// SearchResult is one similarity-search hit.
type SearchResult struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// indexedDocument is the wire form stored in the index.
type indexedDocument struct {
	Embedding []float64              `json:"embedding"`
	Document  string                 `json:"document"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp string                 `json:"timestamp"`
}
