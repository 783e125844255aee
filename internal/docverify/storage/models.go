// internal/docverify/storage/models.go
package storage

import "time"

type Input struct {
	RunID    string   `json:"runId"`
	Contents []string `json:"contents"`
}

type Output struct {
	Result     string `json:"result"`
	DocumentID string `json:"documentId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// archiveDocument is the record written to the document index.
type archiveDocument struct {
	RunID    string    `json:"run_id"`
	Contents []string  `json:"contents"`
	StoredAt time.Time `json:"stored_at"`
}
