// internal/docverify/storage/handler.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"agentic-apps/internal/common/errors"
)

const (
	StageName = "store"
)

var (
	ErrStoreFailed = errors.Sentinel(errors.ErrCodeDocumentStoreFailed)
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	index  string
	client *elasticsearch.Client
	logger Logger
}

func NewHandler(index string, client *elasticsearch.Client, log Logger) *Handler {
	return &Handler{
		index:  index,
		client: client,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute archives the extracted document messages. Storage is best-effort:
// a failed write is reported in the output rather than failing the run, so
// verification still proceeds.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	h.logger.Info("archiving extracted document", map[string]interface{}{
		"runId":    input.RunID,
		"messages": len(input.Contents),
	})

	if h.client == nil {
		h.logger.Warn("document archive disabled, no search client configured", nil)
		return &Output{Result: "skipped"}, nil
	}

	docID := uuid.New().String()
	doc := archiveDocument{
		RunID:    input.RunID,
		Contents: input.Contents,
		StoredAt: time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return &Output{Result: "error", Error: err.Error()}, nil
	}

	res, err := h.client.Index(
		h.index,
		bytes.NewReader(body),
		h.client.Index.WithContext(ctx),
		h.client.Index.WithDocumentID(docID),
	)
	if err != nil {
		h.logger.Error("document archive failed", map[string]interface{}{
			"runId": input.RunID,
			"error": err.Error(),
		})
		return &Output{Result: "error", Error: fmt.Sprintf("%v: %v", ErrStoreFailed, err)}, nil
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		h.logger.Error("document archive rejected", map[string]interface{}{
			"runId":  input.RunID,
			"status": res.Status(),
		})
		return &Output{Result: "error", Error: fmt.Sprintf("%v: %s %s", ErrStoreFailed, res.Status(), msg)}, nil
	}

	h.logger.Info("document archived", map[string]interface{}{
		"runId":      input.RunID,
		"documentId": docID,
	})

	return &Output{Result: "success", DocumentID: docID}, nil
}
