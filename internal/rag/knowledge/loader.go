// internal/rag/knowledge/loader.go

// Package knowledge loads documents from the knowledge directory and embeds
// them into the vector store. CSV files are embedded row by row; other
// supported files are embedded whole.
package knowledge

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"agentic-apps/internal/rag/vectorstore"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Embedder turns text into a vector. Satisfied by embedding.Retriever.
type Embedder interface {
	Embed(ctx context.Context, text string) []float64
}

// DocumentStore receives the embedded documents. Satisfied by
// vectorstore.Store.
type DocumentStore interface {
	EnsureIndex(ctx context.Context) error
	Add(ctx context.Context, doc vectorstore.Document) error
}

var supportedExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".json": true,
	".csv":  true,
}

// FileInfo describes one file found in the knowledge directory.
type FileInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Report summarizes one embedding run.
type Report struct {
	EmbeddedFiles int      `json:"embedded_count"`
	TotalFiles    int      `json:"total_files"`
	CSVRows       int      `json:"total_csv_rows"`
	Processed     []string `json:"processed_files"`
}

func (r Report) String() string {
	msg := fmt.Sprintf("embedded %d out of %d files", r.EmbeddedFiles, r.TotalFiles)
	if r.CSVRows > 0 {
		msg += fmt.Sprintf(" (%d CSV rows)", r.CSVRows)
	}
	return msg
}

type Loader struct {
	dir      string
	embedder Embedder
	store    DocumentStore
	logger   Logger
}

func NewLoader(dir string, embedder Embedder, store DocumentStore, log Logger) *Loader {
	return &Loader{
		dir:      dir,
		embedder: embedder,
		store:    store,
		logger: log.With(map[string]interface{}{
			"component": "knowledge",
		}),
	}
}

// Scan lists the supported files under the knowledge directory.
func (l *Loader) Scan() ([]FileInfo, error) {
	if _, err := os.Stat(l.dir); err != nil {
		return nil, fmt.Errorf("knowledge directory does not exist: %w", err)
	}

	var files []FileInfo
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtensions[ext] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.dir, path)
		if err != nil {
			rel = path
		}

		files = append(files, FileInfo{
			Path: rel,
			Size: info.Size(),
			Type: strings.TrimPrefix(ext, "."),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("scanned knowledge directory", map[string]interface{}{
		"files": len(files),
	})
	return files, nil
}

// EmbedAll ensures the index exists, then embeds every supported file.
// Per-file failures are logged and skipped so one bad file does not block
// the rest of the knowledge base.
func (l *Loader) EmbedAll(ctx context.Context) (*Report, error) {
	if err := l.store.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	files, err := l.Scan()
	if err != nil {
		return nil, err
	}

	report := &Report{TotalFiles: len(files)}

	for _, file := range files {
		fullPath := filepath.Join(l.dir, file.Path)

		var embedErr error
		if file.Type == "csv" {
			rows, err := l.embedCSV(ctx, fullPath, file.Path)
			report.CSVRows += rows
			embedErr = err
		} else {
			embedErr = l.embedFile(ctx, fullPath, file)
		}

		if embedErr != nil {
			l.logger.Error("failed to embed file", map[string]interface{}{
				"file":  file.Path,
				"error": embedErr.Error(),
			})
			continue
		}

		report.EmbeddedFiles++
		report.Processed = append(report.Processed, file.Path)
	}

	l.logger.Info("knowledge embedding completed", map[string]interface{}{
		"embedded": report.EmbeddedFiles,
		"total":    report.TotalFiles,
		"csvRows":  report.CSVRows,
	})
	return report, nil
}

func (l *Loader) embedFile(ctx context.Context, fullPath string, file FileInfo) error {
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return err
	}

	return l.store.Add(ctx, vectorstore.Document{
		Content: string(content),
		Vector:  l.embedder.Embed(ctx, string(content)),
		Metadata: map[string]interface{}{
			"source": file.Path,
			"type":   file.Type,
			"size":   len(content),
		},
	})
}

// embedCSV indexes each data row as its own document. Question/context
// columns produce a Q&A document; anything else concatenates all columns.
// Returns the number of rows attempted.
func (l *Loader) embedCSV(ctx context.Context, fullPath, relPath string) (int, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) < 2 {
		return 0, fmt.Errorf("csv file %s has no data rows", relPath)
	}

	header := records[0]
	questionCol, contextCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "question":
			questionCol = i
		case "context":
			contextCol = i
		}
	}

	rows := 0
	for idx, record := range records[1:] {
		var document string
		metadata := map[string]interface{}{
			"source":    relPath,
			"row_index": idx,
			"type":      "csv_row",
		}

		if questionCol >= 0 && contextCol >= 0 {
			question := cell(record, questionCol)
			context := cell(record, contextCol)
			if question == "" || context == "" {
				l.logger.Warn("csv row missing question or context, skipping", map[string]interface{}{
					"file": relPath,
					"row":  idx,
				})
				continue
			}
			document = fmt.Sprintf("Question: %s\nContext: %s", question, context)
			metadata["question"] = truncate(question, 100)
		} else {
			parts := make([]string, 0, len(record))
			for i, value := range record {
				if i < len(header) {
					parts = append(parts, fmt.Sprintf("%s: %s", header[i], value))
				}
			}
			document = strings.Join(parts, "\n")
		}

		rows++
		if err := l.store.Add(ctx, vectorstore.Document{
			Content:  document,
			Vector:   l.embedder.Embed(ctx, document),
			Metadata: metadata,
		}); err != nil {
			l.logger.Error("failed to index csv row", map[string]interface{}{
				"file":  relPath,
				"row":   idx,
				"error": err.Error(),
			})
		}
	}

	if rows == 0 {
		return 0, fmt.Errorf("csv file %s produced no embeddable rows", relPath)
	}
	return rows, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
