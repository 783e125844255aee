// internal/rag/knowledge/loader_test.go
package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-apps/internal/rag/vectorstore"
)

// TestLogger for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger { return &TestLogger{t: t} }

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}
func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}
func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}
func (l *TestLogger) With(fields map[string]interface{}) Logger { return l }

type fakeEmbedder struct {
	calls []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) []float64 {
	f.calls = append(f.calls, text)
	return []float64{1, 0, 0}
}

type fakeStore struct {
	ensured bool
	docs    []vectorstore.Document
}

func (f *fakeStore) EnsureIndex(ctx context.Context) error {
	f.ensured = true
	return nil
}

func (f *fakeStore) Add(ctx context.Context, doc vectorstore.Document) error {
	f.docs = append(f.docs, doc)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader_Scan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# Notes")
	writeFile(t, dir, "data.csv", "question,context\nq,c")
	writeFile(t, dir, "image.png", "binary")
	writeFile(t, dir, "plain.txt", "text")

	loader := NewLoader(dir, &fakeEmbedder{}, &fakeStore{}, NewTestLogger(t))

	files, err := loader.Scan()
	require.NoError(t, err)
	require.Len(t, files, 3, "unsupported extensions are skipped")

	types := map[string]bool{}
	for _, f := range files {
		types[f.Type] = true
	}
	assert.True(t, types["md"])
	assert.True(t, types["csv"])
	assert.True(t, types["txt"])
	assert.False(t, types["png"])
}

func TestLoader_Scan_MissingDirectory(t *testing.T) {
	loader := NewLoader("/nonexistent/knowledge", &fakeEmbedder{}, &fakeStore{}, NewTestLogger(t))

	_, err := loader.Scan()
	assert.Error(t, err)
}

func TestLoader_EmbedAll_PlainFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guide.md", "# Deployment guide")
	writeFile(t, dir, "faq.txt", "Frequently asked questions")

	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	loader := NewLoader(dir, embedder, store, NewTestLogger(t))

	report, err := loader.EmbedAll(context.Background())
	require.NoError(t, err)

	assert.True(t, store.ensured)
	assert.Equal(t, 2, report.EmbeddedFiles)
	assert.Equal(t, 2, report.TotalFiles)
	assert.Equal(t, 0, report.CSVRows)
	require.Len(t, store.docs, 2)

	for _, doc := range store.docs {
		assert.NotEmpty(t, doc.Content)
		assert.NotEmpty(t, doc.Vector)
		assert.NotEmpty(t, doc.Metadata["source"])
	}
}

func TestLoader_EmbedAll_QACSVRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "qa.csv",
		"question,context\n"+
			"What is Graviton?,An ARM-based processor family.\n"+
			"What is knn?,Approximate nearest neighbor search.\n")

	store := &fakeStore{}
	loader := NewLoader(dir, &fakeEmbedder{}, store, NewTestLogger(t))

	report, err := loader.EmbedAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.EmbeddedFiles)
	assert.Equal(t, 2, report.CSVRows)
	require.Len(t, store.docs, 2)

	assert.Equal(t, "Question: What is Graviton?\nContext: An ARM-based processor family.", store.docs[0].Content)
	assert.Equal(t, "qa.csv", store.docs[0].Metadata["source"])
	assert.Equal(t, 0, store.docs[0].Metadata["row_index"])
	assert.Equal(t, "csv_row", store.docs[0].Metadata["type"])
	assert.Equal(t, "What is Graviton?", store.docs[0].Metadata["question"])
}

func TestLoader_EmbedAll_GenericCSVConcatenatesColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inventory.csv",
		"name,location\n"+
			"server-1,us-east-1\n")

	store := &fakeStore{}
	loader := NewLoader(dir, &fakeEmbedder{}, store, NewTestLogger(t))

	report, err := loader.EmbedAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.CSVRows)
	require.Len(t, store.docs, 1)
	assert.Equal(t, "name: server-1\nlocation: us-east-1", store.docs[0].Content)
}

func TestLoader_EmbedAll_SkipsIncompleteQARows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "qa.csv",
		"question,context\n"+
			"complete question,complete context\n"+
			"missing context,\n")

	store := &fakeStore{}
	loader := NewLoader(dir, &fakeEmbedder{}, store, NewTestLogger(t))

	report, err := loader.EmbedAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.CSVRows)
	require.Len(t, store.docs, 1)
}

func TestLoader_EmbedAll_BadFileDoesNotBlockOthers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "question,context\n")
	writeFile(t, dir, "good.md", "content")

	store := &fakeStore{}
	loader := NewLoader(dir, &fakeEmbedder{}, store, NewTestLogger(t))

	report, err := loader.EmbedAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.EmbeddedFiles)
	assert.Equal(t, 2, report.TotalFiles)
	assert.Contains(t, report.String(), "embedded 1 out of 2 files")
}
