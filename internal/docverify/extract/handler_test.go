// internal/docverify/extract/handler_test.go
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{
		t:      t,
		fields: make(map[string]interface{}),
	}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	return l
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL:     baseURL + "/v1",
		APIKey:      "test-key",
		Model:       "vision-model",
		Timeout:     5 * time.Second,
		MaxRetries:  1,
		MaxTokens:   1500,
		Temperature: 0.7,
	}
}

func chatCompletionResponse(content string) string {
	resp := map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "vision-model",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func visionServer(t *testing.T, content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "vision-model", reqBody["model"])

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(chatCompletionResponse(content)))
	}))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	extracted := `{"name": "John Smith", "date_of_birth": "1985-03-12", "place_of_birth": "Armidale and New England Hospital, Armidale"}`

	server := visionServer(t, extracted)
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Request:     "Verify the authenticity of this birth certificate.",
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("fake image bytes")),
	})

	require.NoError(t, err)
	assert.Equal(t, "John Smith", output.Document["name"])
	assert.Equal(t, "Armidale and New England Hospital, Armidale", output.Document["place_of_birth"])
	assert.True(t, output.SchemaValid)
	assert.Empty(t, output.SchemaErrors)
	assert.Contains(t, output.Summary, "Extracted Birth Certificate Data (JSON):")
	assert.Contains(t, output.Summary, extracted)
	assert.Contains(t, output.Summary, "Verify the authenticity of this birth certificate.")
}

func TestHandler_Execute_StripsMarkdownFences(t *testing.T) {
	fenced := "```json\n{\"name\": \"Jane\", \"date_of_birth\": \"1990-01-01\", \"place_of_birth\": \"Westmead Hospital\"}\n```"

	server := visionServer(t, fenced)
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ImageBase64: "aW1n"})

	require.NoError(t, err)
	assert.Equal(t, "Jane", output.Document["name"])
	assert.NotContains(t, output.RawJSON, "```")
	assert.True(t, output.SchemaValid)
}

func TestHandler_Execute_SchemaViolationReported(t *testing.T) {
	// Missing place_of_birth: extraction succeeds but validation flags it.
	incomplete := `{"name": "John Smith", "date_of_birth": "1985-03-12"}`

	server := visionServer(t, incomplete)
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ImageBase64: "aW1n"})

	require.NoError(t, err)
	assert.False(t, output.SchemaValid)
	assert.NotEmpty(t, output.SchemaErrors)
}

func TestHandler_Execute_NonJSONRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		content := "I cannot read this image, sorry."
		if attempts > 1 {
			content = `{"name": "A", "date_of_birth": "B", "place_of_birth": "C"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionResponse(content)))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ImageBase64: "aW1n"})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "A", output.Document["name"])
	assert.True(t, output.SchemaValid)
}

func TestHandler_Execute_NonJSONExhaustsRetriesWithoutAborting(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionResponse("I cannot read this image, sorry.")))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ImageBase64: "aW1n"})

	// The raw summary still flows downstream so the run ends in human
	// review instead of aborting.
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Nil(t, output.Document)
	assert.False(t, output.SchemaValid)
	assert.NotEmpty(t, output.SchemaErrors)
	assert.Contains(t, output.Summary, "I cannot read this image, sorry.")
}

func TestHandler_Execute_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionResponse(`{"name": "A", "date_of_birth": "B", "place_of_birth": "C"}`)))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ImageBase64: "aW1n"})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.True(t, output.SchemaValid)
}

func TestHandler_Execute_AllRetriesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{ImageBase64: "aW1n"})

	assert.ErrorIs(t, err, ErrExtractionFailed)
}

// ==========================
// Image Helper Tests
// ==========================

func TestEncodeImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cert.png")
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o644))

	encoded, err := EncodeImage(path)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(decoded))
}

func TestEncodeImage_Missing(t *testing.T) {
	_, err := EncodeImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectMIME("cert.jpg"))
	assert.Equal(t, "image/jpeg", DetectMIME("cert.JPEG"))
	assert.Equal(t, "image/gif", DetectMIME("scan.gif"))
	assert.Equal(t, "image/webp", DetectMIME("doc.webp"))
	assert.Equal(t, "image/png", DetectMIME("cert.png"))
	assert.Equal(t, "image/png", DetectMIME("noext"))
}
