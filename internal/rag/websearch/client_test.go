// internal/rag/websearch/client_test.go
package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestClient_Search_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "what is graviton", req.Query)
		assert.Equal(t, "basic", req.SearchDepth)
		assert.Equal(t, 5, req.MaxResults)
		assert.True(t, req.IncludeAnswer)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"answer": "Graviton is an ARM-based processor.",
			"results": []map[string]interface{}{
				{
					"title":          "AWS Graviton",
					"url":            "https://aws.amazon.com/graviton",
					"content":        "Graviton processors are custom built...",
					"score":          0.97,
					"published_date": "2024-01-15",
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"}, NewTestLogger(t))

	resp, err := client.Search(context.Background(), "what is graviton")
	require.NoError(t, err)

	assert.Equal(t, "what is graviton", resp.Query)
	assert.Equal(t, "Graviton is an ARM-based processor.", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "AWS Graviton", resp.Results[0].Title)
	assert.Equal(t, "https://aws.amazon.com/graviton", resp.Results[0].URL)
	assert.InDelta(t, 0.97, resp.Results[0].Score, 0.0001)
	assert.Equal(t, "2024-01-15", resp.Results[0].PublishedDate)
}

func TestClient_Search_MaxResultsCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 20, req.MaxResults)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", MaxResults: 50}, NewTestLogger(t))

	_, err := client.Search(context.Background(), "query")
	require.NoError(t, err)
}

func TestClient_Search_MissingKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, NewTestLogger(t))

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestClient_Search_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "invalid api key"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "bad-key"}, NewTestLogger(t))

	_, err := client.Search(context.Background(), "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Search_Unreachable(t *testing.T) {
	client := NewClient(Config{
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "test-key",
		Timeout: 500 * time.Millisecond,
	}, NewTestLogger(t))

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(t, err, ErrSearchFailed)
}

func TestClient_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	healthy := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"}, NewTestLogger(t))
	assert.True(t, healthy.Healthy(context.Background()))

	noKey := NewClient(Config{BaseURL: server.URL}, NewTestLogger(t))
	assert.False(t, noKey.Healthy(context.Background()))
}
