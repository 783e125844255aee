// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-apps/internal/rag/knowledge"
	"agentic-apps/internal/rag/supervisor"
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

// ==========================
// Fakes
// ==========================

type fakeAgent struct {
	answer *supervisor.Answer
	err    error
}

func (f *fakeAgent) Answer(ctx context.Context, question string) (*supervisor.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type fakeLoader struct {
	mu     sync.Mutex
	report *knowledge.Report
	err    error
	calls  int
	done   chan struct{}
}

func (f *fakeLoader) EmbedAll(ctx context.Context) (*knowledge.Report, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.done != nil {
		defer close(f.done)
	}
	return f.report, f.err
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeIndex struct {
	exists bool
	count  int
	err    error
}

func (f *fakeIndex) Exists(ctx context.Context) (bool, error) { return f.exists, f.err }
func (f *fakeIndex) Count(ctx context.Context) (int, error)   { return f.count, f.err }

type fakePinger struct{ err error }

func (f *fakePinger) Ping() error { return f.err }

type fakeWebProber struct{ healthy bool }

func (f *fakeWebProber) Healthy(ctx context.Context) bool { return f.healthy }

func newTestServer(t *testing.T, agent QueryAgent, loader KnowledgeLoader) *Server {
	gin.SetMode(gin.TestMode)
	return New(agent, loader,
		&fakeIndex{exists: true, count: 12},
		&fakePinger{},
		&fakeWebProber{healthy: true},
		ConfigEcho{
			OpenSearchEndpoint: "http://localhost:9200",
			KnowledgeDir:       "knowledge",
			VectorIndex:        "knowledge-embeddings",
			ReasoningModel:     "test-reasoning",
			EmbeddingModel:     "test-embedding",
		},
		NewTestLogger(t))
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ==========================
// Tests
// ==========================

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, &fakeLoader{})
	srv.Probe(context.Background())

	w := doJSON(srv.Router(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string            `json:"status"`
		Version  string            `json:"version"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, Version, body.Version)
	assert.Equal(t, "connected", body.Services["opensearch"])
	assert.Equal(t, "ready (12 documents)", body.Services["knowledge_base"])
	assert.Equal(t, "connected", body.Services["web_search"])
}

func TestServer_Probe_RecordsFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(&fakeAgent{}, &fakeLoader{},
		&fakeIndex{exists: false},
		&fakePinger{err: errors.New("connection refused")},
		&fakeWebProber{healthy: false},
		ConfigEcho{}, NewTestLogger(t))

	srv.Probe(context.Background())

	services := srv.Services()
	assert.Equal(t, "disconnected", services["opensearch"])
	assert.Equal(t, "no_index", services["knowledge_base"])
	assert.Equal(t, "disconnected", services["web_search"])
}

func TestServer_Root(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, &fakeLoader{})

	w := doJSON(srv.Router(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Multi-Agent RAG System API")
	assert.Contains(t, w.Body.String(), "/query")
}

func TestServer_Query_Success(t *testing.T) {
	agent := &fakeAgent{answer: &supervisor.Answer{
		Response: "Graviton is an ARM processor family.",
		Route:    supervisor.RouteKnowledgeBase,
		Sources:  []string{"hardware.md"},
	}}
	srv := newTestServer(t, agent, &fakeLoader{})

	w := doJSON(srv.Router(), http.MethodPost, "/query", QueryRequest{
		Question:  "what is graviton?",
		SessionID: "session-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Graviton is an ARM processor family.", resp.Response)
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, supervisor.RouteKnowledgeBase, resp.Route)
	assert.Equal(t, []string{"hardware.md"}, resp.Sources)
	assert.GreaterOrEqual(t, resp.ProcessingTime, 0.0)
}

func TestServer_Query_GeneratesSessionID(t *testing.T) {
	agent := &fakeAgent{answer: &supervisor.Answer{Response: "ok"}}
	srv := newTestServer(t, agent, &fakeLoader{})

	w := doJSON(srv.Router(), http.MethodPost, "/query", QueryRequest{
		Question: "what is graviton?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestServer_Query_EmptyQuestionIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, &fakeLoader{})
	router := srv.Router()

	w := doJSON(router, http.MethodPost, "/query", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/query", QueryRequest{Question: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Query_AgentErrorReturnsErrorPayload(t *testing.T) {
	agent := &fakeAgent{err: errors.New("synthesis exploded")}
	srv := newTestServer(t, agent, &fakeLoader{})

	w := doJSON(srv.Router(), http.MethodPost, "/query", QueryRequest{Question: "boom"})
	require.Equal(t, http.StatusOK, w.Code, "agent failures are reported in the payload, not as 5xx")

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Response, "synthesis exploded")
}

func TestServer_Embed_RunsInBackground(t *testing.T) {
	loader := &fakeLoader{
		report: &knowledge.Report{EmbeddedFiles: 3, TotalFiles: 3},
		done:   make(chan struct{}),
	}
	srv := newTestServer(t, &fakeAgent{}, loader)

	w := doJSON(srv.Router(), http.MethodPost, "/embed", EmbedRequest{ForceRefresh: true})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "processing")

	select {
	case <-loader.done:
	case <-time.After(2 * time.Second):
		t.Fatal("background embedding did not run")
	}
	assert.Equal(t, 1, loader.callCount())
}

func TestServer_Embed_RejectsConcurrentRuns(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, &fakeLoader{})

	srv.embedMu.Lock()
	srv.embedRunning = true
	srv.embedMu.Unlock()

	w := doJSON(srv.Router(), http.MethodPost, "/embed", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, &fakeLoader{})

	w := doJSON(srv.Router(), http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Services map[string]string `json:"services"`
		Config   ConfigEcho        `json:"config"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "knowledge-embeddings", body.Config.VectorIndex)
	assert.Equal(t, "test-reasoning", body.Config.ReasoningModel)
	assert.NotNil(t, body.Services)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{}, &fakeLoader{})

	w := doJSON(srv.Router(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
