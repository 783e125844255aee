// internal/server/server.go

// Package server exposes the RAG system over REST.
package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentic-apps/internal/rag/knowledge"
	"agentic-apps/internal/rag/supervisor"
)

const Version = "1.0.0"

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// QueryAgent answers questions. Satisfied by supervisor.Agent.
type QueryAgent interface {
	Answer(ctx context.Context, question string) (*supervisor.Answer, error)
}

// KnowledgeLoader embeds the knowledge directory. Satisfied by
// knowledge.Loader.
type KnowledgeLoader interface {
	EmbedAll(ctx context.Context) (*knowledge.Report, error)
}

// IndexProber reports knowledge-index state. Satisfied by
// vectorstore.Store.
type IndexProber interface {
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
}

// SearchPinger probes the search cluster. Satisfied by
// database.OpenSearchClient.
type SearchPinger interface {
	Ping() error
}

// WebSearchProber probes the web-search API.
type WebSearchProber interface {
	Healthy(ctx context.Context) bool
}

// ConfigEcho is the non-secret configuration surfaced on /status.
type ConfigEcho struct {
	OpenSearchEndpoint string `json:"opensearch_endpoint"`
	KnowledgeDir       string `json:"knowledge_dir"`
	VectorIndex        string `json:"vector_index"`
	ReasoningModel     string `json:"reasoning_model"`
	EmbeddingModel     string `json:"embedding_model"`
}

type Server struct {
	agent  QueryAgent
	loader KnowledgeLoader
	index  IndexProber
	search SearchPinger
	web    WebSearchProber
	echo   ConfigEcho
	logger Logger

	mu     sync.RWMutex
	status map[string]string

	embedMu      sync.Mutex
	embedRunning bool
}

func New(agent QueryAgent, loader KnowledgeLoader, index IndexProber, search SearchPinger, web WebSearchProber, echo ConfigEcho, log Logger) *Server {
	return &Server{
		agent:  agent,
		loader: loader,
		index:  index,
		search: search,
		web:    web,
		echo:   echo,
		logger: log.With(map[string]interface{}{
			"component": "server",
		}),
		status: map[string]string{
			"opensearch":     "unknown",
			"knowledge_base": "unknown",
			"web_search":     "unknown",
		},
	}
}

// Probe checks the backing services and records their status for /health
// and /status. Failures are recorded, not fatal; the server still starts.
func (s *Server) Probe(ctx context.Context) {
	if s.search != nil {
		if err := s.search.Ping(); err != nil {
			s.setStatus("opensearch", "disconnected")
			s.logger.Warn("search cluster unreachable", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			s.setStatus("opensearch", "connected")
		}
	}

	if s.index != nil {
		exists, err := s.index.Exists(ctx)
		switch {
		case err != nil:
			s.setStatus("knowledge_base", "error")
		case !exists:
			s.setStatus("knowledge_base", "no_index")
		default:
			if count, err := s.index.Count(ctx); err == nil {
				s.setStatus("knowledge_base", readyStatus(count))
			} else {
				s.setStatus("knowledge_base", "error")
			}
		}
	}

	if s.web != nil {
		if s.web.Healthy(ctx) {
			s.setStatus("web_search", "connected")
		} else {
			s.setStatus("web_search", "disconnected")
		}
	}

	s.logger.Info("service probe completed", map[string]interface{}{
		"services": s.Services(),
	})
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.handleHealth)
	router.GET("/", s.handleRoot)
	router.POST("/query", s.handleQuery)
	router.POST("/embed", s.handleEmbed)
	router.GET("/status", s.handleStatus)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Run starts the HTTP listener.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting REST server", map[string]interface{}{
		"addr": addr,
	})
	return s.Router().Run(addr)
}

// Services returns a copy of the service-status map.
func (s *Server) Services() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make(map[string]string, len(s.status))
	for k, v := range s.status {
		services[k] = v
	}
	return services
}

func (s *Server) setStatus(service, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[service] = value
}

func readyStatus(count int) string {
	return fmt.Sprintf("ready (%d documents)", count)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if strings.HasPrefix(c.Request.URL.Path, "/metrics") {
			return
		}
		s.logger.Info("request handled", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
