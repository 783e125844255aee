// internal/server/handlers.go
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QueryRequest is the /query payload.
type QueryRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// QueryResponse is the /query result.
type QueryResponse struct {
	Response       string   `json:"response"`
	SessionID      string   `json:"session_id,omitempty"`
	ProcessingTime float64  `json:"processing_time"`
	Status         string   `json:"status"`
	Route          string   `json:"route,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

// EmbedRequest is the /embed payload.
type EmbedRequest struct {
	ForceRefresh bool `json:"force_refresh"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"version":  Version,
		"services": s.Services(),
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Multi-Agent RAG System API",
		"version": Version,
		"endpoints": gin.H{
			"health":  "/health",
			"query":   "/query",
			"embed":   "/embed",
			"status":  "/status",
			"metrics": "/metrics",
		},
	})
}

// handleQuery runs one question through the supervisor. Agent errors come
// back as a status:"error" payload with HTTP 200 so callers always get the
// structured shape; only malformed requests are 4xx.
func (s *Server) handleQuery(c *gin.Context) {
	start := time.Now()

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question cannot be empty"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	answer, err := s.agent.Answer(c.Request.Context(), req.Question)
	if err != nil {
		s.logger.Error("query failed", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusOK, QueryResponse{
			Response:       "Error processing query: " + err.Error(),
			SessionID:      req.SessionID,
			ProcessingTime: time.Since(start).Seconds(),
			Status:         "error",
		})
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		Response:       answer.Response,
		SessionID:      req.SessionID,
		ProcessingTime: time.Since(start).Seconds(),
		Status:         "success",
		Route:          answer.Route,
		Sources:        answer.Sources,
	})
}

// handleEmbed kicks off knowledge embedding in the background. Only one
// embedding run is allowed at a time.
func (s *Server) handleEmbed(c *gin.Context) {
	var req EmbedRequest
	// body is optional; an empty body means a plain refresh
	_ = c.ShouldBindJSON(&req)

	s.embedMu.Lock()
	if s.embedRunning {
		s.embedMu.Unlock()
		c.JSON(http.StatusConflict, gin.H{
			"message": "Knowledge embedding already in progress",
			"status":  "busy",
		})
		return
	}
	s.embedRunning = true
	s.embedMu.Unlock()

	go s.runEmbedding(req.ForceRefresh)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Knowledge embedding started in background",
		"status":  "processing",
	})
}

func (s *Server) runEmbedding(forceRefresh bool) {
	defer func() {
		s.embedMu.Lock()
		s.embedRunning = false
		s.embedMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	s.logger.Info("knowledge embedding started", map[string]interface{}{
		"forceRefresh": forceRefresh,
	})

	report, err := s.loader.EmbedAll(ctx)
	if err != nil {
		s.setStatus("knowledge_base", "error")
		s.logger.Error("knowledge embedding failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if s.index != nil {
		if count, err := s.index.Count(ctx); err == nil {
			s.setStatus("knowledge_base", readyStatus(count))
		}
	}

	s.logger.Info("knowledge embedding finished", map[string]interface{}{
		"result": report.String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": s.Services(),
		"config":   s.echo,
	})
}
