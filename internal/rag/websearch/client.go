// internal/rag/websearch/client.go

// Package websearch wraps the Tavily search API. It is the fallback tool
// the supervisor reaches for when knowledge-base retrieval comes back
// empty or below the relevance threshold.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"agentic-apps/internal/common/errors"
	"agentic-apps/internal/common/metrics"
)

const (
	DefaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 5
	maxResultsCap     = 20
)

var (
	ErrSearchFailed = errors.Sentinel(errors.ErrCodeWebSearchFailed)
	ErrMissingKey   = fmt.Errorf("%w: api key not configured", ErrSearchFailed)
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Config holds Tavily connection settings.
type Config struct {
	BaseURL     string
	APIKey      string
	SearchDepth string
	MaxResults  int
	Timeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SearchDepth == "" {
		c.SearchDepth = "basic"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
	if c.MaxResults > maxResultsCap {
		c.MaxResults = maxResultsCap
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Result is one web search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// Response is a complete search response.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Answer  string   `json:"answer,omitempty"`
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type Client struct {
	config Config
	client *resty.Client
	logger Logger
}

func NewClient(cfg Config, log Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		logger: log.With(map[string]interface{}{
			"component": "websearch",
		}),
	}
}

// Search runs one web search. The answer field is populated when the API
// includes a generated summary.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingKey
	}

	start := time.Now()
	defer func() {
		metrics.RetrievalQueryDuration.WithLabelValues("web_search").Observe(time.Since(start).Seconds())
	}()
	metrics.RetrievalQueries.WithLabelValues("web_search").Inc()

	var result Response
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(searchRequest{
			APIKey:        c.config.APIKey,
			Query:         query,
			SearchDepth:   c.config.SearchDepth,
			MaxResults:    c.config.MaxResults,
			IncludeAnswer: true,
		}).
		SetResult(&result).
		Post(c.config.BaseURL + "/search")

	if err != nil {
		c.logger.Error("web search request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn("web search returned non-200", map[string]interface{}{
			"status": resp.StatusCode(),
		})
		return nil, fmt.Errorf("%w: status %d: %s", ErrSearchFailed, resp.StatusCode(), truncate(string(resp.Body()), 200))
	}

	result.Query = query

	c.logger.Info("web search completed", map[string]interface{}{
		"results":   len(result.Results),
		"hasAnswer": result.Answer != "",
	})
	return &result, nil
}

// Healthy probes the API with a minimal query.
func (c *Client) Healthy(ctx context.Context) bool {
	if c.config.APIKey == "" {
		return false
	}
	_, err := c.Search(ctx, "test")
	return err == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
