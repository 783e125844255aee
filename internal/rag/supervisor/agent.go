// internal/rag/supervisor/agent.go

// Package supervisor answers questions by routing between knowledge-base
// retrieval and web search, then synthesizing a cited answer with the
// reasoning model.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"agentic-apps/internal/common/errors"
	"agentic-apps/internal/common/metrics"
	"agentic-apps/internal/rag/vectorstore"
	"agentic-apps/internal/rag/websearch"
)

const (
	truncationMarker = "... [Response truncated due to length]"

	// contextSnippetRunes caps each retrieved passage in the synthesis prompt.
	contextSnippetRunes = 500

	systemPrompt = `You are a research assistant that answers questions using the provided context.

Rules:
- Ground every statement in the supplied context; do not invent facts.
- Cite the source of each claim using the source names given in the context.
- If the context does not contain the answer, say so plainly.
- Keep the answer focused on the question.`
)

var (
	ErrQueryEmpty      = errors.Sentinel(errors.ErrCodeQueryEmpty)
	ErrSynthesisFailed = errors.Sentinel(errors.ErrCodeLLMSynthesisFailed)
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Embedder turns the question into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) []float64
}

// KnowledgeSearcher retrieves similar documents from the knowledge index.
type KnowledgeSearcher interface {
	SimilaritySearch(ctx context.Context, vector []float64, k int, filters map[string]interface{}) ([]vectorstore.SearchResult, error)
}

// WebSearcher is the fallback search tool.
type WebSearcher interface {
	Search(ctx context.Context, query string) (*websearch.Response, error)
}

// Config tunes retrieval routing and answer shaping.
type Config struct {
	Model           string
	TopK            int
	MinRelevance    float64
	MaxQueryLength  int
	MaxAnswerLength int
	MaxTokens       int
	Temperature     float64
}

func (c *Config) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.MinRelevance <= 0 {
		c.MinRelevance = 0.5
	}
	if c.MaxQueryLength <= 0 {
		c.MaxQueryLength = 1000
	}
	if c.MaxAnswerLength <= 0 {
		c.MaxAnswerLength = 4000
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1500
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
}

type Agent struct {
	config    Config
	llm       *openai.Client
	embedder  Embedder
	knowledge KnowledgeSearcher
	web       WebSearcher
	logger    Logger
}

func NewAgent(cfg Config, llm *openai.Client, embedder Embedder, knowledge KnowledgeSearcher, web WebSearcher, log Logger) *Agent {
	cfg.applyDefaults()
	return &Agent{
		config:    cfg,
		llm:       llm,
		embedder:  embedder,
		knowledge: knowledge,
		web:       web,
		logger: log.With(map[string]interface{}{
			"component": "supervisor",
		}),
	}
}

// Answer resolves one question. Knowledge-base retrieval is tried first;
// when it comes back empty or below the relevance threshold, web search
// takes over. The reasoning model synthesizes the final answer from
// whichever context won.
func (a *Agent) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQueryEmpty
	}
	if utf8.RuneCountInString(question) > a.config.MaxQueryLength {
		a.logger.Warn("question too long, truncating", map[string]interface{}{
			"length": utf8.RuneCountInString(question),
			"limit":  a.config.MaxQueryLength,
		})
		question = truncateRunes(question, a.config.MaxQueryLength)
	}

	contextBlock, route, sources := a.gatherContext(ctx, question)

	response, err := a.synthesize(ctx, question, contextBlock)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Response: response,
		Route:    route,
		Sources:  sources,
	}
	if utf8.RuneCountInString(answer.Response) > a.config.MaxAnswerLength {
		a.logger.Warn("answer too long, truncating", map[string]interface{}{
			"length": utf8.RuneCountInString(answer.Response),
			"limit":  a.config.MaxAnswerLength,
		})
		answer.Response = truncateRunes(answer.Response, a.config.MaxAnswerLength) + truncationMarker
		answer.Truncated = true
	}

	a.logger.Info("question answered", map[string]interface{}{
		"route":   answer.Route,
		"sources": len(answer.Sources),
	})
	return answer, nil
}

// gatherContext retrieves supporting context and reports which route
// supplied it. Retrieval failures degrade to an empty context so the model
// can still respond.
func (a *Agent) gatherContext(ctx context.Context, question string) (string, string, []string) {
	vector := a.embedder.Embed(ctx, question)

	results, err := a.knowledge.SimilaritySearch(ctx, vector, a.config.TopK, nil)
	if err != nil {
		a.logger.Warn("knowledge retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if relevant(results, a.config.MinRelevance) {
		return formatKnowledgeContext(results), RouteKnowledgeBase, sourceNames(results)
	}

	a.logger.Info("knowledge base insufficient, falling back to web search", map[string]interface{}{
		"hits": len(results),
	})

	webResp, err := a.web.Search(ctx, question)
	if err != nil {
		a.logger.Warn("web search failed", map[string]interface{}{
			"error": err.Error(),
		})
		// fall back to whatever the knowledge base had, even below threshold
		return formatKnowledgeContext(results), RouteKnowledgeBase, sourceNames(results)
	}

	return formatWebContext(webResp), RouteWebSearch, webSources(webResp)
}

func relevant(results []vectorstore.SearchResult, minRelevance float64) bool {
	if len(results) == 0 {
		return false
	}
	best := results[0].Score
	for _, r := range results[1:] {
		if r.Score > best {
			best = r.Score
		}
	}
	return best >= minRelevance
}

func formatKnowledgeContext(results []vectorstore.SearchResult) string {
	if len(results) == 0 {
		return "No relevant context found."
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[Context %d - Source: %s]\n%s\n\n", i+1, r.Source, truncateRunes(r.Content, contextSnippetRunes))
	}
	return strings.TrimSpace(b.String())
}

func formatWebContext(resp *websearch.Response) string {
	var b strings.Builder
	if resp.Answer != "" {
		fmt.Fprintf(&b, "[Web Summary]\n%s\n\n", resp.Answer)
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "[Web Result %d - Source: %s]\n%s\n\n", i+1, r.URL, truncateRunes(r.Content, contextSnippetRunes))
	}
	if b.Len() == 0 {
		return "No relevant context found."
	}
	return strings.TrimSpace(b.String())
}

// truncateRunes caps s at max runes so a multibyte character is never
// split mid-sequence.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func sourceNames(results []vectorstore.SearchResult) []string {
	seen := map[string]bool{}
	var sources []string
	for _, r := range results {
		if r.Source == "" || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		sources = append(sources, r.Source)
	}
	return sources
}

func webSources(resp *websearch.Response) []string {
	var sources []string
	for _, r := range resp.Results {
		if r.URL != "" {
			sources = append(sources, r.URL)
		}
	}
	return sources
}

func (a *Agent) synthesize(ctx context.Context, question, contextBlock string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.WithLabelValues("reasoning").Observe(time.Since(start).Seconds())
	}()

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)

	resp, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.config.Model,
		MaxTokens:   a.config.MaxTokens,
		Temperature: float32(a.config.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		a.logger.Error("answer synthesis failed", map[string]interface{}{
			"error": err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: model returned empty response", ErrSynthesisFailed)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
