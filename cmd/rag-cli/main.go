// cmd/rag-cli/main.go

// rag-cli asks the research agent questions from the terminal, either as a
// one-shot query or an interactive session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"agentic-apps/internal/common/config"
	"agentic-apps/internal/common/database"
	"agentic-apps/internal/common/logger"
	"agentic-apps/internal/rag/embedding"
	"agentic-apps/internal/rag/supervisor"
	"agentic-apps/internal/rag/vectorstore"
	"agentic-apps/internal/rag/websearch"
)

// interactive input is short-form, so the query cap is tighter than the
// REST server's
const cliQueryLimit = 500

type embeddingLogger struct{ logger.Logger }

func (a *embeddingLogger) With(fields map[string]interface{}) embedding.Logger {
	return &embeddingLogger{a.Logger.With(fields)}
}

type vectorstoreLogger struct{ logger.Logger }

func (a *vectorstoreLogger) With(fields map[string]interface{}) vectorstore.Logger {
	return &vectorstoreLogger{a.Logger.With(fields)}
}

type websearchLogger struct{ logger.Logger }

func (a *websearchLogger) With(fields map[string]interface{}) websearch.Logger {
	return &websearchLogger{a.Logger.With(fields)}
}

type supervisorLogger struct{ logger.Logger }

func (a *supervisorLogger) With(fields map[string]interface{}) supervisor.Logger {
	return &supervisorLogger{a.Logger.With(fields)}
}

func main() {
	query := flag.String("q", "", "run a single query and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// keep the terminal clean; diagnostics still go to the log output
	log := logger.NewStructured("warn", cfg.Logging.Format)

	agent, err := buildAgent(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up agent: %v\n", err)
		os.Exit(1)
	}

	if *query != "" {
		ask(agent, *query)
		return
	}

	fmt.Println("Research assistant. Type a question, or 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		ask(agent, line)
	}
}

func buildAgent(cfg *config.Config, log logger.Logger) (*supervisor.Agent, error) {
	search, err := database.NewOpenSearch(cfg.Database.OpenSearch)
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}

	retriever := embedding.NewRetriever(embedding.Config{
		BaseURL:   cfg.APIs.Embedding.BaseURL,
		APIKey:    cfg.APIs.Embedding.APIKey,
		Model:     cfg.APIs.Embedding.Model,
		Dimension: cfg.Knowledge.Dimension,
		Timeout:   config.GetDuration(cfg.APIs.Embedding.Timeout),
	}, &embeddingLogger{log})

	if rdb, err := database.NewRedis(cfg.Database.Redis); err == nil {
		ttl := time.Duration(cfg.Knowledge.CacheTTL) * time.Second
		retriever.WithCache(embedding.NewCache(rdb.GetClient(), ttl, &embeddingLogger{log}))
	}

	store := vectorstore.NewStore(cfg.Knowledge.IndexName, cfg.Knowledge.Dimension, search.Client, &vectorstoreLogger{log})

	web := websearch.NewClient(websearch.Config{
		BaseURL:     cfg.APIs.WebSearch.BaseURL,
		APIKey:      cfg.APIs.WebSearch.APIKey,
		SearchDepth: cfg.APIs.WebSearch.SearchDepth,
		MaxResults:  cfg.APIs.WebSearch.MaxResults,
		Timeout:     config.GetDuration(cfg.APIs.WebSearch.Timeout),
	}, &websearchLogger{log})

	llmCfg := openai.DefaultConfig(cfg.APIs.Reasoning.APIKey)
	if cfg.APIs.Reasoning.BaseURL != "" {
		llmCfg.BaseURL = cfg.APIs.Reasoning.BaseURL
	}
	llm := openai.NewClientWithConfig(llmCfg)

	return supervisor.NewAgent(supervisor.Config{
		Model:           cfg.APIs.Reasoning.Model,
		TopK:            cfg.Knowledge.TopK,
		MinRelevance:    cfg.Knowledge.MinRelevance,
		MaxQueryLength:  cliQueryLimit,
		MaxAnswerLength: cfg.Knowledge.MaxAnswerLength,
		MaxTokens:       cfg.Pipeline.MaxTokens,
		Temperature:     cfg.Pipeline.Temperature,
	}, llm, retriever, store, web, &supervisorLogger{log}), nil
}

func ask(agent *supervisor.Agent, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	answer, err := agent.Answer(ctx, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}

	fmt.Println()
	fmt.Println(answer.Response)
	fmt.Println()
	fmt.Printf("[route: %s | sources: %s | %.1fs]\n",
		answer.Route, formatSources(answer.Sources), time.Since(start).Seconds())
}

func formatSources(sources []string) string {
	if len(sources) == 0 {
		return "none"
	}
	return strings.Join(sources, ", ")
}
