// cmd/rag-server/main.go

// rag-server serves the retrieval-augmented research agent over REST.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"agentic-apps/internal/common/config"
	"agentic-apps/internal/common/database"
	"agentic-apps/internal/common/logger"
	"agentic-apps/internal/common/observability"
	"agentic-apps/internal/rag/embedding"
	"agentic-apps/internal/rag/knowledge"
	"agentic-apps/internal/rag/supervisor"
	"agentic-apps/internal/rag/vectorstore"
	"agentic-apps/internal/rag/websearch"
	"agentic-apps/internal/server"
)

// ==========================
// Logger adapters
// ==========================

type embeddingLogger struct{ logger.Logger }

func (a *embeddingLogger) With(fields map[string]interface{}) embedding.Logger {
	return &embeddingLogger{a.Logger.With(fields)}
}

type vectorstoreLogger struct{ logger.Logger }

func (a *vectorstoreLogger) With(fields map[string]interface{}) vectorstore.Logger {
	return &vectorstoreLogger{a.Logger.With(fields)}
}

type knowledgeLogger struct{ logger.Logger }

func (a *knowledgeLogger) With(fields map[string]interface{}) knowledge.Logger {
	return &knowledgeLogger{a.Logger.With(fields)}
}

type websearchLogger struct{ logger.Logger }

func (a *websearchLogger) With(fields map[string]interface{}) websearch.Logger {
	return &websearchLogger{a.Logger.With(fields)}
}

type supervisorLogger struct{ logger.Logger }

func (a *supervisorLogger) With(fields map[string]interface{}) supervisor.Logger {
	return &supervisorLogger{a.Logger.With(fields)}
}

type serverLogger struct{ logger.Logger }

func (a *serverLogger) With(fields map[string]interface{}) server.Logger {
	return &serverLogger{a.Logger.With(fields)}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	search, err := database.NewOpenSearch(cfg.Database.OpenSearch)
	if err != nil {
		log.Error("failed to create search client", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	retriever := embedding.NewRetriever(embedding.Config{
		BaseURL:   cfg.APIs.Embedding.BaseURL,
		APIKey:    cfg.APIs.Embedding.APIKey,
		Model:     cfg.APIs.Embedding.Model,
		Dimension: cfg.Knowledge.Dimension,
		Timeout:   config.GetDuration(cfg.APIs.Embedding.Timeout),
	}, &embeddingLogger{log})

	// embedding cache is optional; the retriever works without one
	if rdb, err := database.NewRedis(cfg.Database.Redis); err != nil {
		log.Warn("embedding cache unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		ttl := time.Duration(cfg.Knowledge.CacheTTL) * time.Second
		retriever.WithCache(embedding.NewCache(rdb.GetClient(), ttl, &embeddingLogger{log}))
		defer rdb.Close()
	}

	store := vectorstore.NewStore(cfg.Knowledge.IndexName, cfg.Knowledge.Dimension, search.Client, &vectorstoreLogger{log})
	loader := knowledge.NewLoader(cfg.Knowledge.Dir, retriever, store, &knowledgeLogger{log})

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

	agent := supervisor.NewAgent(supervisor.Config{
		Model:           cfg.APIs.Reasoning.Model,
		TopK:            cfg.Knowledge.TopK,
		MinRelevance:    cfg.Knowledge.MinRelevance,
		MaxQueryLength:  cfg.Knowledge.MaxQueryLength,
		MaxAnswerLength: cfg.Knowledge.MaxAnswerLength,
		MaxTokens:       cfg.Pipeline.MaxTokens,
		Temperature:     cfg.Pipeline.Temperature,
	}, llm, retriever, store, web, &supervisorLogger{log})

	srv := server.New(agent, loader, store, search, web, server.ConfigEcho{
		OpenSearchEndpoint: cfg.Database.OpenSearch.GetURL(),
		KnowledgeDir:       cfg.Knowledge.Dir,
		VectorIndex:        cfg.Knowledge.IndexName,
		ReasoningModel:     cfg.APIs.Reasoning.Model,
		EmbeddingModel:     cfg.APIs.Embedding.Model,
	}, &serverLogger{log})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	srv.Probe(ctx)
	cancel()

	addr := cfg.Server.Addr()
	log.Info("starting server", map[string]interface{}{
		"addr":    addr,
		"version": server.Version,
	})
	if err := srv.Run(addr); err != nil {
		log.Error("server stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
