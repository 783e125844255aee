// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineStagesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stages_completed_total",
			Help: "Total number of pipeline stages completed",
		},
		[]string{"stage"},
	)

	PipelineStagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stages_failed_total",
			Help: "Total number of pipeline stages failed",
		},
		[]string{"stage", "error_code"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of pipeline stage processing in seconds",
		},
		[]string{"stage"},
	)

	PipelineDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_decisions_total",
			Help: "Total number of pipeline routing decisions",
		},
		[]string{"route"},
	)

	RetrievalQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_queries_total",
			Help: "Total number of retrieval queries by answer source",
		},
		[]string{"source"},
	)

	RetrievalQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "retrieval_query_duration_seconds",
			Help: "Duration of retrieval query processing in seconds",
		},
		[]string{"source"},
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_hits_total",
			Help: "Embedding cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "llm_request_duration_seconds",
			Help: "Duration of LLM API calls in seconds",
		},
		[]string{"model_role"},
	)

	DocumentsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_indexed_total",
			Help: "Total number of documents indexed into the knowledge base",
		},
		[]string{"index"},
	)
)
