// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_completed_total",
			Help: "Total number of pipeline stage executions that completed",
		},
		[]string{"stage", "mode"},
	)

	StageFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failed_total",
			Help: "Total number of pipeline stage executions that failed",
		},
		[]string{"stage", "mode", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of pipeline stage execution in seconds",
		},
		[]string{"stage", "mode"},
	)

	RetrievalEmpty = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_retrieval_empty_total",
			Help: "Total number of retrievals that matched no plan (NoMatch outcome)",
		},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of language-model requests by outcome",
		},
		[]string{"outcome"},
	)
)
