// Package metrics exposes Prometheus instrumentation for the retrieval
// pipeline: search-store latency and retry counts, and context-extraction
// budget utilization. Observability is not excluded by the retrieval
// core's non-goals, so this is wired in the same way every other service
// in this codebase exposes /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docfusion_search_duration_seconds",
		Help:    "Duration of one search-store call, labeled by search type (lexical, semantic:<field>, full_content).",
		Buckets: prometheus.DefBuckets,
	}, []string{"search_type"})

	SearchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docfusion_search_retries_total",
		Help: "Count of search-store retry attempts.",
	}, []string{"search_type"})

	SearchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docfusion_search_failures_total",
		Help: "Count of search tasks dropped after exhausting retries or hitting a non-retryable error.",
	}, []string{"search_type"})

	ContextBudgetUtilization = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docfusion_context_budget_utilization_ratio",
		Help:    "Fraction of a document's allocated token budget actually used by its extracted context.",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
	})

	RetrieveRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docfusion_retrieve_requests_total",
		Help: "Count of retrieve() calls, labeled by outcome (ok, empty, error).",
	}, []string{"outcome"})
)
