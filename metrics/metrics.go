// Package metrics holds the Prometheus collectors shared by the api and ingestor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_hits_total",
		Help: "Pipeline reads answered from a fresh cache entry.",
	}, []string{"signal"})
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_misses_total",
		Help: "Pipeline reads that had to call the source.",
	}, []string{"signal"})
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_pipeline_source_failures_total",
		Help: "Source adapter calls that failed or were rate limited.",
	}, []string{"signal"})
	StaleFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_pipeline_stale_fallbacks_total",
		Help: "Source failures answered from a stale cache entry.",
	}, []string{"signal"})
	HistoryWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_storage_write_failures_total",
		Help: "Failed writes to durable signal history.",
	}, []string{"kind"})

	RoutesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_orchestrator_routes_evaluated_total",
		Help: "Total number of route risk assessments computed.",
	})
	RouteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_orchestrator_route_failures_total",
		Help: "Routes skipped because their evaluation failed.",
	})
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlas_orchestrator_evaluation_duration_seconds",
		Help:    "Duration of a full route evaluation pass.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0},
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlas_runner_cycle_duration_seconds",
		Help:    "Duration of a background refresh cycle.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
	CycleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_runner_cycle_failures_total",
		Help: "Background refresh cycles that returned an error or panicked.",
	})

	AssessmentsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_publish_assessments_published_total",
		Help: "Total number of assessments published downstream.",
	})
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_publish_failures_total",
		Help: "Assessments that could not be published.",
	})

	AISMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_ais_messages_received_total",
		Help: "Total number of MQTT AIS messages received.",
	})
	AISMessagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_ais_messages_failed_total",
		Help: "AIS messages rejected as malformed.",
	})
)
