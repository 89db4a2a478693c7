// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepRuns counts engine sweeps by trigger source and result.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_sweep_runs_total",
		Help: "Total number of auto-post sweeps by trigger source and result",
	}, []string{"trigger", "result"})

	// SweepPosts counts per-post outcomes inside sweeps.
	SweepPosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_sweep_posts_total",
		Help: "Total number of scheduled posts processed by outcome",
	}, []string{"outcome"})

	// ClaimConflicts counts posts skipped because a concurrent sweep claimed them first.
	ClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postpilot_claim_conflicts_total",
		Help: "Total number of due posts skipped due to a concurrent claim",
	})

	// PublishLatency records external publish call latency.
	PublishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postpilot_publish_latency_seconds",
		Help:    "Latency of external publish calls in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform", "result"})

	// SweepDuration records full sweep duration.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "postpilot_sweep_duration_seconds",
		Help:    "Duration of one full sweep in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

// ObservePublish records one publish call outcome and latency.
func ObservePublish(platform string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	PublishLatency.WithLabelValues(platform, result).Observe(time.Since(start).Seconds())
}
