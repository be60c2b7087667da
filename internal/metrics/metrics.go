// Package metrics registers prometheus collectors for benchmark activity.
// The harness has no exposition endpoint of its own; collectors live on the
// default registry so embedding processes can scrape them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BenchmarkRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gauge_benchmark_runs_total",
		Help: "Completed benchmark runs by framework label",
	}, []string{"framework"})

	BenchmarkElapsed = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "gauge_benchmark_elapsed_seconds",
		Help: "Total elapsed wall-clock time of timed benchmark loops",
	})

	ForwardLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gauge_forward_latency_seconds",
		Help:    "Mean per-iteration forward latency of benchmark runs",
		Buckets: prometheus.ExponentialBuckets(1e-5, 4, 12),
	})

	ExportDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "gauge_export_duration_seconds",
		Help: "Duration of model export worker invocations",
	})
)

// RecordRun records one completed run. Called after the timed loop, so
// metric bookkeeping never contributes to the reported elapsed time.
func RecordRun(framework string, elapsedSeconds float64, iterations int) {
	BenchmarkRunsTotal.WithLabelValues(framework).Inc()
	BenchmarkElapsed.Observe(elapsedSeconds)
	if iterations > 0 {
		ForwardLatency.Observe(elapsedSeconds / float64(iterations))
	}
}

// RecordExport records one export worker invocation.
func RecordExport(seconds float64) {
	ExportDuration.Observe(seconds)
}
