// Package metrics exposes Prometheus collectors for the prompt catalog and
// its tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// catalogBuildsTotal counts catalog builds.
	// Labels:
	//   - source: source that produced the catalog, "none" when every source failed
	//   - status: "ok", "fallback" or "empty"
	catalogBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_catalog_builds_total",
			Help: "Total number of prompt catalog builds",
		},
		[]string{"source", "status"},
	)

	catalogBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prompt_catalog_build_duration_seconds",
			Help:    "Duration of prompt catalog builds in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 3, 5, 10},
		},
	)

	catalogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prompt_catalog_size",
			Help: "Number of prompts in the current catalog",
		},
	)

	// sourceFailuresTotal counts failed fetches per source and typed reason.
	sourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_source_failures_total",
			Help: "Total number of prompt source failures",
		},
		[]string{"source", "reason"},
	)

	// toolCallsTotal counts tool invocations.
	// Labels:
	//   - kind: "prompt" or "management"
	//   - status: "ok" or "error"
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"kind", "status"},
	)

	usageReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_usage_reports_total",
			Help: "Total number of usage reports sent to the backing store",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(catalogBuildsTotal)
	prometheus.MustRegister(catalogBuildDuration)
	prometheus.MustRegister(catalogSize)
	prometheus.MustRegister(sourceFailuresTotal)
	prometheus.MustRegister(toolCallsTotal)
	prometheus.MustRegister(usageReportsTotal)
}

// RecordCatalogBuild records one finished build.
func RecordCatalogBuild(source, status string, d time.Duration, size int) {
	if source == "" {
		source = "none"
	}
	catalogBuildsTotal.WithLabelValues(source, status).Inc()
	catalogBuildDuration.Observe(d.Seconds())
	catalogSize.Set(float64(size))
}

// RecordSourceFailure records a failed fetch.
func RecordSourceFailure(source, reason string) {
	sourceFailuresTotal.WithLabelValues(source, reason).Inc()
}

// RecordToolCall records one tool invocation.
func RecordToolCall(kind string, isError bool) {
	status := "ok"
	if isError {
		status = "error"
	}
	toolCallsTotal.WithLabelValues(kind, status).Inc()
}

// RecordUsageReport records the outcome of a usage report: "ok", "error" or
// "dropped".
func RecordUsageReport(status string) {
	usageReportsTotal.WithLabelValues(status).Inc()
}
