package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memindex"

type moduleMetrics struct {
	rebuildDuration   prometheus.Histogram
	notesProcessed    *prometheus.CounterVec
	embeddingFailures prometheus.Counter
	upsertTotal       *prometheus.CounterVec
	searchDuration    prometheus.Histogram
	searchResults     prometheus.Histogram
	indexEntries      prometheus.Gauge

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			rebuildDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "rebuild_duration_seconds",
					Help:      "Full index rebuild duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			notesProcessed: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "notes_processed_total",
					Help:      "Notes processed during rebuilds by status.",
				},
				[]string{"status"},
			),
			embeddingFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "embedding_failures_total",
					Help:      "Note embeddings that could not be generated.",
				},
			),
			upsertTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "upsert_total",
					Help:      "Single-note upserts by status.",
				},
				[]string{"status"},
			),
			searchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "search_duration_seconds",
					Help:      "Semantic search duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			searchResults: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "search_results",
					Help:      "Number of results returned per search.",
					Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
				},
			),
			indexEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "index_entries",
					Help:      "Entries in the persisted index.",
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_execution_total",
					Help:      "Total MCP tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "tool_execution_duration_seconds",
					Help:      "MCP tool execution duration in seconds by tool.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
		}

		prometheus.MustRegister(
			m.rebuildDuration,
			m.notesProcessed,
			m.embeddingFailures,
			m.upsertTotal,
			m.searchDuration,
			m.searchResults,
			m.indexEntries,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordRebuild(duration time.Duration) {
	m := getMetrics()
	m.rebuildDuration.Observe(duration.Seconds())
}

func RecordNoteProcessed(status string) {
	m := getMetrics()
	m.notesProcessed.WithLabelValues(status).Inc()
}

func RecordEmbeddingFailure() {
	m := getMetrics()
	m.embeddingFailures.Inc()
}

func RecordUpsert(success bool) {
	m := getMetrics()
	m.upsertTotal.WithLabelValues(statusLabel(success)).Inc()
}

func RecordSearch(duration time.Duration, results int) {
	m := getMetrics()
	m.searchDuration.Observe(duration.Seconds())
	m.searchResults.Observe(float64(results))
}

func SetIndexEntries(total int) {
	m := getMetrics()
	m.indexEntries.Set(float64(total))
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
