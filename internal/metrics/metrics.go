package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawbridge_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drawbridge_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ExecutionsTotal counts task executions by runtime kind and outcome
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawbridge_executions_total",
			Help: "Total number of task executions",
		},
		[]string{"runtime", "status"},
	)

	// ExecutionDuration tracks end-to-end task execution latency
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drawbridge_execution_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"runtime"},
	)

	// SyncOperationsTotal counts workspace sync operations by direction and outcome
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawbridge_sync_operations_total",
			Help: "Total number of workspace sync operations",
		},
		[]string{"operation", "status"},
	)

	// SyncDuration tracks workspace sync latency
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drawbridge_sync_duration_seconds",
			Help:    "Workspace sync duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	// SyncRetriesTotal counts retried sync attempts
	SyncRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawbridge_sync_retries_total",
			Help: "Total number of retried sync attempts",
		},
		[]string{"operation"},
	)

	// CachedThreads tracks live engine thread handles held by the client
	CachedThreads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drawbridge_cached_threads",
			Help: "Number of cached engine thread handles",
		},
	)

	// ScheduledRunsTotal counts scheduled task dispatches by outcome
	ScheduledRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawbridge_scheduled_runs_total",
			Help: "Total number of scheduled task dispatches",
		},
		[]string{"status"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware creates an HTTP middleware that records metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// normalizePath normalizes URL paths to avoid high cardinality
func normalizePath(path string) string {
	switch path {
	case "/health", "/ready", "/mcp", "/mcp/", "/metrics":
		return path
	default:
		if len(path) > 5 && path[:5] == "/mcp/" {
			return "/mcp"
		}
		return "other"
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordExecution records a completed task execution
func RecordExecution(runtime, status string, durationSeconds float64) {
	ExecutionsTotal.WithLabelValues(runtime, status).Inc()
	ExecutionDuration.WithLabelValues(runtime).Observe(durationSeconds)
}

// RecordSyncOperation records a completed sync operation
func RecordSyncOperation(operation, status string, durationSeconds float64) {
	SyncOperationsTotal.WithLabelValues(operation, status).Inc()
	SyncDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordSyncRetry records a retried sync attempt
func RecordSyncRetry(operation string) {
	SyncRetriesTotal.WithLabelValues(operation).Inc()
}

// SetCachedThreads sets the cached thread handle count
func SetCachedThreads(count float64) {
	CachedThreads.Set(count)
}

// RecordScheduledRun records a scheduled task dispatch
func RecordScheduledRun(status string) {
	ScheduledRunsTotal.WithLabelValues(status).Inc()
}
