package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// AIRequestsTotal counts AI provider calls by operation.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	// AIRequestDuration observes AI provider call latency.
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	// FallbacksTotal counts fail-open degradations by component so degraded
	// responses are distinguishable from fully-served ones in operational data.
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbacks_total",
			Help: "Total number of fail-open fallbacks by component",
		},
		[]string{"component"},
	)

	// EvaluationOverallScore tracks the distribution of overall answer scores.
	EvaluationOverallScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_overall_score",
			Help:    "Distribution of weighted overall evaluation scores [0,1]",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// EvaluationTasksTotal counts evaluation tasks by outcome.
	EvaluationTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluation_tasks_total",
			Help: "Total number of evaluation tasks consumed by outcome",
		},
		[]string{"outcome"},
	)

	// FeedbackRatingMissesTotal counts user ratings that matched no entry.
	FeedbackRatingMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_rating_misses_total",
			Help: "Total number of user ratings dropped because no entry matched",
		},
	)

	// KeepAliveFailuresTotal counts failed keep-alive pings.
	KeepAliveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keepalive_failures_total",
			Help: "Total number of failed keep-alive pings",
		},
	)
)

var registerOnce sync.Once

// InitMetrics registers all Prometheus collectors once per process.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			FallbacksTotal,
			EvaluationOverallScore,
			EvaluationTasksTotal,
			FeedbackRatingMissesTotal,
			KeepAliveFailuresTotal,
		)
	})
}

// HTTPMetricsMiddleware records request counts and latency per chi route.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
