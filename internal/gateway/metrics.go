package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors. Each Gateway owns
// its registry so parallel test instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	chatRequests  *prometheus.CounterVec
	chatErrors    prometheus.Counter
	chatDuration  prometheus.Histogram
	contextTokens prometheus.Histogram
}

// NewMetrics creates and registers the gateway collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowsmith_http_requests_total",
			Help: "HTTP requests by path and status code.",
		}, []string{"path", "code"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowsmith_chat_requests_total",
			Help: "Chat turns by inferred prompt mode.",
		}, []string{"mode"}),
		chatErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowsmith_chat_errors_total",
			Help: "Chat turns that failed before a response was produced.",
		}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowsmith_chat_duration_seconds",
			Help:    "End-to-end chat turn latency.",
			Buckets: prometheus.DefBuckets,
		}),
		contextTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowsmith_context_tokens",
			Help:    "Estimated total tokens of assembled contexts.",
			Buckets: prometheus.ExponentialBuckets(128, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.chatRequests,
		m.chatErrors,
		m.chatDuration,
		m.contextTokens,
	)
	return m
}

// Handler serves the /metrics endpoint from this gateway's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts every request by path and response code.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.httpRequests.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status)).Inc()
	})
}

// RecordChat records one completed chat turn.
func (m *Metrics) RecordChat(mode string, latency time.Duration, contextTokens int) {
	m.chatRequests.WithLabelValues(mode).Inc()
	m.chatDuration.Observe(latency.Seconds())
	m.contextTokens.Observe(float64(contextTokens))
}

// RecordChatError records a failed chat turn.
func (m *Metrics) RecordChatError() {
	m.chatErrors.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
