// Package metrics exposes classification and HTTP metrics to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

const namespace = "textclass"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	calls      *prometheus.CounterVec
	categories *prometheus.CounterVec
	confidence prometheus.Histogram
	stages     *prometheus.HistogramVec
	latency    prometheus.Histogram
	tokens     prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	routes       *prometheus.CounterVec
}

var _ interfaces.Observer = (*Metrics)(nil)

// New registers all collectors, plus the Go and process collectors, on a
// new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification calls by outcome (local, fallback or error kind).",
		}, []string{"outcome"}),
		categories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_total",
			Help:      "Successful classifications by winning category.",
		}, []string{"category"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence",
			Help:      "Confidence of the winning category.",
			Buckets:   []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 0.95, 0.99},
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"stage"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "End-to-end classification latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		tokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "input_tokens",
			Help:      "Token count before truncation.",
			Buckets:   []float64{4, 8, 16, 32, 64, 128, 256, 512},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Routing decisions by source.",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.calls, m.categories, m.confidence, m.stages, m.latency, m.tokens,
		m.httpRequests, m.httpLatency, m.routes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe records one classification call.
func (m *Metrics) Observe(_ context.Context, rec *models.CallRecord) {
	m.calls.WithLabelValues(rec.Outcome()).Inc()
	m.latency.Observe(rec.Total.Seconds())
	for _, s := range rec.Stages {
		m.stages.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
	}
	if rec.Tokens > 0 {
		m.tokens.Observe(float64(rec.Tokens))
	}
	if rec.Err == nil && rec.Result != nil {
		m.categories.WithLabelValues(rec.Result.Category.String()).Inc()
		m.confidence.Observe(rec.Result.Confidence)
	}
}

// ObserveRoute counts a routing decision.
func (m *Metrics) ObserveRoute(source string) {
	m.routes.WithLabelValues(source).Inc()
}

// Middleware records per-route request counts and latency.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
