// Package metrics exposes Prometheus instrumentation for the TrustTrace API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultNamespace = "trustrace"
	unmatchedRoute   = "unmatched"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets overrides the latency buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRuntimeCollectors registers the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.runtimeCollectors = true
	}
}

// Manager owns a private registry and every collector registered on it.
type Manager struct {
	namespace         string
	histogramBuckets  []float64
	runtimeCollectors bool
	registry          *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	tracesSubmitted *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
}

// NewManager builds a Manager on a fresh registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"route", "method"},
	)

	m.tracesSubmitted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "reports",
			Name:      "traces_submitted_total",
			Help:      "Total number of accepted trace submissions by outcome",
		},
		[]string{"outcome"},
	)
	m.fetchFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "reports",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed store fetches by operation",
		},
		[]string{"operation"},
	)

	if m.runtimeCollectors {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTraceSubmitted counts one accepted trace.
func (m *Manager) RecordTraceSubmitted(outcome string) {
	m.tracesSubmitted.WithLabelValues(outcome).Inc()
}

// RecordFetchFailure counts one failed store fetch for operation.
func (m *Manager) RecordFetchFailure(operation string) {
	m.fetchFailures.WithLabelValues(operation).Inc()
}

// Middleware records request counts and latency labelled by the matched route
// template, so path parameters do not explode label cardinality.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
