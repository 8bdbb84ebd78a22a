// Package metrics exposes Prometheus collectors for the spotlight server.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spotlight"

// Omission reasons for FeedPostOmitted.
const (
	ReasonMissing = "missing"
	ReasonError   = "error"
)

// Metrics holds every collector the server reports.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	relationToggles *prometheus.CounterVec
	commentsAdded   prometheus.Counter
	feedAssembly    *prometheus.HistogramVec
	feedOmitted     *prometheus.CounterVec
	txnRetries      *prometheus.CounterVec
	sseDropped      *prometheus.CounterVec
	sseClients      prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of requests being served",
			},
		),
		relationToggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relation_toggles_total",
				Help:      "Committed relation toggles by kind and resulting state",
			},
			[]string{"kind", "state"},
		),
		commentsAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "comments_added_total",
				Help:      "Committed comments",
			},
		),
		feedAssembly: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_assembly_seconds",
				Help:      "Time to enrich a post list for one viewer",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"view"},
		),
		feedOmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_omitted_posts_total",
				Help:      "Posts dropped from assembled lists",
			},
			[]string{"reason"},
		),
		txnRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_txn_retries_total",
				Help:      "Store transactions retried after a conflict or busy database",
			},
			[]string{"backend"},
		),
		sseDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sse_events_dropped_total",
				Help:      "Events not delivered to a stream client because its buffer was full",
			},
			[]string{"type"},
		),
		sseClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sse_clients",
				Help:      "Connected event stream clients",
			},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInFlight,
		m.relationToggles,
		m.commentsAdded,
		m.feedAssembly,
		m.feedOmitted,
		m.txnRetries,
		m.sseDropped,
		m.sseClients,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RelationToggled counts a committed toggle.
func (m *Metrics) RelationToggled(kind string, active bool) {
	if m == nil {
		return
	}
	state := "removed"
	if active {
		state = "added"
	}
	m.relationToggles.WithLabelValues(kind, state).Inc()
}

// CommentAdded counts a committed comment.
func (m *Metrics) CommentAdded() {
	if m == nil {
		return
	}
	m.commentsAdded.Inc()
}

// ObserveAssembly records how long a list took to assemble.
func (m *Metrics) ObserveAssembly(view string, d time.Duration) {
	if m == nil {
		return
	}
	m.feedAssembly.WithLabelValues(view).Observe(d.Seconds())
}

// FeedPostOmitted counts a post dropped from an assembled list.
func (m *Metrics) FeedPostOmitted(reason string) {
	if m == nil {
		return
	}
	m.feedOmitted.WithLabelValues(reason).Inc()
}

// TxnRetried returns a callback that counts retries for backend.
func (m *Metrics) TxnRetried(backend string) func() {
	if m == nil {
		return func() {}
	}
	c := m.txnRetries.WithLabelValues(backend)
	return c.Inc
}

// SSEDropped counts an event dropped for a slow stream client.
func (m *Metrics) SSEDropped(eventType string) {
	if m == nil {
		return
	}
	m.sseDropped.WithLabelValues(eventType).Inc()
}

// SSEClients records the number of connected stream clients.
func (m *Metrics) SSEClients(n int) {
	if m == nil {
		return
	}
	m.sseClients.Set(float64(n))
}

// Middleware records request count, duration and in-flight requests. Routes
// are labeled by their chi pattern to keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
