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

const namespace = "silverrag"

// Metrics owns a private registry so tests can build as many instances as they need.
// All Record methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ingestUploads *prometheus.CounterVec
	ingestParts   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	providerCalls *prometheus.CounterVec
	chatStreams   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		ingestUploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "uploads_total",
				Help:      "Uploaded PDFs by outcome.",
			},
			[]string{"status"},
		),
		ingestParts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "parts_total",
				Help:      "PDF parts processed by outcome.",
			},
			[]string{"status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each ingestion stage.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage", "status"},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Outbound provider calls by provider, operation and outcome.",
			},
			[]string{"provider", "operation", "status"},
		),
		chatStreams: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chat",
				Name:      "streams_total",
				Help:      "Chat streams relayed by outcome.",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.ingestUploads,
		m.ingestParts,
		m.stageDuration,
		m.providerCalls,
		m.chatStreams,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request totals and latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func (m *Metrics) RecordUpload(status string, parts int) {
	if m == nil {
		return
	}
	m.ingestUploads.WithLabelValues(status).Inc()
	if parts > 0 {
		m.ingestParts.WithLabelValues(status).Add(float64(parts))
	}
}

func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (m *Metrics) RecordProviderCall(provider, operation, status string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, operation, status).Inc()
}

func (m *Metrics) RecordChatStream(status string) {
	if m == nil {
		return
	}
	m.chatStreams.WithLabelValues(status).Inc()
}

// Outcome maps an error to the status label used by every counter.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
