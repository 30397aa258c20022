// Package metrics exposes Prometheus collectors for the HTTP API, the
// transaction service and the event pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fintrack"

// Metrics holds every collector. All methods are safe on a nil *Metrics,
// which disables recording.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Business Metrics
	TransactionOps    *prometheus.CounterVec
	TransactionErrors *prometheus.CounterVec
	AccountPurges     prometheus.Counter
	ReportsBuilt      *prometheus.CounterVec
	ContactMessages   prometheus.Counter

	// Cache Metrics
	CacheLookups *prometheus.CounterVec

	// Event Metrics
	EventsPublished *prometheus.CounterVec
	EventsMirrored  *prometheus.CounterVec

	// Validation Metrics
	ValidationErrors *prometheus.CounterVec

	// Security Metrics
	RateLimited prometheus.Counter
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		TransactionOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_operations_total",
				Help:      "Successful transaction operations by kind and type",
			},
			[]string{"operation", "txn_type"},
		),
		TransactionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_errors_total",
				Help:      "Failed transaction operations by kind and error class",
			},
			[]string{"operation", "error_type"},
		),
		AccountPurges: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_purges_total",
				Help:      "Completed account data purges",
			},
		),
		ReportsBuilt: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_built_total",
				Help:      "Reports computed from the store, by range",
			},
			[]string{"range"},
		),
		ContactMessages: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "contact_messages_total",
				Help:      "Stored contact form submissions",
			},
		),

		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),

		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Transaction events handed to the broker, by kind and status",
			},
			[]string{"kind", "status"},
		),
		EventsMirrored: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_mirrored_total",
				Help:      "Transaction events applied to the spreadsheet mirror, by kind and status",
			},
			[]string{"kind", "status"},
		),

		ValidationErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_errors_total",
				Help:      "Rejected input fields by field and tag",
			},
			[]string{"field", "tag"},
		),

		RateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// NewServer returns a listener-less server exposing only GET /metrics, for
// processes that have no HTTP API of their own.
func NewServer(addr string, m *Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Add(delta)
}

func (m *Metrics) RecordTransactionOp(op, txnType string) {
	if m == nil {
		return
	}
	m.TransactionOps.WithLabelValues(op, txnType).Inc()
}

func (m *Metrics) RecordTransactionError(op, errorType string) {
	if m == nil {
		return
	}
	m.TransactionErrors.WithLabelValues(op, errorType).Inc()
}

func (m *Metrics) RecordPurge() {
	if m == nil {
		return
	}
	m.AccountPurges.Inc()
}

func (m *Metrics) RecordReportBuilt(rangeName string) {
	if m == nil {
		return
	}
	m.ReportsBuilt.WithLabelValues(rangeName).Inc()
}

func (m *Metrics) RecordContactMessage() {
	if m == nil {
		return
	}
	m.ContactMessages.Inc()
}

func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) RecordEventPublished(kind string, err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(kind, status(err)).Inc()
}

func (m *Metrics) RecordEventMirrored(kind string, err error) {
	if m == nil {
		return
	}
	m.EventsMirrored.WithLabelValues(kind, status(err)).Inc()
}

func (m *Metrics) RecordValidationError(field, tag string) {
	if m == nil {
		return
	}
	m.ValidationErrors.WithLabelValues(field, tag).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
