// Package metrics exposes Prometheus collectors for the HTTP surface and the
// two ledgers. A nil *Metrics is valid and records nothing.
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
	"github.com/shopspring/decimal"
)

// Metrics holds all ledger metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Stock ledger metrics
	StockMovements        *prometheus.CounterVec
	StockMovementQuantity *prometheus.CounterVec
	StockInBatchLines     prometheus.Histogram
	ReceiptConfirmations  prometheus.Counter

	// PO ledger metrics
	POTransitions *prometheus.CounterVec

	// Rejections by module and error kind
	Rejections *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{Namespace: "mfg"}
}

// New creates a new Metrics instance with its own registry.
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.StockMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "stock",
			Name:      "movements_total",
			Help:      "Committed stock movements by transaction type",
		},
		[]string{"type"},
	)

	m.StockMovementQuantity = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "stock",
			Name:      "movement_quantity_total",
			Help:      "Absolute quantity moved by transaction type",
		},
		[]string{"type"},
	)

	m.StockInBatchLines = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "stock",
			Name:      "stock_in_batch_lines",
			Help:      "Number of lines per committed stock-in batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	m.ReceiptConfirmations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "stock",
			Name:      "receipt_confirmations_total",
			Help:      "Pending receipts confirmed as received",
		},
	)

	m.POTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "po",
			Name:      "actions_total",
			Help:      "Committed purchase order actions",
		},
		[]string{"action"},
	)

	m.Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_rejections_total",
			Help:      "Ledger operations rejected, by module, operation and error kind",
		},
		[]string{"module", "op", "kind"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StockMovements,
		m.StockMovementQuantity,
		m.StockInBatchLines,
		m.ReceiptConfirmations,
		m.POTransitions,
		m.Rejections,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMovement counts one committed receipt, issue or adjustment.
func (m *Metrics) RecordMovement(txType string, quantity decimal.Decimal) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(txType).Inc()
	q, _ := quantity.Abs().Float64()
	m.StockMovementQuantity.WithLabelValues(txType).Add(q)
}

func (m *Metrics) RecordStockIn(lines int) {
	if m == nil {
		return
	}
	m.StockInBatchLines.Observe(float64(lines))
}

func (m *Metrics) RecordReceiptConfirmed() {
	if m == nil {
		return
	}
	m.ReceiptConfirmations.Inc()
}

func (m *Metrics) RecordPOAction(action string) {
	if m == nil {
		return
	}
	m.POTransitions.WithLabelValues(action).Inc()
}

// RecordRejection counts a ledger operation that returned an error.
func (m *Metrics) RecordRejection(module, op, kind string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(module, op, kind).Inc()
}

// Middleware records HTTP metrics per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint to avoid recursion
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use route pattern, not actual path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Method, path, status, time.Since(start))
	})
}
