package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API. A nil *Metrics records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec
	rateLimitedTotal     prometheus.Counter

	// Book store metrics
	bookOperationsTotal   *prometheus.CounterVec
	bookOperationDuration *prometheus.HistogramVec
	booksTotal            prometheus.Gauge
	storeFlushesTotal     *prometheus.CounterVec
	storeDirty            prometheus.Gauge

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on reg. A nil reg
// uses the process-wide default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	m := &Metrics{
		gatherer: gatherer,

		// HTTP request metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshelf_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookshelf_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookshelf_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		rateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bookshelf_http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),

		// Book store metrics
		bookOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshelf_book_operations_total",
				Help: "Total number of book store operations",
			},
			[]string{"operation", "status"},
		),

		bookOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookshelf_book_operation_duration_seconds",
				Help:    "Book store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		booksTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bookshelf_books_total",
				Help: "Number of books in the collection",
			},
		),

		storeFlushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshelf_store_flushes_total",
				Help: "Total number of periodic flushes to the storage backend",
			},
			[]string{"status"},
		),

		storeDirty: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bookshelf_store_dirty",
				Help: "1 when the collection has changes not yet flushed",
			},
		),

		// Health check metrics
		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshelf_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

func statusLabel(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// Handler serves the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordBookOperation records a book store operation
func (m *Metrics) RecordBookOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.bookOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
	m.bookOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateStoreStats updates the collection gauges
func (m *Metrics) UpdateStoreStats(books int, dirty bool) {
	if m == nil {
		return
	}
	m.booksTotal.Set(float64(books))
	if dirty {
		m.storeDirty.Set(1)
	} else {
		m.storeDirty.Set(0)
	}
}

// RecordFlush records a periodic flush
func (m *Metrics) RecordFlush(success bool) {
	if m == nil {
		return
	}
	m.storeFlushesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	if m == nil {
		return
	}
	m.healthChecksTotal.WithLabelValues(statusLabel(success)).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Call the original handler
		handler(rw, r)

		// Record metrics
		duration := time.Since(start)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
