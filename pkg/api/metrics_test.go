package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_InstrumentHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := m.InstrumentHandler("GET", "/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/books/9", nil))
	handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/books/10", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/books/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpRequestsInFlight.WithLabelValues("GET", "/books/{id}")))
}

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordBookOperation("create", true, time.Millisecond)
	m.RecordBookOperation("create", false, time.Millisecond)
	m.RecordBookOperation("create", true, time.Millisecond)
	m.UpdateStoreStats(12, true)
	m.RecordFlush(false)
	m.RecordHealthCheck(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookOperationsTotal.WithLabelValues("create", statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookOperationsTotal.WithLabelValues("create", statusError)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.booksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeDirty))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeFlushesTotal.WithLabelValues(statusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthChecksTotal.WithLabelValues(statusSuccess)))

	m.UpdateStoreStats(12, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.storeDirty))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordBookOperation("get", true, time.Millisecond)
		m.UpdateStoreStats(1, false)
		m.RecordFlush(true)
		m.RecordRateLimited()
		m.RecordHealthCheck(true)
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	})

	called := false
	handler := m.InstrumentHandler("GET", "/", func(w http.ResponseWriter, r *http.Request) { called = true })
	handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.True(t, called)
}

func TestMetrics_HandlerServesOwnRegistry(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.UpdateStoreStats(3, false)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bookshelf_books_total 3")
}
