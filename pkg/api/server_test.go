package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bookshelf/pkg/book"
	"github.com/ssargent/bookshelf/pkg/store"
)

type countingPersister struct {
	mu    sync.Mutex
	saves int
	books []book.Book
}

func (p *countingPersister) LoadAll(context.Context) ([]book.Book, error) { return nil, nil }

func (p *countingPersister) SaveAll(_ context.Context, books []book.Book) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.books = books
	return nil
}

func (p *countingPersister) Close() error { return nil }

func (p *countingPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func TestRouter_BookLifecycle(t *testing.T) {
	server, _ := setupTestServer(t)
	ts := httptest.NewServer(NewRouter(server))
	defer ts.Close()

	// Create
	resp, err := http.Post(ts.URL+"/books", "application/json",
		strings.NewReader(`{"title":"Dune","author":"Frank Herbert","year":1965}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/books/1", resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	// Patch
	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/books/1", strings.NewReader(`{"genre":"Science Fiction"}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Get
	resp, err = http.Get(ts.URL + "/books/1")
	require.NoError(t, err)
	var env envelope[book.Book]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	resp.Body.Close()
	require.NotNil(t, env.Data.Genre)
	assert.Equal(t, "Science Fiction", *env.Data.Genre)

	// Delete
	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/books/1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/books/1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Routes(t *testing.T) {
	server, _ := setupTestServer(t)
	router := NewRouter(server)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/", http.StatusOK},
		{"GET", "/health", http.StatusOK},
		{"GET", "/stats", http.StatusOK},
		{"GET", "/books", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/books/xyz", http.StatusBadRequest},
		{"GET", "/authors", http.StatusNotFound},
		{"POST", "/books/1", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	server, _ := setupTestServer(t)
	server.config.CORSAllowedOrigins = []string{"https://library.example"}
	router := NewRouter(server)

	req := httptest.NewRequest(http.MethodOptions, "/books", nil)
	req.Header.Set("Origin", "https://library.example")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://library.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestRouter_RateLimit(t *testing.T) {
	bookStore := store.NewBookStore()
	metrics := NewMetrics(prometheus.NewRegistry())
	server := NewServer(bookStore, ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}, metrics)
	router := NewRouter(server)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/books", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/books", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Metrics stay reachable while the API is throttled
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bookshelf_http_rate_limited_total 1")
}

func TestServer_Serve(t *testing.T) {
	persister := &countingPersister{}
	bookStore := store.NewBookStore(store.WithPersister(persister))
	metrics := NewMetrics(prometheus.NewRegistry())
	server := NewServer(bookStore, ServerConfig{
		FlushInterval:   10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	}, metrics)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, ln)
	}()

	base := "http://" + ln.Addr().String()
	resp, err := http.Post(base+"/books", "application/json",
		strings.NewReader(`{"title":"Dune","author":"Frank Herbert"}`))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Eventually(t, func() bool {
		return persister.saveCount() >= 1 && testutil.ToFloat64(metrics.booksTotal) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, bookStore.Stats().Dirty)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.storeFlushesTotal.WithLabelValues(statusSuccess)), 1.0)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get(base + "/health")
	assert.Error(t, err, "listener is closed after shutdown")
}

func TestStartServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	err = StartServer(context.Background(), store.NewBookStore(), ServerConfig{Bind: "127.0.0.1", Port: port}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}
