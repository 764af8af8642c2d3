package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ssargent/bookshelf/pkg/book"
	"github.com/ssargent/bookshelf/pkg/query"
)

// Server holds the API server state
type Server struct {
	store   IBookStore
	engine  *query.Engine
	config  ServerConfig
	metrics *Metrics
	logger  Logger
}

// NewServer creates a new API server
func NewServer(store IBookStore, config ServerConfig, metrics *Metrics) *Server {
	logger := config.Logger
	if logger == nil {
		logger = discardLogger{}
	}
	return &Server{
		store: store,
		engine: query.NewEngine(query.EngineConfig{
			DefaultLimit: config.DefaultLimit,
			MaxLimit:     config.MaxLimit,
		}),
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, ServiceInfo{
		Name:    "bookshelf",
		Version: s.config.Version,
		Endpoints: map[string]string{
			"books":   "/books",
			"health":  "/health",
			"metrics": "/metrics",
			"stats":   "/stats",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	// Update metrics with current stats
	s.metrics.UpdateStoreStats(stats.Books, stats.Dirty)
	sendSuccess(w, stats)
}

// handleListBooks runs the query pipeline over a snapshot of the collection
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params, err := query.ParseValues(r.URL.Query())
	if err != nil {
		s.metrics.RecordBookOperation("list", false, time.Since(start))
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.engine.Execute(s.store.List(r.Context()), params)

	s.metrics.RecordBookOperation("list", true, time.Since(start))
	sendSuccess(w, result)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := bookID(w, r)
	if !ok {
		s.metrics.RecordBookOperation("get", false, time.Since(start))
		return
	}

	b, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.metrics.RecordBookOperation("get", false, time.Since(start))
		sendStoreError(w, err)
		return
	}

	s.metrics.RecordBookOperation("get", true, time.Since(start))
	sendSuccess(w, b)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.RecordBookOperation("create", false, time.Since(start))
		sendError(w, fmt.Sprintf("Invalid JSON request: %v", err), http.StatusBadRequest)
		return
	}

	created, err := s.store.Create(r.Context(), req.Candidate)
	if err != nil {
		s.metrics.RecordBookOperation("create", false, time.Since(start))
		sendStoreError(w, err)
		return
	}

	s.metrics.RecordBookOperation("create", true, time.Since(start))
	s.logger.Info("book created", "id", created.ID, "request_id", middleware.GetReqID(r.Context()))
	sendCreated(w, fmt.Sprintf("/books/%d", created.ID), created)
}

func (s *Server) handleReplaceBook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := bookID(w, r)
	if !ok {
		s.metrics.RecordBookOperation("replace", false, time.Since(start))
		return
	}

	var req BookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.RecordBookOperation("replace", false, time.Since(start))
		sendError(w, fmt.Sprintf("Invalid JSON request: %v", err), http.StatusBadRequest)
		return
	}

	replaced, err := s.store.Replace(r.Context(), id, req.Candidate)
	if err != nil {
		s.metrics.RecordBookOperation("replace", false, time.Since(start))
		sendStoreError(w, err)
		return
	}

	s.metrics.RecordBookOperation("replace", true, time.Since(start))
	sendSuccess(w, replaced)
}

// handlePatchBook applies only the fields present in the body. An explicit
// null clears an optional field.
func (s *Server) handlePatchBook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := bookID(w, r)
	if !ok {
		s.metrics.RecordBookOperation("patch", false, time.Since(start))
		return
	}

	var patch book.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.metrics.RecordBookOperation("patch", false, time.Since(start))
		sendError(w, fmt.Sprintf("Invalid JSON request: %v", err), http.StatusBadRequest)
		return
	}

	patched, err := s.store.Patch(r.Context(), id, patch)
	if err != nil {
		s.metrics.RecordBookOperation("patch", false, time.Since(start))
		sendStoreError(w, err)
		return
	}

	s.metrics.RecordBookOperation("patch", true, time.Since(start))
	sendSuccess(w, patched)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := bookID(w, r)
	if !ok {
		s.metrics.RecordBookOperation("delete", false, time.Since(start))
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.metrics.RecordBookOperation("delete", false, time.Since(start))
		sendStoreError(w, err)
		return
	}

	s.metrics.RecordBookOperation("delete", true, time.Since(start))
	s.logger.Info("book deleted", "id", id, "request_id", middleware.GetReqID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// bookID parses the {id} path parameter, answering 400 when it is not an integer
func bookID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		sendError(w, fmt.Sprintf("Invalid book id %q: must be an integer", raw), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
