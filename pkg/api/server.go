// Package api serves the book collection over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const defaultShutdownTimeout = 10 * time.Second

// NewRouter builds the HTTP routes with all middleware configured
func NewRouter(server *Server) http.Handler {
	metrics := server.metrics
	config := server.config

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link", "Location", headerRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if config.RateLimitRPS > 0 {
			limiter := rate.NewLimiter(rate.Limit(config.RateLimitRPS), config.RateLimitBurst)
			r.Use(rateLimitMiddleware(limiter, metrics))
		}

		r.Get("/", metrics.InstrumentHandler("GET", "/", server.handleRoot))
		r.Get("/health", metrics.InstrumentHandler("GET", "/health", server.handleHealth))
		r.Get("/stats", metrics.InstrumentHandler("GET", "/stats", server.handleStats))

		r.Route("/books", func(r chi.Router) {
			r.Get("/", metrics.InstrumentHandler("GET", "/books", server.handleListBooks))
			r.Post("/", metrics.InstrumentHandler("POST", "/books", server.handleCreateBook))
			r.Get("/{id}", metrics.InstrumentHandler("GET", "/books/{id}", server.handleGetBook))
			r.Put("/{id}", metrics.InstrumentHandler("PUT", "/books/{id}", server.handleReplaceBook))
			r.Patch("/{id}", metrics.InstrumentHandler("PATCH", "/books/{id}", server.handlePatchBook))
			r.Delete("/{id}", metrics.InstrumentHandler("DELETE", "/books/{id}", server.handleDeleteBook))
		})
	})

	return r
}

// StartServer listens on the configured address and serves until ctx is
// cancelled.
func StartServer(ctx context.Context, store IBookStore, config ServerConfig, metrics *Metrics) error {
	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	return NewServer(store, config, metrics).Serve(ctx, ln)
}

// Serve runs the HTTP server and the background flusher on ln. When ctx is
// cancelled the server drains in-flight requests within the shutdown timeout.
// The caller owns the final flush of the store.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           NewRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("bookshelf API listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("shutting down HTTP server", "timeout", timeout.String())
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.runFlusher(gctx)
		return nil
	})

	return g.Wait()
}

// runFlusher periodically flushes the store and refreshes the collection
// gauges until ctx is done.
func (s *Server) runFlusher(ctx context.Context) {
	if s.config.FlushInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flushOnce(ctx)
		}
	}
}

func (s *Server) flushOnce(ctx context.Context) {
	if !s.store.Stats().Dirty {
		return
	}
	err := s.store.Flush(ctx)
	s.metrics.RecordFlush(err == nil)
	if err != nil {
		s.logger.Warn("periodic flush failed", "error", err)
	}

	stats := s.store.Stats()
	s.metrics.UpdateStoreStats(stats.Books, stats.Dirty)
}
