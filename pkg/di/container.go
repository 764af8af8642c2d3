// Package di provides dependency injection container
package di

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/bookshelf/pkg/api" //nolint:depguard
	"github.com/ssargent/bookshelf/pkg/config"
	"github.com/ssargent/bookshelf/pkg/logging"
	"github.com/ssargent/bookshelf/pkg/storage"
	"github.com/ssargent/bookshelf/pkg/store"
)

// PersisterFactory opens the storage backend for a configuration. A nil
// persister means the collection lives only in memory.
type PersisterFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Persister, error)

// Container holds all the dependencies for the application
type Container struct {
	persisterFactory PersisterFactory
	registry         *prometheus.Registry
	logOutput        io.Writer

	metrics *api.Metrics
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		persisterFactory: openStorage,
		logOutput:        os.Stderr,
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Persister, error) {
	if logger == nil {
		return storage.Open(ctx, cfg, nil)
	}
	return storage.Open(ctx, cfg, logger)
}

// SetPersisterFactory allows overriding the storage backend (for testing)
func (c *Container) SetPersisterFactory(factory PersisterFactory) {
	c.persisterFactory = factory
}

// SetRegistry registers metrics on reg instead of the default registry (for testing)
func (c *Container) SetRegistry(reg *prometheus.Registry) {
	c.registry = reg
	c.metrics = nil
}

// SetLogOutput redirects log output (for testing)
func (c *Container) SetLogOutput(w io.Writer) {
	c.logOutput = w
}

// Logger builds the application logger.
func (c *Container) Logger(cfg *config.Config) *slog.Logger {
	return logging.NewWithWriter(c.logOutput, cfg.Logging)
}

// Metrics returns the shared metrics, registering them on first use.
func (c *Container) Metrics() *api.Metrics {
	if c.metrics == nil {
		c.metrics = api.NewMetrics(c.registry)
	}
	return c.metrics
}

// OpenStore opens the configured backend and loads the collection from it.
// The caller closes the store, which flushes and releases the backend.
func (c *Container) OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.BookStore, error) {
	persister, err := c.persisterFactory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}

	options := []store.Option{store.WithSyncWrites(cfg.Storage.SyncWrites)}
	if logger != nil {
		options = append(options, store.WithLogger(logger))
	}
	if persister != nil {
		options = append(options, store.WithPersister(persister))
	}

	s := store.NewBookStore(options...)
	if err := s.Load(ctx); err != nil {
		if persister != nil {
			_ = persister.Close()
		}
		return nil, fmt.Errorf("load collection: %w", err)
	}

	return s, nil
}

// ServerConfig maps the application configuration onto the API server.
func ServerConfig(cfg *config.Config, version string, logger *slog.Logger) api.ServerConfig {
	flushInterval := cfg.Storage.FlushInterval
	if cfg.Storage.Backend == config.BackendMemory || cfg.Storage.SyncWrites {
		flushInterval = 0
	}

	sc := api.ServerConfig{
		Bind:               cfg.Bind,
		Port:               cfg.Port,
		Version:            version,
		DefaultLimit:       cfg.Query.DefaultLimit,
		MaxLimit:           cfg.Query.MaxLimit,
		RateLimitRPS:       cfg.HTTP.RateLimitRPS,
		RateLimitBurst:     cfg.HTTP.RateLimitBurst,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		ShutdownTimeout:    cfg.HTTP.ShutdownTimeout,
		FlushInterval:      flushInterval,
	}
	if logger != nil {
		sc.Logger = logger
	}
	return sc
}
