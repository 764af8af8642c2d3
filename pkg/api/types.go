package api

import (
	"context"
	"time"

	"github.com/ssargent/bookshelf/pkg/book"
	"github.com/ssargent/bookshelf/pkg/store"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool                  `json:"success"`
	Data    interface{}           `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Details []book.FieldViolation `json:"details,omitempty"`
}

// BookRequest is the body of POST and PUT. An id in the body is accepted and
// ignored; ids are always assigned by the server.
type BookRequest struct {
	ID *int `json:"id,omitempty"`
	book.Candidate
}

// ServiceInfo is returned by the root route
type ServiceInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind    string
	Port    int
	Version string

	DefaultLimit int
	MaxLimit     int

	RateLimitRPS       float64 // 0 disables rate limiting
	RateLimitBurst     int
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	// FlushInterval drives the background flusher; 0 disables it.
	FlushInterval time.Duration

	Logger Logger
}

// Logger interface for operational logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IBookStore defines the book store operations the API needs
type IBookStore interface {
	Create(ctx context.Context, c book.Candidate) (book.Book, error)
	Get(ctx context.Context, id int) (book.Book, error)
	Replace(ctx context.Context, id int, c book.Candidate) (book.Book, error)
	Patch(ctx context.Context, id int, p book.Patch) (book.Book, error)
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) []book.Book

	Flush(ctx context.Context) error
	Stats() store.Stats
}
