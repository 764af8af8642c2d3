package store

import (
	"context"
	"errors"
	"time"

	"github.com/ssargent/bookshelf/pkg/book"
)

// Errors
var (
	// ErrCorrupt is returned when persisted state breaks a collection invariant,
	// such as two records sharing an id.
	ErrCorrupt = errors.New("store: persisted collection is inconsistent")

	// ErrPersist wraps failures reported by the persistence collaborator.
	ErrPersist = errors.New("store: persistence failed")
)

// Persister is the storage collaborator. The store treats it as swappable and
// only ever reads or writes the whole collection.
type Persister interface {
	LoadAll(ctx context.Context) ([]book.Book, error)
	SaveAll(ctx context.Context, books []book.Book) error
	Close() error
}

// Logger interface for operational logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Stats holds statistics about the store
type Stats struct {
	Books     int       `json:"books"`
	LastID    int       `json:"last_id"`
	Dirty     bool      `json:"dirty"`
	LastFlush time.Time `json:"last_flush,omitempty"`
	Flushes   int64     `json:"flushes"`
}

// Option configures a BookStore.
type Option func(*BookStore)

// WithPersister sets the storage collaborator used by Load and Flush.
func WithPersister(p Persister) Option {
	return func(s *BookStore) {
		s.persister = p
	}
}

// WithLogger sets the logger for the store.
//
// Debug level: individual mutations
// Info level: loads and flushes
// Error level: flush failures.
func WithLogger(logger Logger) Option {
	return func(s *BookStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSyncWrites makes every successful mutation flush to the persister
// before returning.
func WithSyncWrites(enabled bool) Option {
	return func(s *BookStore) {
		s.syncWrites = enabled
	}
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}
