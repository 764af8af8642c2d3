package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ssargent/bookshelf/pkg/book"
)

// BookStore owns the in-memory book collection. Mutations and id allocation
// run under a single write lock; reads take the read lock and return copies.
type BookStore struct {
	mu    sync.RWMutex
	books []book.Book
	index map[int]int // id -> position in books
	ids   *IDAllocator

	version        uint64
	flushedVersion uint64
	lastFlush      time.Time
	flushes        int64

	flushMu    sync.Mutex
	persister  Persister
	syncWrites bool
	logger     Logger
}

// NewBookStore creates an empty store.
func NewBookStore(options ...Option) *BookStore {
	s := &BookStore{
		index:  make(map[int]int),
		ids:    NewIDAllocator(),
		logger: discardLogger{},
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Load replaces the collection with the persisted one. The allocator is moved
// past the highest loaded id so new records never collide with loaded ones.
func (s *BookStore) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	start := time.Now()
	loaded, err := s.persister.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %w", ErrPersist, err)
	}

	books := make([]book.Book, 0, len(loaded))
	index := make(map[int]int, len(loaded))
	for _, b := range loaded {
		if b.ID <= 0 {
			s.logger.Error("invalid id in persisted collection", "id", b.ID)
			return fmt.Errorf("%w: invalid id %d", ErrCorrupt, b.ID)
		}
		if _, dup := index[b.ID]; dup {
			s.logger.Error("duplicate id in persisted collection", "id", b.ID)
			return fmt.Errorf("%w: duplicate id %d", ErrCorrupt, b.ID)
		}
		if err := book.Validate(b.Candidate()); err != nil {
			s.logger.Error("invalid record in persisted collection", "id", b.ID, "error", err)
			return fmt.Errorf("%w: record %d: %w", ErrCorrupt, b.ID, err)
		}
		index[b.ID] = len(books)
		books = append(books, b.Clone())
	}

	s.mu.Lock()
	s.books = books
	s.index = index
	for _, b := range books {
		s.ids.Observe(b.ID)
	}
	s.version++
	s.flushedVersion = s.version
	s.mu.Unlock()

	s.logger.Info("collection loaded", "books", len(books), "last_id", s.ids.Last(), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Create validates the candidate, assigns the next id and appends the record.
func (s *BookStore) Create(ctx context.Context, c book.Candidate) (book.Book, error) {
	if err := book.Validate(c); err != nil {
		return book.Book{}, err
	}

	s.mu.Lock()
	created := c.WithID(s.ids.Next())
	if _, dup := s.index[created.ID]; dup {
		s.mu.Unlock()
		s.logger.Error("allocator issued an id already in the collection", "id", created.ID)
		panic(fmt.Sprintf("store: id %d allocated twice", created.ID))
	}
	s.index[created.ID] = len(s.books)
	s.books = append(s.books, created)
	s.version++
	s.mu.Unlock()

	s.logger.Debug("book created", "id", created.ID)
	s.afterWrite(ctx)
	return created.Clone(), nil
}

// Get returns the record with the given id.
func (s *BookStore) Get(_ context.Context, id int) (book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return book.Book{}, &book.NotFoundError{ID: id}
	}
	return s.books[pos].Clone(), nil
}

// Replace overwrites every field of an existing record except its id.
func (s *BookStore) Replace(ctx context.Context, id int, c book.Candidate) (book.Book, error) {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return book.Book{}, &book.NotFoundError{ID: id}
	}
	if err := book.Validate(c); err != nil {
		s.mu.Unlock()
		return book.Book{}, err
	}
	replaced := c.WithID(id)
	s.books[pos] = replaced
	s.version++
	s.mu.Unlock()

	s.logger.Debug("book replaced", "id", id)
	s.afterWrite(ctx)
	return replaced.Clone(), nil
}

// Patch merges the supplied fields into an existing record and stores the
// result if it still validates.
func (s *BookStore) Patch(ctx context.Context, id int, p book.Patch) (book.Book, error) {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return book.Book{}, &book.NotFoundError{ID: id}
	}
	merged := book.Merge(s.books[pos], p)
	if err := book.Validate(merged.Candidate()); err != nil {
		s.mu.Unlock()
		return book.Book{}, err
	}
	s.books[pos] = merged
	s.version++
	s.mu.Unlock()

	s.logger.Debug("book patched", "id", id, "fields", p.Fields())
	s.afterWrite(ctx)
	return merged.Clone(), nil
}

// Delete removes a record. Deleting the same id twice fails the second time.
func (s *BookStore) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return &book.NotFoundError{ID: id}
	}
	s.books = append(s.books[:pos], s.books[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.books); i++ {
		s.index[s.books[i].ID] = i
	}
	s.version++
	s.mu.Unlock()

	s.logger.Debug("book deleted", "id", id)
	s.afterWrite(ctx)
	return nil
}

// List returns a copy of the collection in storage order. The result never
// shares memory with the live collection.
func (s *BookStore) List(_ context.Context) []book.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Len returns the number of records.
func (s *BookStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.books)
}

// Stats returns store statistics. A store without a persister is never dirty.
func (s *BookStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Books:     len(s.books),
		LastID:    s.ids.Last(),
		Dirty:     s.persister != nil && s.version != s.flushedVersion,
		LastFlush: s.lastFlush,
		Flushes:   s.flushes,
	}
}

// Flush writes the collection to the persister if it changed since the last
// flush. Flushes are serialized, so the last one to finish always carries the
// latest state.
func (s *BookStore) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	version := s.version
	clean := version == s.flushedVersion
	var snapshot []book.Book
	if !clean {
		snapshot = s.snapshotLocked()
	}
	s.mu.RUnlock()

	if clean {
		return nil
	}

	start := time.Now()
	if err := s.persister.SaveAll(ctx, snapshot); err != nil {
		s.logger.Error("flush failed", "error", err, "books", len(snapshot))
		return fmt.Errorf("%w: save: %w", ErrPersist, err)
	}

	s.mu.Lock()
	if version > s.flushedVersion {
		s.flushedVersion = version
	}
	s.lastFlush = time.Now()
	s.flushes++
	s.mu.Unlock()

	s.logger.Info("collection flushed", "books", len(snapshot), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Close flushes pending changes and releases the persister.
func (s *BookStore) Close(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	flushErr := s.Flush(ctx)
	if err := s.persister.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrPersist, err)
	}
	return flushErr
}

// afterWrite flushes synchronously when configured. A failed flush leaves the
// store dirty; the mutation itself already succeeded and stays in memory.
func (s *BookStore) afterWrite(ctx context.Context) {
	if !s.syncWrites {
		return
	}
	// Flush logs the failure; the caller's mutation is not rolled back.
	_ = s.Flush(ctx)
}

func (s *BookStore) snapshotLocked() []book.Book {
	out := make([]book.Book, len(s.books))
	for i, b := range s.books {
		out[i] = b.Clone()
	}
	return out
}
