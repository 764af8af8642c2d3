package storage

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/ssargent/bookshelf/pkg/book"
)

var (
	bookKeyPrefix = []byte("book/")
	bookKeyEnd    = []byte("book0") // '0' follows '/'
)

// PebbleStorage keeps one key per book in an embedded pebble database. Keys
// are the id in big-endian order, so iteration returns records in id order.
type PebbleStorage struct {
	db *pebble.DB
}

// NewPebbleStorage opens or creates the database at path.
func NewPebbleStorage(path string) (*PebbleStorage, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStorage{db: db}, nil
}

func bookKey(id int) []byte {
	key := make([]byte, len(bookKeyPrefix)+8)
	copy(key, bookKeyPrefix)
	binary.BigEndian.PutUint64(key[len(bookKeyPrefix):], uint64(id))
	return key
}

// LoadAll scans every book key.
func (s *PebbleStorage) LoadAll(_ context.Context) ([]book.Book, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: bookKeyPrefix,
		UpperBound: bookKeyEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	books := []book.Book{}
	for iter.First(); iter.Valid(); iter.Next() {
		b, err := DecodeBook(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("key %x: %w", iter.Key(), err)
		}
		books = append(books, b)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// SaveAll replaces every stored book in one synced batch.
func (s *PebbleStorage) SaveAll(_ context.Context, books []book.Book) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.DeleteRange(bookKeyPrefix, bookKeyEnd, nil); err != nil {
		return fmt.Errorf("clear books: %w", err)
	}
	for _, b := range books {
		data, err := EncodeBook(b)
		if err != nil {
			return err
		}
		if err := batch.Set(bookKey(b.ID), data, nil); err != nil {
			return fmt.Errorf("stage book %d: %w", b.ID, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit books: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *PebbleStorage) Close() error {
	return s.db.Close()
}
