package storage

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/ssargent/bookshelf/pkg/book"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeBook serializes one record.
func EncodeBook(b book.Book) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode book %d: %w", b.ID, err)
	}
	return data, nil
}

// DecodeBook parses one record.
func DecodeBook(data []byte) (book.Book, error) {
	var b book.Book
	if err := json.Unmarshal(data, &b); err != nil {
		return book.Book{}, fmt.Errorf("decode book: %w", err)
	}
	return b, nil
}

// EncodeBooks serializes the collection as a JSON array in collection order.
func EncodeBooks(books []book.Book) ([]byte, error) {
	if books == nil {
		books = []book.Book{}
	}
	data, err := json.Marshal(books)
	if err != nil {
		return nil, fmt.Errorf("encode books: %w", err)
	}
	return data, nil
}

// DecodeBooks parses a JSON array of records.
func DecodeBooks(data []byte) ([]book.Book, error) {
	var books []book.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	if books == nil {
		books = []book.Book{}
	}
	return books, nil
}
