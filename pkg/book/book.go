// Package book defines the Book record, its field constraints and the
// merge rules used for sparse updates.
package book

import (
	"bytes"
	"encoding/json"
)

// Book is a single record as stored and returned by the API.
type Book struct {
	ID     int     `json:"id"`
	Title  string  `json:"title"`
	Author string  `json:"author"`
	Year   *int    `json:"year"`
	Genre  *string `json:"genre"`
	ISBN   *string `json:"isbn"`
}

// Candidate is an unvalidated record submitted for creation or replacement.
// It carries every field of a Book except the identifier.
type Candidate struct {
	Title  string  `json:"title"`
	Author string  `json:"author"`
	Year   *int    `json:"year,omitempty"`
	Genre  *string `json:"genre,omitempty"`
	ISBN   *string `json:"isbn,omitempty"`
}

// Candidate returns the record without its identifier.
func (b Book) Candidate() Candidate {
	return Candidate{
		Title:  b.Title,
		Author: b.Author,
		Year:   cloneInt(b.Year),
		Genre:  cloneString(b.Genre),
		ISBN:   cloneString(b.ISBN),
	}
}

// WithID builds a Book from the candidate using the given identifier.
func (c Candidate) WithID(id int) Book {
	return Book{
		ID:     id,
		Title:  c.Title,
		Author: c.Author,
		Year:   cloneInt(c.Year),
		Genre:  cloneString(c.Genre),
		ISBN:   cloneString(c.ISBN),
	}
}

// Clone returns a deep copy so callers never share optional field storage.
func (b Book) Clone() Book {
	return b.Candidate().WithID(b.ID)
}

// Optional carries a value together with whether it was explicitly supplied.
// A JSON null still counts as supplied.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a supplied Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UnmarshalJSON marks the field as supplied, even for a literal null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Patch is a sparse update. Only fields with Set overwrite the existing record.
// An id in the payload is accepted and ignored.
type Patch struct {
	ID     Optional[*int]    `json:"id"`
	Title  Optional[*string] `json:"title"`
	Author Optional[*string] `json:"author"`
	Year   Optional[*int]    `json:"year"`
	Genre  Optional[*string] `json:"genre"`
	ISBN   Optional[*string] `json:"isbn"`
}

// Fields lists the names of the supplied fields, excluding id.
func (p Patch) Fields() []string {
	var fields []string
	if p.Title.Set {
		fields = append(fields, FieldTitle)
	}
	if p.Author.Set {
		fields = append(fields, FieldAuthor)
	}
	if p.Year.Set {
		fields = append(fields, FieldYear)
	}
	if p.Genre.Set {
		fields = append(fields, FieldGenre)
	}
	if p.ISBN.Set {
		fields = append(fields, FieldISBN)
	}
	return fields
}

// Field names as they appear on the wire.
const (
	FieldID     = "id"
	FieldTitle  = "title"
	FieldAuthor = "author"
	FieldYear   = "year"
	FieldGenre  = "genre"
	FieldISBN   = "isbn"
)

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
