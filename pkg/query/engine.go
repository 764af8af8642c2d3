// Package query implements the list pipeline over a snapshot of the book
// collection: search, author filter, year filter, sort, paginate. The order
// of the stages is fixed so that page boundaries are always computed over the
// fully filtered and sorted sequence.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ssargent/bookshelf/pkg/book"
)

// EngineConfig bounds pagination.
type EngineConfig struct {
	DefaultLimit int // used when a query has a negative limit
	MaxLimit     int // 0 means unbounded
}

// Engine executes list queries. It holds no collection state and is safe for
// concurrent use.
type Engine struct {
	config EngineConfig
}

// NewEngine creates a query engine
func NewEngine(config EngineConfig) *Engine {
	if config.DefaultLimit < 1 {
		config.DefaultLimit = DefaultLimit
	}
	if config.MaxLimit < 0 {
		config.MaxLimit = 0
	}
	return &Engine{config: config}
}

// Execute runs the pipeline over books and returns the requested page. The
// input slice is never modified.
func (e *Engine) Execute(books []book.Book, p Params) Result {
	p = e.normalize(p)

	matched := filter(books, p)
	sortBooks(matched, p.Sort, p.Descending())

	return Result{
		Items: paginate(matched, p.Offset(), p.Limit),
		Total: len(matched),
		Page:  p.Page,
		Limit: p.Limit,
	}
}

// Apply runs a query with the default engine configuration.
func Apply(books []book.Book, p Params) []book.Book {
	return NewEngine(EngineConfig{}).Execute(books, p).Items
}

func (e *Engine) normalize(p Params) Params {
	if p.Sort == "" {
		p.Sort = DefaultSort
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 0 {
		p.Limit = e.config.DefaultLimit
	}
	if e.config.MaxLimit > 0 && p.Limit > e.config.MaxLimit {
		p.Limit = e.config.MaxLimit
	}
	return p
}

// filter applies search, author and year in that order and always returns a
// fresh slice.
func filter(books []book.Book, p Params) []book.Book {
	search := strings.ToLower(p.Search)
	author := strings.ToLower(p.Author)

	out := make([]book.Book, 0, len(books))
	for _, b := range books {
		if search != "" && !strings.Contains(strings.ToLower(b.Title), search) {
			continue
		}
		if author != "" && !strings.Contains(strings.ToLower(b.Author), author) {
			continue
		}
		if p.Year != nil && (b.Year == nil || *b.Year != *p.Year) {
			continue
		}
		out = append(out, b)
	}
	return out
}

type sortField struct {
	compare func(a, b book.Book) int
	// present is set for optional fields; a missing value makes the
	// sequence incomparable.
	present func(b book.Book) bool
}

var sortFields = map[string]sortField{
	book.FieldID: {
		compare: func(a, b book.Book) int { return cmp.Compare(a.ID, b.ID) },
	},
	book.FieldTitle: {
		compare: func(a, b book.Book) int { return strings.Compare(a.Title, b.Title) },
	},
	book.FieldAuthor: {
		compare: func(a, b book.Book) int { return strings.Compare(a.Author, b.Author) },
	},
	book.FieldYear: {
		compare: func(a, b book.Book) int { return cmp.Compare(*a.Year, *b.Year) },
		present: func(b book.Book) bool { return b.Year != nil },
	},
	book.FieldGenre: {
		compare: func(a, b book.Book) int { return strings.Compare(*a.Genre, *b.Genre) },
		present: func(b book.Book) bool { return b.Genre != nil },
	},
	book.FieldISBN: {
		compare: func(a, b book.Book) int { return strings.Compare(*a.ISBN, *b.ISBN) },
		present: func(b book.Book) bool { return b.ISBN != nil },
	},
}

// sortBooks stable-sorts in place. An unknown field, or an optional field that
// is missing on any record, leaves the order unchanged rather than failing
// the query.
func sortBooks(books []book.Book, field string, descending bool) {
	f, ok := sortFields[field]
	if !ok || len(books) < 2 {
		return
	}
	if f.present != nil {
		for _, b := range books {
			if !f.present(b) {
				return
			}
		}
	}

	compare := f.compare
	if descending {
		compare = func(a, b book.Book) int { return f.compare(b, a) }
	}
	slices.SortStableFunc(books, compare)
}

func paginate(books []book.Book, offset, limit int) []book.Book {
	if offset < 0 || offset >= len(books) {
		return []book.Book{}
	}
	end := len(books)
	if limit < end-offset {
		end = offset + limit
	}
	return books[offset:end]
}
