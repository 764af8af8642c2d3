package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/ssargent/bookshelf/pkg/book"
)

// Defaults applied when a parameter is not supplied.
const (
	DefaultSort  = "id"
	DefaultOrder = OrderAsc
	DefaultPage  = 1
	DefaultLimit = 10
)

// Sort directions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Params is a list query over the book collection.
type Params struct {
	Search string // case-insensitive substring of title
	Author string // case-insensitive substring of author
	Year   *int   // exact year
	Sort   string // field name; unknown names leave the order unchanged
	Order  string // "desc" (any case) sorts descending, anything else ascending
	Page   int    // 1-based
	Limit  int    // 0 returns an empty page; negative uses the default
}

// DefaultParams returns a query that matches everything and returns the first page.
func DefaultParams() Params {
	return Params{
		Sort:  DefaultSort,
		Order: DefaultOrder,
		Page:  DefaultPage,
		Limit: DefaultLimit,
	}
}

// Descending reports whether the sort runs in descending order.
func (p Params) Descending() bool {
	return strings.EqualFold(p.Order, OrderDesc)
}

// Offset returns the zero-based index of the first record on the page. An
// offset too large for an int saturates at math.MaxInt, which is past the end
// of any collection.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// ParseValues builds Params from URL query values. Missing values take their
// defaults; malformed integers are reported as errors.
func ParseValues(values url.Values) (Params, error) {
	p := DefaultParams()

	p.Search = values.Get("search")
	p.Author = values.Get("author")

	if v := values.Get("sort"); v != "" {
		p.Sort = v
	}
	if v := values.Get("order"); v != "" {
		p.Order = v
	}

	if v := values.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return Params{}, fmt.Errorf("invalid year %q: must be an integer", v)
		}
		p.Year = &year
	}

	if v := values.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return Params{}, fmt.Errorf("invalid page %q: must be an integer", v)
		}
		p.Page = page
	}

	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return Params{}, fmt.Errorf("invalid limit %q: must be an integer", v)
		}
		p.Limit = limit
	}

	return p, nil
}

// Result is one page of a query.
type Result struct {
	Items []book.Book `json:"items"`
	Total int         `json:"total"` // matches before pagination
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
