package book

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Field constraints.
const (
	TitleMinLength  = 3
	TitleMaxLength  = 200
	AuthorMinLength = 2
	AuthorMaxLength = 100
	YearMin         = 1000
	YearMax         = 2100
	GenreMaxLength  = 50
	ISBNMaxLength   = 17
)

var isbnPattern = regexp.MustCompile(`^(978|979)[- ]?\d{1,5}[- ]?\d{1,7}[- ]?\d{1,7}[- ]?\d{1}$`)

// Validate checks every field constraint and returns a *ValidationError
// listing all violations, or nil when the candidate is valid.
func Validate(c Candidate) error {
	var violations []FieldViolation
	add := func(field, format string, args ...any) {
		violations = append(violations, FieldViolation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if n := utf8.RuneCountInString(c.Title); n < TitleMinLength || n > TitleMaxLength {
		add(FieldTitle, "must be between %d and %d characters, got %d", TitleMinLength, TitleMaxLength, n)
	}

	if n := utf8.RuneCountInString(c.Author); n < AuthorMinLength || n > AuthorMaxLength {
		add(FieldAuthor, "must be between %d and %d characters, got %d", AuthorMinLength, AuthorMaxLength, n)
	}

	if c.Year != nil && (*c.Year < YearMin || *c.Year > YearMax) {
		add(FieldYear, "must be between %d and %d, got %d", YearMin, YearMax, *c.Year)
	}

	if c.Genre != nil {
		if n := utf8.RuneCountInString(*c.Genre); n > GenreMaxLength {
			add(FieldGenre, "must be at most %d characters, got %d", GenreMaxLength, n)
		}
	}

	if c.ISBN != nil && *c.ISBN != "" {
		if n := utf8.RuneCountInString(*c.ISBN); n > ISBNMaxLength {
			add(FieldISBN, "must be at most %d characters, got %d", ISBNMaxLength, n)
		} else if !isbnPattern.MatchString(*c.ISBN) {
			add(FieldISBN, "must be a valid ISBN-13")
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
