package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver for sqlx

	"github.com/ssargent/bookshelf/pkg/book"
	"github.com/ssargent/bookshelf/pkg/storage/internal/adapters"
)

const (
	dialectPostgres = "postgres"
	colID           = "id"
	colTitle        = "title"
	colAuthor       = "author"
	colYear         = "year"
	colGenre        = "genre"
	colISBN         = "isbn"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Postgres persists the collection to a table with one row per book. Every
// save replaces the table contents inside one transaction.
type Postgres struct {
	db     adapters.DBAdapter
	table  string
	logger Logger
}

// NewPostgresFromPGXPool creates the backend on a pgx pool.
func NewPostgresFromPGXPool(pool *pgxpool.Pool, table string, logger Logger) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("storage: nil pgx pool")
	}
	return newPostgres(adapters.NewPGXAdapter(pool), table, logger)
}

// NewPostgresFromSQLX creates the backend on a sqlx handle.
func NewPostgresFromSQLX(db *sqlx.DB, table string, logger Logger) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("storage: nil sqlx db")
	}
	return newPostgres(adapters.NewSQLXAdapter(db), table, logger)
}

func newPostgres(db adapters.DBAdapter, table string, logger Logger) (*Postgres, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("storage: invalid table name %q", table)
	}
	if logger == nil {
		logger = discardLogger{}
	}
	return &Postgres{db: db, table: table, logger: logger}, nil
}

// Migrate creates the books table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, p.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	return nil
}

// table has already been matched against tableNamePattern.
func (p *Postgres) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	%s INTEGER PRIMARY KEY,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s INTEGER NULL,
	%s TEXT NULL,
	%s TEXT NULL
)`, p.table, colID, colTitle, colAuthor, colYear, colGenre, colISBN)
}

func (p *Postgres) selectSQL() (string, error) {
	query, _, err := goqu.Dialect(dialectPostgres).
		From(p.table).
		Select(colID, colTitle, colAuthor, colYear, colGenre, colISBN).
		Order(goqu.I(colID).Asc()).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("build select: %w", err)
	}
	return query, nil
}

func (p *Postgres) deleteSQL() (string, error) {
	query, _, err := goqu.Dialect(dialectPostgres).Delete(p.table).ToSQL()
	if err != nil {
		return "", fmt.Errorf("build delete: %w", err)
	}
	return query, nil
}

func (p *Postgres) insertSQL(books []book.Book) (string, error) {
	rows := make([]any, len(books))
	for i, b := range books {
		rows[i] = goqu.Record{
			colID:     b.ID,
			colTitle:  b.Title,
			colAuthor: b.Author,
			colYear:   nullable(b.Year),
			colGenre:  nullable(b.Genre),
			colISBN:   nullable(b.ISBN),
		}
	}

	query, _, err := goqu.Dialect(dialectPostgres).Insert(p.table).Rows(rows...).ToSQL()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}
	return query, nil
}

// nullable turns a missing optional value into an untyped nil so it renders
// as NULL.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

// LoadAll reads every row in id order.
func (p *Postgres) LoadAll(ctx context.Context) ([]book.Book, error) {
	query, err := p.selectSQL()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		p.logger.Error("database query failed", "error", err, "query", query)
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []book.Book{}
	for rows.Next() {
		var (
			id            int64
			title, author string
			year          sql.NullInt64
			genre, isbn   sql.NullString
		)
		if err := rows.Scan(&id, &title, &author, &year, &genre, &isbn); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}

		b := book.Book{ID: int(id), Title: title, Author: author}
		if year.Valid {
			b.Year = book.IntPtr(int(year.Int64))
		}
		if genre.Valid {
			b.Genre = book.StringPtr(genre.String)
		}
		if isbn.Valid {
			b.ISBN = book.StringPtr(isbn.String)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read books: %w", err)
	}

	p.logger.Debug("books selected", "table", p.table, "books", len(books), "duration_ms", time.Since(start).Milliseconds())
	return books, nil
}

// SaveAll deletes every row and inserts the collection in one transaction.
func (p *Postgres) SaveAll(ctx context.Context, books []book.Book) error {
	statements := make([]string, 0, 2)

	deleteQuery, err := p.deleteSQL()
	if err != nil {
		return err
	}
	statements = append(statements, deleteQuery)

	if len(books) > 0 {
		insertQuery, err := p.insertSQL(books)
		if err != nil {
			return err
		}
		statements = append(statements, insertQuery)
	}

	start := time.Now()
	if err := p.db.ExecInTx(ctx, statements...); err != nil {
		p.logger.Error("database execution failed", "error", err, "table", p.table)
		return fmt.Errorf("replace books: %w", err)
	}

	p.logger.Debug("books replaced", "table", p.table, "books", len(books), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Close releases the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}
