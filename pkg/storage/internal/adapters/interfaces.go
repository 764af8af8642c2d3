package adapters

import "context"

// DBAdapter defines the database operations needed by the SQL backend
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	// ExecInTx runs the statements in order inside one transaction and rolls
	// back on the first failure.
	ExecInTx(ctx context.Context, statements ...string) error
	Close() error
}

// DBRows defines the interface for query result rows
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results
type DBResult interface {
	RowsAffected() (int64, error)
}
