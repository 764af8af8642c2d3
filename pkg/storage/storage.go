// Package storage provides the persistence backends behind the book store.
// Every backend reads and writes the whole collection; the store decides
// when to flush.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/ssargent/bookshelf/pkg/config"
	"github.com/ssargent/bookshelf/pkg/store"
)

// Logger interface for operational logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

var (
	_ store.Persister = (*PebbleStorage)(nil)
	_ store.Persister = (*SnapshotFile)(nil)
	_ store.Persister = (*Postgres)(nil)
	_ store.Persister = (*ObjectSnapshot)(nil)
	_ store.Persister = (*DynamoDB)(nil)
)

// Open builds the backend selected by cfg.Storage.Backend. The memory backend
// has no persister and returns nil.
func Open(ctx context.Context, cfg *config.Config, logger Logger) (store.Persister, error) {
	if logger == nil {
		logger = discardLogger{}
	}
	s := cfg.Storage

	switch s.Backend {
	case config.BackendMemory, "":
		return nil, nil

	case config.BackendPebble:
		p, err := NewPebbleStorage(cfg.PebblePath())
		if err != nil {
			return nil, err
		}
		return p, nil

	case config.BackendSnapshot:
		c, err := ParseCompression(s.Snapshot.Compression)
		if err != nil {
			return nil, err
		}
		f, err := NewSnapshotFile(cfg.SnapshotPath(), c)
		if err != nil {
			return nil, err
		}
		return f, nil

	case config.BackendPostgres:
		p, err := openPostgres(ctx, s.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return p, nil

	case config.BackendMinio:
		c, err := ParseCompression(s.Minio.Compression)
		if err != nil {
			return nil, err
		}
		client, err := NewMinioClient(s.Minio.Endpoint, s.Minio.AccessKey, s.Minio.SecretKey, s.Minio.UseSSL)
		if err != nil {
			return nil, err
		}
		blobs := NewMinioBlobStore(client, s.Minio.Bucket)
		if err := blobs.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return NewObjectSnapshot(blobs, s.Minio.Object, c), nil

	case config.BackendDynamoDB:
		client, err := NewDynamoDBClient(ctx, s.DynamoDB.Region, s.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewDynamoDB(client, s.DynamoDB.Table, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

func openPostgres(ctx context.Context, cfg config.Postgres, logger Logger) (*Postgres, error) {
	var (
		p   *Postgres
		err error
	)

	switch cfg.Driver {
	case "sqlx":
		db, openErr := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
		if openErr != nil {
			return nil, fmt.Errorf("connect postgres: %w", openErr)
		}
		p, err = NewPostgresFromSQLX(db, cfg.Table, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	default:
		pool, openErr := pgxpool.New(ctx, cfg.DSN)
		if openErr != nil {
			return nil, fmt.Errorf("connect postgres: %w", openErr)
		}
		p, err = NewPostgresFromPGXPool(pool, cfg.Table, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	if err := p.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
