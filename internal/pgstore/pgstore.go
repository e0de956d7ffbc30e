// Package pgstore implements store.Documents on PostgreSQL.
//
// Bodies are jsonb. The contract matches the SQLite store: single-document
// atomic writes, top-level patch updates, equality filters on top-level fields
// ordered by seq then id, and unique indexes that surface as
// store.ErrDuplicate.
package pgstore

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/fitsaga/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is a PostgreSQL-backed document store.
//
// Thread-safety: Store is safe for concurrent use; pgxpool manages
// connections.
type Store struct {
	pool *pgxpool.Pool
	ids  store.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the document id generator.
//
// Default: store.UUIDv7Generator.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// Open connects to dsn and applies the schema. The schema statements are
// idempotent.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// No arguments: pgx sends this over the simple protocol, which accepts
	// several statements at once.
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{pool: pool, ids: store.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}

	// The schema statements target current_schema(); a search_path that
	// resolves elsewhere leaves the document tables unreachable.
	names, err := s.tables(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if len(names) != len(store.Tables()) {
		pool.Close()
		return nil, fmt.Errorf("failed to verify schema: found tables %v, want %v", names, tableNames())
	}
	return s, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
