package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roach88/fitsaga/internal/store"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var _ store.Documents = (*Store)(nil)

// Insert stores doc and returns its generated id.
func (s *Store) Insert(ctx context.Context, table store.Table, doc any) (string, error) {
	if err := store.CheckTable(table); err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	body, err := store.MarshalDocument(doc)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", table, err)
	}

	id := s.ids.Generate()
	query := fmt.Sprintf("INSERT INTO %s (id, body) VALUES ($1, $2::jsonb)", table)
	if _, err := s.pool.Exec(ctx, query, id, string(body)); err != nil {
		return "", fmt.Errorf("insert %s: %w", table, mapError(err))
	}
	return id, nil
}

// Patch replaces the top-level keys of one document with fields. Keys
// with a nil value are removed.
func (s *Store) Patch(ctx context.Context, table store.Table, id string, fields store.Fields) error {
	if err := store.CheckTable(table); err != nil {
		return fmt.Errorf("patch: %w", err)
	}

	set := make(store.Fields, len(fields))
	removed := []string{}
	for k, v := range fields {
		if v == nil {
			removed = append(removed, k)
			continue
		}
		set[k] = v
	}
	patch, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("patch %s/%s: marshal: %w", table, id, err)
	}

	query := fmt.Sprintf("UPDATE %s SET body = (body || $1::jsonb) - $2::text[] WHERE id = $3", table)
	tag, err := s.pool.Exec(ctx, query, string(patch), removed, id)
	if err != nil {
		return fmt.Errorf("patch %s/%s: %w", table, id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patch %s/%s: %w", table, id, store.ErrNotFound)
	}
	return nil
}

// Delete removes one document.
func (s *Store) Delete(ctx context.Context, table store.Table, id string) error {
	if err := store.CheckTable(table); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s/%s: %w", table, id, store.ErrNotFound)
	}
	return nil
}

// Get retrieves a single document by id.
func (s *Store) Get(ctx context.Context, table store.Table, id string) (store.Record, error) {
	if err := store.CheckTable(table); err != nil {
		return store.Record{}, fmt.Errorf("get: %w", err)
	}
	query := fmt.Sprintf("SELECT id, body::text, seq FROM %s WHERE id = $1", table)
	rec, err := scanRecord(table, s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, fmt.Errorf("get %s/%s: %w", table, id, store.ErrNotFound)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// FindOne returns the first document matching where.
func (s *Store) FindOne(ctx context.Context, table store.Table, where store.Fields) (store.Record, error) {
	recs, err := s.find(ctx, table, where, 1)
	if err != nil {
		return store.Record{}, err
	}
	if len(recs) == 0 {
		return store.Record{}, fmt.Errorf("find %s: %w", table, store.ErrNotFound)
	}
	return recs[0], nil
}

// Find returns every document matching where, ordered by seq, then id.
func (s *Store) Find(ctx context.Context, table store.Table, where store.Fields) ([]store.Record, error) {
	return s.find(ctx, table, where, 0)
}

func (s *Store) find(ctx context.Context, table store.Table, where store.Fields, limit int) ([]store.Record, error) {
	if err := store.CheckTable(table); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	if err := store.CheckFilter(where); err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}

	var b strings.Builder
	var args []any
	fmt.Fprintf(&b, "SELECT id, body::text, seq FROM %s", table)
	if len(where) > 0 {
		filter, err := json.Marshal(where)
		if err != nil {
			return nil, fmt.Errorf("find %s: marshal filter: %w", table, err)
		}
		b.WriteString(" WHERE body @> $1::jsonb")
		args = append(args, string(filter))
	}
	b.WriteString(` ORDER BY seq ASC, id COLLATE "C" ASC`)
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Record, error) {
		return scanRecord(table, row)
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	if recs == nil {
		recs = []store.Record{}
	}
	return recs, nil
}

func scanRecord(table store.Table, row pgx.Row) (store.Record, error) {
	var rec store.Record
	var body string
	if err := row.Scan(&rec.ID, &body, &rec.Seq); err != nil {
		return store.Record{}, err
	}
	rec.Table = table
	rec.Body = json.RawMessage(body)
	return rec, nil
}

// mapError turns unique violations into store.ErrDuplicate, naming the
// index that fired.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w (%s)", store.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// tables lists the document tables present in the current schema.
func (s *Store) tables(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name::text FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = ANY($1)`,
		tableNames())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func tableNames() []string {
	var names []string
	for _, t := range store.Tables() {
		names = append(names, string(t))
	}
	return names
}
