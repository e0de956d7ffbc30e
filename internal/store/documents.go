package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var _ Documents = (*Store)(nil)

// Insert stores doc as a new document and returns its generated id.
//
// doc must marshal to a JSON object. A uniqueness violation returns an
// error wrapping ErrDuplicate and leaves the table unchanged.
func (s *Store) Insert(ctx context.Context, table Table, doc any) (string, error) {
	if err := CheckTable(table); err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	body, err := MarshalDocument(doc)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", table, err)
	}

	id := s.ids.Generate()
	query := fmt.Sprintf("INSERT INTO %s (id, body, seq) VALUES (?, ?, ?)", table)
	if _, err := s.db.ExecContext(ctx, query, id, string(body), s.seq.Next()); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("insert %s: %w", table, ErrDuplicate)
		}
		return "", fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

// Patch applies fields to the top level of one document. A key with a
// non-nil value replaces the stored value whole, nested objects included.
// Keys with a nil value are removed from the document.
// Returns an error wrapping ErrNotFound if the id does not exist.
func (s *Store) Patch(ctx context.Context, table Table, id string, fields Fields) error {
	if err := CheckTable(table); err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	expr, args, err := patchExpr(fields)
	if err != nil {
		return fmt.Errorf("patch %s/%s: %w", table, id, err)
	}

	query := fmt.Sprintf("UPDATE %s SET body = %s WHERE id = ?", table, expr)
	result, err := s.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("patch %s/%s: %w", table, id, ErrDuplicate)
		}
		return fmt.Errorf("patch %s/%s: %w", table, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch %s/%s: rows affected: %w", table, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("patch %s/%s: %w", table, id, ErrNotFound)
	}
	return nil
}

// patchExpr builds json_remove/json_set calls over body for fields, in
// key order. Values are bound as JSON text so json_set stores them as
// given.
func patchExpr(fields Fields) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if strings.Contains(k, `"`) {
			return "", nil, fmt.Errorf("invalid field name %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var removed, set []any
	for _, k := range keys {
		path := `$."` + k + `"`
		v := fields[k]
		if v == nil {
			removed = append(removed, path)
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		set = append(set, path, string(data))
	}

	expr := "body"
	if len(removed) > 0 {
		expr = "json_remove(" + expr + strings.Repeat(", ?", len(removed)) + ")"
	}
	if len(set) > 0 {
		expr = "json_set(" + expr + strings.Repeat(", ?, json(?)", len(set)/2) + ")"
	}
	return expr, append(removed, set...), nil
}

// Delete removes one document.
// Returns an error wrapping ErrNotFound if the id does not exist.
func (s *Store) Delete(ctx context.Context, table Table, id string) error {
	if err := CheckTable(table); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: rows affected: %w", table, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s/%s: %w", table, id, ErrNotFound)
	}
	return nil
}

// Get retrieves a single document by id.
// Returns an error wrapping ErrNotFound if the id does not exist.
func (s *Store) Get(ctx context.Context, table Table, id string) (Record, error) {
	if err := CheckTable(table); err != nil {
		return Record{}, fmt.Errorf("get: %w", err)
	}
	query := fmt.Sprintf("SELECT id, body, seq FROM %s WHERE id = ?", table)
	rec, err := scanRecord(table, s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get %s/%s: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// FindOne returns the first document (by seq) whose top-level fields equal
// every entry of where. Returns an error wrapping ErrNotFound if none match.
func (s *Store) FindOne(ctx context.Context, table Table, where Fields) (Record, error) {
	recs, err := s.find(ctx, table, where, 1)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, fmt.Errorf("find %s: %w", table, ErrNotFound)
	}
	return recs[0], nil
}

// Find returns every document matching where, ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Find(ctx context.Context, table Table, where Fields) ([]Record, error) {
	return s.find(ctx, table, where, 0)
}

func (s *Store) find(ctx context.Context, table Table, where Fields, limit int) ([]Record, error) {
	if err := CheckTable(table); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	if err := CheckFilter(where); err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}

	// Sorted keys keep the generated SQL stable.
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var args []any
	for _, k := range keys {
		clauses = append(clauses, "json_extract(body, ?) = ?")
		args = append(args, "$."+k, where[k])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, body, seq FROM %s", table)
	if len(clauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}
	b.WriteString(" ORDER BY seq ASC, id COLLATE BINARY ASC")
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		rec, err := scanRecord(table, rows)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", table, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return recs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(table Table, row rowScanner) (Record, error) {
	var rec Record
	var body string
	if err := row.Scan(&rec.ID, &body, &rec.Seq); err != nil {
		return Record{}, err
	}
	rec.Table = table
	rec.Body = json.RawMessage(body)
	return rec, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
