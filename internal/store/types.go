package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Table names a document collection.
type Table string

const (
	TablePlans        Table = "workout_plans"
	TableUsers        Table = "users"
	TableCatalog      Table = "exercise_catalog"
	TableStreaks      Table = "streaks"
	TableAchievements Table = "achievements"
)

// Tables returns every known table in schema order.
func Tables() []Table {
	return []Table{TablePlans, TableUsers, TableCatalog, TableStreaks, TableAchievements}
}

// Valid reports whether t is a known table.
func (t Table) Valid() bool {
	for _, known := range Tables() {
		if t == known {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is returned when no document matches an id or filter.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned when a write violates a uniqueness guard.
	ErrDuplicate = errors.New("duplicate document")

	// ErrUnknownTable is returned for table names outside Tables().
	ErrUnknownTable = errors.New("unknown table")
)

// Fields is a partial document: a patch, an equality filter or an undo
// snapshot. Patch values replace top-level keys whole; a nil value removes
// the key.
type Fields map[string]any

// Record is one stored document.
type Record struct {
	Table Table
	ID    string
	Seq   int64
	Body  json.RawMessage
}

// Decode unmarshals the record body into out.
func (r Record) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", r.Table, r.ID, err)
	}
	return nil
}

// Documents is the single-document storage primitive.
//
// Each method is atomic for exactly one document. Nothing here spans
// documents; callers that need a multi-document invariant compose these
// calls under a saga.Executor.
type Documents interface {
	Insert(ctx context.Context, table Table, doc any) (string, error)
	Patch(ctx context.Context, table Table, id string, fields Fields) error
	Delete(ctx context.Context, table Table, id string) error
	Get(ctx context.Context, table Table, id string) (Record, error)
	FindOne(ctx context.Context, table Table, where Fields) (Record, error)
	Find(ctx context.Context, table Table, where Fields) ([]Record, error)
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CheckTable returns ErrUnknownTable for unknown table names.
func CheckTable(t Table) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	return nil
}

// CheckFilter validates filter keys. Only top-level field names are allowed.
func CheckFilter(where Fields) error {
	for key, value := range where {
		if !fieldNamePattern.MatchString(key) {
			return fmt.Errorf("invalid filter field %q", key)
		}
		switch value.(type) {
		case string, bool, int, int64, float64:
		default:
			return fmt.Errorf("filter field %q: unsupported value type %T", key, value)
		}
	}
	return nil
}

// MarshalDocument serializes a document and checks that it is a JSON object.
func MarshalDocument(doc any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("marshal document: %T is not a JSON object", doc)
	}
	return data, nil
}
