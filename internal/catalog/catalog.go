// Package catalog maintains the global exercise catalog.
//
// The catalog is one table shared by every user. Each entry is keyed by a
// normalized exercise name and counts how often plans reference it. A
// unique index on name makes "exactly one entry per name" a storage
// guarantee; a concurrent first sighting surfaces as store.ErrDuplicate
// and is turned into an increment.
//
// Only inserts are registered with the saga tracker. Counter increments on
// existing entries are left in place when a transaction rolls back.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/fitsaga/internal/plan"
	"github.com/roach88/fitsaga/internal/saga"
	"github.com/roach88/fitsaga/internal/store"
)

// Entry is one catalog document.
type Entry struct {
	ID               string        `json:"-"`
	Name             string        `json:"name"`
	DisplayName      string        `json:"displayName"`
	Category         plan.Category `json:"category"`
	HitCount         int           `json:"hitCount"`
	GlobalUsageCount int           `json:"globalUsageCount"`
	Last30DayUsage   int           `json:"last30DayUsage"`
	LastAccessed     string        `json:"lastAccessed"`
	CreatedAt        string        `json:"createdAt"`
}

// Ref is one deduplicated exercise reference taken from a plan.
type Ref struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"displayName"`
	Category    plan.Category `json:"category"`
	Notes       *string       `json:"notes,omitempty"`
}

// NormalizeName returns the catalog key for an exercise name: Unicode NFC,
// lowercase, trimmed, with each whitespace run replaced by "_".
func NormalizeName(name string) string {
	lower := strings.ToLower(norm.NFC.String(name))
	return strings.Join(strings.Fields(lower), "_")
}

// Collect returns the unique exercises of p in first-seen order.
// Later variants of a name (case, spacing) are dropped.
func Collect(p *plan.Plan) []Ref {
	seen := make(map[string]bool)
	var refs []Ref
	for _, ex := range p.Exercises() {
		key := NormalizeName(ex.ExerciseName)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, Ref{
			Name:        key,
			DisplayName: ex.ExerciseName,
			Category:    ex.Category,
			Notes:       ex.Notes,
		})
	}
	return refs
}

// Summary reports what Accumulate did.
type Summary struct {
	Exercises   []Ref
	Inserted    []string
	Incremented []string
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithClock sets the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Accumulator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Accumulator merges plan exercises into the catalog.
type Accumulator struct {
	docs   store.Documents
	now    func() time.Time
	logger *slog.Logger
}

// NewAccumulator creates an Accumulator over docs.
func NewAccumulator(docs store.Documents, opts ...Option) *Accumulator {
	a := &Accumulator{
		docs:   docs,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Accumulate registers every unique exercise of p. New entries are
// inserted with all counters at 1 and tracked on tx; existing entries have
// each counter incremented and lastAccessed refreshed.
func (a *Accumulator) Accumulate(ctx context.Context, tx *saga.Tracker, p *plan.Plan) (Summary, error) {
	sum := Summary{Exercises: Collect(p)}
	stamp := a.now().UTC().Format(time.RFC3339)

	for _, ref := range sum.Exercises {
		rec, err := a.docs.FindOne(ctx, store.TableCatalog, store.Fields{"name": ref.Name})
		switch {
		case err == nil:
			if err := a.increment(ctx, rec, stamp); err != nil {
				return sum, err
			}
			sum.Incremented = append(sum.Incremented, ref.Name)
			continue
		case !errors.Is(err, store.ErrNotFound):
			return sum, fmt.Errorf("catalog lookup %s: %w", ref.Name, err)
		}

		id, err := a.docs.Insert(ctx, store.TableCatalog, Entry{
			Name:             ref.Name,
			DisplayName:      ref.DisplayName,
			Category:         ref.Category,
			HitCount:         1,
			GlobalUsageCount: 1,
			Last30DayUsage:   1,
			LastAccessed:     stamp,
			CreatedAt:        stamp,
		})
		if errors.Is(err, store.ErrDuplicate) {
			// Another ingestion inserted it between our lookup and insert.
			a.logger.Debug("catalog entry raced, incrementing", "name", ref.Name)
			rec, err := a.docs.FindOne(ctx, store.TableCatalog, store.Fields{"name": ref.Name})
			if err != nil {
				return sum, fmt.Errorf("catalog lookup %s: %w", ref.Name, err)
			}
			if err := a.increment(ctx, rec, stamp); err != nil {
				return sum, err
			}
			sum.Incremented = append(sum.Incremented, ref.Name)
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("catalog insert %s: %w", ref.Name, err)
		}
		tx.TrackInsert(store.TableCatalog, id)
		sum.Inserted = append(sum.Inserted, ref.Name)
	}

	a.logger.Debug("catalog accumulated",
		"exercises", len(sum.Exercises),
		"inserted", len(sum.Inserted),
		"incremented", len(sum.Incremented),
	)
	return sum, nil
}

func (a *Accumulator) increment(ctx context.Context, rec store.Record, stamp string) error {
	var e Entry
	if err := rec.Decode(&e); err != nil {
		return fmt.Errorf("catalog increment: %w", err)
	}
	err := a.docs.Patch(ctx, store.TableCatalog, rec.ID, store.Fields{
		"hitCount":         e.HitCount + 1,
		"globalUsageCount": e.GlobalUsageCount + 1,
		"last30DayUsage":   e.Last30DayUsage + 1,
		"lastAccessed":     stamp,
	})
	if err != nil {
		return fmt.Errorf("catalog increment %s: %w", e.Name, err)
	}
	return nil
}

// Lookup returns the entry for name, normalizing it first.
func (a *Accumulator) Lookup(ctx context.Context, name string) (Entry, error) {
	key := NormalizeName(name)
	rec, err := a.docs.FindOne(ctx, store.TableCatalog, store.Fields{"name": key})
	if err != nil {
		return Entry{}, fmt.Errorf("catalog lookup %s: %w", key, err)
	}
	return decodeEntry(rec)
}

// List returns every catalog entry in insertion order.
func (a *Accumulator) List(ctx context.Context) ([]Entry, error) {
	recs, err := a.docs.Find(ctx, store.TableCatalog, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog list: %w", err)
	}
	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		e, err := decodeEntry(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeEntry(rec store.Record) (Entry, error) {
	var e Entry
	if err := rec.Decode(&e); err != nil {
		return Entry{}, err
	}
	e.ID = rec.ID
	return e, nil
}
