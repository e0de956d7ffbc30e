package saga

import (
	"fmt"
	"maps"

	"github.com/roach88/fitsaga/internal/store"
)

// StepKind identifies how a tracked step is undone.
type StepKind string

const (
	// StepInsert is undone with Delete.
	StepInsert StepKind = "insert"

	// StepUpdate is undone with Patch(prior).
	StepUpdate StepKind = "update"
)

// Step is one tracked write.
type Step struct {
	Kind  StepKind
	Table store.Table
	ID    string

	// Prior is the merge patch that restores the document to its state
	// before the update. Nil values remove keys the update added.
	// Always nil for inserts.
	Prior store.Fields
}

// String renders the step for logs.
func (s Step) String() string {
	return fmt.Sprintf("%s %s/%s", s.Kind, s.Table, s.ID)
}

// Tracker records the writes made inside one Execute call, in order.
//
// A Tracker is owned by a single body invocation and is not safe for
// concurrent use; bodies run their writes sequentially.
type Tracker struct {
	steps []Step
}

// TrackInsert registers a document the body just inserted.
func (t *Tracker) TrackInsert(table store.Table, id string) {
	t.steps = append(t.steps, Step{Kind: StepInsert, Table: table, ID: id})
}

// TrackUpdate registers a document the body just patched, along with the
// snapshot that undoes the patch. The snapshot is copied.
func (t *Tracker) TrackUpdate(table store.Table, id string, prior store.Fields) {
	t.steps = append(t.steps, Step{Kind: StepUpdate, Table: table, ID: id, Prior: maps.Clone(prior)})
}

// Steps returns a copy of the tracked steps in the order they happened.
func (t *Tracker) Steps() []Step {
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

// Len returns the number of tracked steps.
func (t *Tracker) Len() int {
	return len(t.steps)
}

// Snapshot builds an undo snapshot of keys from doc. Keys absent from doc
// map to nil so that restoring the snapshot removes them again.
func Snapshot(doc map[string]any, keys ...string) store.Fields {
	prior := make(store.Fields, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			prior[k] = v
		} else {
			prior[k] = nil
		}
	}
	return prior
}

// SnapshotRecord decodes rec and returns Snapshot(body, keys...).
func SnapshotRecord(rec store.Record, keys ...string) (store.Fields, error) {
	var doc map[string]any
	if err := rec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return Snapshot(doc, keys...), nil
}
