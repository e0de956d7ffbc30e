package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/fitsaga/internal/store"
)

// ErrInjected is the default error returned by an injected fault.
var ErrInjected = errors.New("injected fault")

// Op names a store.Documents method.
type Op string

const (
	OpInsert  Op = "insert"
	OpPatch   Op = "patch"
	OpDelete  Op = "delete"
	OpGet     Op = "get"
	OpFindOne Op = "find_one"
	OpFind    Op = "find"
)

// Fault makes the Nth call of Op on Table fail with Err.
// Nth is 1-based; 0 fails every matching call. An empty Table matches
// every table.
type Fault struct {
	Op    Op
	Table store.Table
	Nth   int
	Err   error
}

// Call records one operation seen by FaultyDocuments.
type Call struct {
	Op     Op
	Table  store.Table
	ID     string
	Failed bool
}

func (c Call) String() string {
	s := fmt.Sprintf("%s %s", c.Op, c.Table)
	if c.ID != "" {
		s += "/" + c.ID
	}
	if c.Failed {
		s += " (failed)"
	}
	return s
}

// FaultyDocuments wraps a store.Documents and fails selected calls.
// Failing calls never reach the wrapped store.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FaultyDocuments struct {
	inner store.Documents

	mu     sync.Mutex
	faults []Fault
	counts map[string]int
	calls  []Call
}

var _ store.Documents = (*FaultyDocuments)(nil)

// NewFaultyDocuments wraps inner.
func NewFaultyDocuments(inner store.Documents, faults ...Fault) *FaultyDocuments {
	return &FaultyDocuments{
		inner:  inner,
		faults: faults,
		counts: make(map[string]int),
	}
}

// Inject adds a fault.
func (f *FaultyDocuments) Inject(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, fault)
}

// Clear removes every fault and resets call counters.
func (f *FaultyDocuments) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
	f.counts = make(map[string]int)
}

// Calls returns every call seen so far, in order.
func (f *FaultyDocuments) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// check counts the call and returns the injected error, if any.
func (f *FaultyDocuments) check(op Op, table store.Table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := string(op) + " " + string(table)
	f.counts[key]++
	n := f.counts[key]

	for _, fault := range f.faults {
		if fault.Op != op || (fault.Table != "" && fault.Table != table) {
			continue
		}
		nth := n
		if fault.Table == "" {
			nth = f.opCount(op)
		}
		if fault.Nth != 0 && fault.Nth != nth {
			continue
		}
		err := fault.Err
		if err == nil {
			err = ErrInjected
		}
		f.calls = append(f.calls, Call{Op: op, Table: table, ID: id, Failed: true})
		return fmt.Errorf("%s %s: %w", op, table, err)
	}
	f.calls = append(f.calls, Call{Op: op, Table: table, ID: id})
	return nil
}

// opCount sums counters for op across tables. Caller holds mu.
func (f *FaultyDocuments) opCount(op Op) int {
	total := 0
	for _, t := range store.Tables() {
		total += f.counts[string(op)+" "+string(t)]
	}
	return total
}

func (f *FaultyDocuments) Insert(ctx context.Context, table store.Table, doc any) (string, error) {
	if err := f.check(OpInsert, table, ""); err != nil {
		return "", err
	}
	return f.inner.Insert(ctx, table, doc)
}

func (f *FaultyDocuments) Patch(ctx context.Context, table store.Table, id string, fields store.Fields) error {
	if err := f.check(OpPatch, table, id); err != nil {
		return err
	}
	return f.inner.Patch(ctx, table, id, fields)
}

func (f *FaultyDocuments) Delete(ctx context.Context, table store.Table, id string) error {
	if err := f.check(OpDelete, table, id); err != nil {
		return err
	}
	return f.inner.Delete(ctx, table, id)
}

func (f *FaultyDocuments) Get(ctx context.Context, table store.Table, id string) (store.Record, error) {
	if err := f.check(OpGet, table, id); err != nil {
		return store.Record{}, err
	}
	return f.inner.Get(ctx, table, id)
}

func (f *FaultyDocuments) FindOne(ctx context.Context, table store.Table, where store.Fields) (store.Record, error) {
	if err := f.check(OpFindOne, table, ""); err != nil {
		return store.Record{}, err
	}
	return f.inner.FindOne(ctx, table, where)
}

func (f *FaultyDocuments) Find(ctx context.Context, table store.Table, where store.Fields) ([]store.Record, error) {
	if err := f.check(OpFind, table, ""); err != nil {
		return nil, err
	}
	return f.inner.Find(ctx, table, where)
}
