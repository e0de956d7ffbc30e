package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/fitsaga/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", event.Step, event.Action, event.Args, event.Outcome)
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains a step matching the
// specified action and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want, err := normalizeJSON(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains args: %w", err)
	}
	for _, event := range trace {
		if event.Action != assertion.Action {
			continue
		}
		got, err := normalizeJSON(event.Args)
		if err != nil {
			continue
		}
		if len(assertion.Args) == 0 || subsetDiff(want, got, "args") == "" {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// First position of each expected action, 1-indexed so 0 means missing.
	positions := make(map[string]int)
	for i, event := range trace {
		for _, expected := range assertion.Actions {
			if event.Action == expected && positions[expected] == 0 {
				positions[expected] = i + 1
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState selects exactly one document and checks the expected
// fields with subset semantics. A nil expected value requires the field to
// be absent.
func assertFinalState(ctx context.Context, docs store.Documents, assertion Assertion) error {
	recs, err := findDocs(ctx, docs, assertion)
	if err != nil {
		return err
	}
	whereDesc := formatWhereClause(assertion.Where)
	if len(recs) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("document in %s where %s", assertion.Table, whereDesc),
			Actual:   "document not found",
		}
	}
	if len(recs) > 1 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one document in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d documents matched (assertion is ambiguous)", len(recs)),
		}
	}

	var actual map[string]any
	if err := json.Unmarshal(recs[0].Body, &actual); err != nil {
		return fmt.Errorf("decode %s/%s: %w", recs[0].Table, recs[0].ID, err)
	}
	want, err := normalizeJSON(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expected := want.(map[string]any)[key]
		got, exists := actual[key]
		if expected == nil {
			if exists {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("field %q absent", key),
					Actual:   fmt.Sprintf("field %q = %v", key, got),
				}
			}
			continue
		}
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, expected),
				Actual:   fmt.Sprintf("field %q not present", key),
			}
		}
		if diff := subsetDiff(expected, got, key); diff != "" {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, expected),
				Actual:   diff,
			}
		}
	}
	return nil
}

// assertCount checks the number of documents matching where.
func assertCount(ctx context.Context, docs store.Documents, assertion Assertion) error {
	recs, err := findDocs(ctx, docs, assertion)
	if err != nil {
		return err
	}
	if len(recs) != assertion.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d documents in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d documents", len(recs)),
		}
	}
	return nil
}

// assertAbsent checks that no document matches where.
func assertAbsent(ctx context.Context, docs store.Documents, assertion Assertion) error {
	recs, err := findDocs(ctx, docs, assertion)
	if err != nil {
		return err
	}
	if len(recs) > 0 {
		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no document in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("found %v", ids),
		}
	}
	return nil
}

func findDocs(ctx context.Context, docs store.Documents, assertion Assertion) ([]store.Record, error) {
	where, err := filterFields(assertion.Where)
	if err != nil {
		return nil, err
	}
	recs, err := docs.Find(ctx, store.Table(assertion.Table), where)
	if err != nil {
		return nil, &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	return recs, nil
}

// filterFields converts YAML scalars to the types store filters accept.
func filterFields(where map[string]any) (store.Fields, error) {
	out := make(store.Fields, len(where))
	for k, v := range where {
		switch val := v.(type) {
		case string, bool, int64, float64:
			out[k] = val
		case int:
			out[k] = int64(val)
		default:
			return nil, fmt.Errorf("where %q: unsupported value type %T", k, v)
		}
	}
	return out, nil
}

// formatWhereClause creates a human-readable description of filter conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// subsetDiff compares JSON-normalized values. Objects match when every
// expected key matches; arrays and scalars must be equal. Returns "" on a
// match, otherwise a description of the first difference.
func subsetDiff(expected, actual any, path string) string {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return fmt.Sprintf("%s: expected object, got %v", path, actual)
		}
		for _, k := range sortedKeys(exp) {
			av, exists := act[k]
			if !exists {
				return fmt.Sprintf("%s.%s: missing", path, k)
			}
			if d := subsetDiff(exp[k], av, path+"."+k); d != "" {
				return d
			}
		}
		return ""
	default:
		if !reflect.DeepEqual(expected, actual) {
			return fmt.Sprintf("%s: expected %v, got %v", path, expected, actual)
		}
		return ""
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Docs store.Documents
	Ctx  context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertCount, AssertAbsent:
			if actx == nil || actx.Docs == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertFinalState:
				err = assertFinalState(actx.Ctx, actx.Docs, assertion)
			case AssertCount:
				err = assertCount(actx.Ctx, actx.Docs, assertion)
			default:
				err = assertAbsent(actx.Ctx, actx.Docs, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
