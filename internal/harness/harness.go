package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/fitsaga/internal/app"
	"github.com/roach88/fitsaga/internal/plan"
	"github.com/roach88/fitsaga/internal/saga"
	"github.com/roach88/fitsaga/internal/store"
	"github.com/roach88/fitsaga/internal/streak"
	"github.com/roach88/fitsaga/internal/testutil"
)

// DefaultClock is the scenario start date when none is given.
const DefaultClock = "2025-01-01"

// Harness executes one scenario against a fresh store.
type Harness struct {
	store  *store.Store
	faulty *testutil.FaultyDocuments
	clock  *testutil.Clock
	app    *app.App
	dir    string

	// undo collects compensation failures for the running step.
	undo []string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential
// document ids ("doc-0001", ...) and a settable clock, so traces are
// reproducible and can be compared with golden files.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs("doc")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := scenario.Clock
	if start == "" {
		start = DefaultClock
	}
	loc := time.UTC
	if scenario.Timezone != "" {
		loc, err = time.LoadLocation(scenario.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}

	h := &Harness{
		store:  st,
		faulty: testutil.NewFaultyDocuments(st),
		clock:  testutil.NewClockAt(start),
		dir:    scenario.Dir,
	}
	h.app = app.New(h.faulty,
		app.WithClock(h.clock.Now),
		app.WithLocation(loc),
		app.WithLogger(testutil.DiscardLogger()),
		app.WithUndoFailureHook(func(f saga.UndoFailure) {
			h.undo = append(h.undo, f.Step.String())
		}),
	)

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	actx := &AssertionContext{Docs: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step with its faults installed and validates the
// outcome. A returned error means the step could not be run at all (bad
// arguments); service failures are recorded in the trace.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	for _, f := range step.Faults {
		h.faulty.Inject(testutil.Fault{Op: testutil.Op(f.Op), Table: store.Table(f.Table), Nth: f.Nth})
	}
	h.undo = nil

	out, runErr, err := h.dispatch(ctx, step)
	h.faulty.Clear()
	if err != nil {
		return err
	}

	event := TraceEvent{
		Step:         index,
		Action:       step.Action,
		Args:         step.Args,
		Outcome:      CaseOK,
		UndoFailures: h.undo,
	}
	if runErr != nil {
		event.Outcome = CaseError
		event.Error = runErr.Error()
	} else if out != nil {
		normalized, err := normalizeJSON(out)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		event.Result = normalized
	}
	result.Trace = append(result.Trace, event)

	for _, msg := range checkExpect(index, step, event) {
		result.AddError(msg)
	}
	return nil
}

func checkExpect(index int, step Step, event TraceEvent) []string {
	exp := step.Expect
	if exp == nil {
		if event.Outcome == CaseError {
			return []string{fmt.Sprintf("steps[%d] %s: unexpected error: %s", index, step.Action, event.Error)}
		}
		return nil
	}

	if event.Outcome != exp.Case {
		msg := fmt.Sprintf("steps[%d] %s: expected %s, got %s", index, step.Action, exp.Case, event.Outcome)
		if event.Error != "" {
			msg += ": " + event.Error
		}
		return []string{msg}
	}

	var errs []string
	if exp.Error != "" && !strings.Contains(event.Error, exp.Error) {
		errs = append(errs, fmt.Sprintf("steps[%d] %s: error %q does not contain %q", index, step.Action, event.Error, exp.Error))
	}
	if len(exp.Result) > 0 {
		want, err := normalizeJSON(exp.Result)
		if err != nil {
			return append(errs, fmt.Sprintf("steps[%d] %s: expect.result: %v", index, step.Action, err))
		}
		if diff := subsetDiff(want, event.Result, "result"); diff != "" {
			errs = append(errs, fmt.Sprintf("steps[%d] %s: %s", index, step.Action, diff))
		}
	}
	return errs
}

// dispatch calls the service behind step.Action. runErr is the service's
// error; err reports malformed arguments.
func (h *Harness) dispatch(ctx context.Context, step Step) (out any, runErr error, err error) {
	a := args(step.Args)
	switch step.Action {
	case ActionIngest:
		user, err := a.str("user")
		if err != nil {
			return nil, nil, err
		}
		d, err := h.draft(a)
		if err != nil {
			return nil, nil, err
		}
		res, runErr := h.app.Plans.Ingest(ctx, user, d)
		return res, runErr, nil

	case ActionComplete:
		user, err := a.str("user")
		if err != nil {
			return nil, nil, err
		}
		c := streak.Completion{UserID: user}
		if date, ok, err := a.optStr("date"); err != nil {
			return nil, nil, err
		} else if ok {
			// Noon on the given day in UTC; the engine's zone decides the day.
			c.Date, err = time.Parse(time.DateOnly, date)
			if err != nil {
				return nil, nil, fmt.Errorf("date: %w", err)
			}
			c.Date = c.Date.Add(12 * time.Hour)
		}
		if v, ok, err := a.optNum("volume"); err != nil {
			return nil, nil, err
		} else if ok {
			c.TotalVolumeKg = &v
		}
		res, runErr := h.app.Streaks.Complete(ctx, c)
		return res, runErr, nil

	case ActionCheckVolume:
		user, err := a.str("user")
		if err != nil {
			return nil, nil, err
		}
		total, ok, err := a.optNum("total")
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("total is required")
		}
		unlocked, runErr := h.app.Streaks.CheckVolume(ctx, user, total)
		return map[string]any{"achievementsUnlocked": unlocked}, runErr, nil

	case ActionDeletePlan, ActionSetActive:
		user, err := a.str("user")
		if err != nil {
			return nil, nil, err
		}
		planID, err := a.str("plan")
		if err != nil {
			return nil, nil, err
		}
		if step.Action == ActionDeletePlan {
			return nil, h.app.Plans.Delete(ctx, user, planID), nil
		}
		return nil, h.app.Plans.SetActive(ctx, user, planID), nil

	case ActionAdvanceDays:
		days, ok, err := a.optNum("days")
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			days = 1
		}
		h.clock.AdvanceDays(int(days))
		return map[string]any{"now": h.clock.Now().Format(time.RFC3339)}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown action %q", step.Action)
}

// draft builds the plan draft from either a "plan" file path (relative to
// the scenario) or an inline "draft" object.
func (h *Harness) draft(a args) (*plan.Draft, error) {
	if inline, ok := a["draft"]; ok {
		data, err := json.Marshal(inline)
		if err != nil {
			return nil, fmt.Errorf("draft: %w", err)
		}
		return plan.Decode(data)
	}
	path, err := a.str("plan")
	if err != nil {
		return nil, fmt.Errorf("ingest needs plan or draft: %w", err)
	}
	if !filepath.IsAbs(path) && h.dir != "" {
		path = filepath.Join(h.dir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("plan file: %w", err)
	}
	return plan.LoadFile(path)
}

type args map[string]any

func (a args) str(key string) (string, error) {
	s, ok, err := a.optStr(key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func (a args) optStr(key string) (string, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, true, nil
}

func (a args) optNum(key string) (float64, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case float64:
		return n, true, nil
	}
	return 0, false, fmt.Errorf("%s must be a number, got %T", key, v)
}

// normalizeJSON round-trips v through JSON so that YAML-decoded
// expectations and Go results compare on the same types.
func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
