package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fitsaga/internal/store"
	"github.com/roach88/fitsaga/internal/testutil"
)

// Scenario defines a consistency scenario: a sequence of service calls,
// optionally with store faults, followed by assertions on the trace and
// on the stored documents.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Clock is the starting date (YYYY-MM-DD); the clock starts at noon UTC.
	// Defaults to 2025-01-01.
	Clock string `yaml:"clock,omitempty"`

	// Timezone is the IANA zone that defines a workout day. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`

	// Dir resolves relative plan paths. LoadScenario sets it to the
	// scenario file's directory.
	Dir string `yaml:"-"`
}

// Step invokes one service operation.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Args are the action arguments.
	Args map[string]any `yaml:"args"`

	// Faults are injected into the store for this step only.
	Faults []FaultSpec `yaml:"faults,omitempty"`

	// Expect validates the outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// FaultSpec makes the Nth matching store call fail during a step.
type FaultSpec struct {
	Op    string `yaml:"op"`
	Table string `yaml:"table,omitempty"`
	Nth   int    `yaml:"nth,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "ok" or "error".
	Case string `yaml:"case"`

	// Error must be a substring of the error message (case "error").
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step's JSON result (case "ok").
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args is a subset match on step args (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Table and Where select documents (final_state, count, absent).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset match on the single selected document
	// (final_state). A null value requires the field to be absent.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of matches (trace_count, count).
	Count int `yaml:"count,omitempty"`
}

// Step actions.
const (
	ActionIngest      = "ingest"
	ActionComplete    = "complete"
	ActionCheckVolume = "check_volume"
	ActionDeletePlan  = "delete_plan"
	ActionSetActive   = "set_active"
	ActionAdvanceDays = "advance_days"
)

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertCount         = "count"
	AssertAbsent        = "absent"
)

// Expect cases.
const (
	CaseOK    = "ok"
	CaseError = "error"
)

var knownActions = map[string]bool{
	ActionIngest:      true,
	ActionComplete:    true,
	ActionCheckVolume: true,
	ActionDeletePlan:  true,
	ActionSetActive:   true,
	ActionAdvanceDays: true,
}

var knownOps = map[string]bool{
	string(testutil.OpInsert):  true,
	string(testutil.OpPatch):   true,
	string(testutil.OpDelete):  true,
	string(testutil.OpGet):     true,
	string(testutil.OpFindOne): true,
	string(testutil.OpFind):    true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Dir = filepath.Dir(path)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Clock != "" {
		if _, err := time.Parse(time.DateOnly, s.Clock); err != nil {
			return fmt.Errorf("clock: %w", err)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	if step.Action == "" {
		return fmt.Errorf("steps[%d]: action is required", index)
	}
	if !knownActions[step.Action] {
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	if step.Args == nil {
		return fmt.Errorf("steps[%d]: args is required (use empty map if no args)", index)
	}
	for j, f := range step.Faults {
		if !knownOps[f.Op] {
			return fmt.Errorf("steps[%d].faults[%d]: unknown op %q", index, j, f.Op)
		}
		if f.Table != "" && !store.Table(f.Table).Valid() {
			return fmt.Errorf("steps[%d].faults[%d]: unknown table %q", index, j, f.Table)
		}
		if f.Nth < 0 {
			return fmt.Errorf("steps[%d].faults[%d]: nth must be non-negative", index, j)
		}
	}
	if step.Expect != nil {
		switch step.Expect.Case {
		case CaseOK, CaseError:
		case "":
			return fmt.Errorf("steps[%d].expect: case is required", index)
		default:
			return fmt.Errorf("steps[%d].expect: case must be %q or %q", index, CaseOK, CaseError)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if err := validateTable(index, a); err != nil {
			return err
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertCount:
		if err := validateTable(index, a); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertAbsent:
		if err := validateTable(index, a); err != nil {
			return err
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateTable(index int, a *Assertion) error {
	if a.Table == "" {
		return fmt.Errorf("assertions[%d]: table is required for %s", index, a.Type)
	}
	if !store.Table(a.Table).Valid() {
		return fmt.Errorf("assertions[%d]: unknown table %q", index, a.Table)
	}
	return nil
}
