package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Action  string `json:"action"`
	Args    any    `json:"args,omitempty"`
	Outcome string `json:"outcome"` // "ok" or "error"
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`

	// UndoFailures lists compensation steps that failed during this step.
	UndoFailures []string `json:"undo_failures,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
