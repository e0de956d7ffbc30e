package saga

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fitsaga/internal/store"
)

// Writer is the subset of store.Documents the executor needs to undo
// tracked steps.
type Writer interface {
	Patch(ctx context.Context, table store.Table, id string, fields store.Fields) error
	Delete(ctx context.Context, table store.Table, id string) error
}

// UndoFailure describes one compensation step that could not be applied.
// The document it names may be left in its post-write state.
type UndoFailure struct {
	Step  Step
	Err   error
	Cause error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for compensation events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithUndoFailureHook registers fn to be called once for each undo step
// that fails. fn runs synchronously inside the compensation loop.
func WithUndoFailureHook(fn func(UndoFailure)) Option {
	return func(e *Executor) {
		e.onUndoFailure = fn
	}
}

// Executor runs bodies with reverse-order compensation on failure.
// An Executor is stateless between calls and safe for concurrent use.
type Executor struct {
	w             Writer
	logger        *slog.Logger
	onUndoFailure func(UndoFailure)
}

// New creates an Executor that undoes steps through w.
func New(w Writer, opts ...Option) *Executor {
	e := &Executor{
		w:      w,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs body with a fresh Tracker.
//
// On success the tracked steps are discarded. If body returns an error,
// every tracked step is undone in reverse order and that same error is
// returned. If body panics, the steps are undone and the panic resumes.
func (e *Executor) Execute(ctx context.Context, body func(ctx context.Context, tx *Tracker) error) error {
	tx := &Tracker{}

	completed := false
	defer func() {
		if completed {
			return
		}
		if r := recover(); r != nil {
			e.compensate(ctx, tx, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	err := body(ctx, tx)
	completed = true
	if err != nil {
		e.compensate(ctx, tx, err)
		return err
	}
	return nil
}

// Run is Execute for bodies that produce a value. The zero value of T is
// returned alongside any error.
func Run[T any](ctx context.Context, e *Executor, body func(ctx context.Context, tx *Tracker) (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, func(ctx context.Context, tx *Tracker) error {
		v, err := body(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// compensate undoes tx's steps from last to first. It never returns an
// error; failures are logged and passed to the hook.
func (e *Executor) compensate(ctx context.Context, tx *Tracker, cause error) {
	if tx.Len() == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	e.logger.Warn("rolling back transaction",
		"steps", tx.Len(),
		"cause", cause,
	)

	failed := 0
	for i := len(tx.steps) - 1; i >= 0; i-- {
		step := tx.steps[i]
		if err := e.undo(ctx, step); err != nil {
			failed++
			e.logger.Error("compensation step failed",
				"step", step.String(),
				"error", err,
				"cause", cause,
			)
			if e.onUndoFailure != nil {
				e.onUndoFailure(UndoFailure{Step: step, Err: err, Cause: cause})
			}
			continue
		}
		e.logger.Debug("compensation step applied", "step", step.String())
	}

	if failed > 0 {
		e.logger.Error("rollback incomplete",
			"steps", tx.Len(),
			"failed", failed,
		)
		return
	}
	e.logger.Info("rollback complete", "steps", tx.Len())
}

func (e *Executor) undo(ctx context.Context, step Step) error {
	switch step.Kind {
	case StepInsert:
		return e.w.Delete(ctx, step.Table, step.ID)
	case StepUpdate:
		if len(step.Prior) == 0 {
			return nil
		}
		return e.w.Patch(ctx, step.Table, step.ID, step.Prior)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}
