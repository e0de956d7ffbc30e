package cli

import (
	"errors"

	"github.com/roach88/fitsaga/internal/ingest"
	"github.com/roach88/fitsaga/internal/plan"
	"github.com/roach88/fitsaga/internal/store"
)

// Error codes reported in CLIError.Code.
const (
	CodeInvalidPlan = "E_INVALID_PLAN"
	CodeNotFound    = "E_NOT_FOUND"
	CodeForbidden   = "E_FORBIDDEN"
	CodeInvalidArgs = "E_INVALID_ARGS"
	CodeFailed      = "E_OPERATION_FAILED"
	CodeTestFailed  = "E_TEST_FAILED"
)

// classify maps a service error to its CLI error code and details.
func classify(err error) (string, interface{}) {
	var verr *plan.ValidationError
	switch {
	case errors.As(err, &verr):
		return CodeInvalidPlan, map[string]string{"path": verr.Path, "message": verr.Message}
	case errors.Is(err, ingest.ErrForbidden):
		return CodeForbidden, nil
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound, nil
	}
	return CodeFailed, nil
}

// fail reports a service error and returns the matching ExitError.
func fail(f *OutputFormatter, err error) error {
	code, details := classify(err)
	return f.Fail(ExitFailure, code, err, details)
}
