// Package saga runs multi-document writes as compensating transactions.
//
// The storage layer only guarantees single-document atomicity. An
// Executor gives a body function a Tracker; the body registers every
// write it makes immediately after making it. If the body returns an
// error (or panics), the executor walks the tracked steps from last to
// first and undoes each one:
//
//   - a tracked insert is deleted
//   - a tracked update is patched back to its prior snapshot
//
// Inserts and updates share one ordered log, so a child inserted after
// its parent is always removed first.
//
// Compensation is best-effort. A failed undo step is logged and handed to
// the optional UndoFailure hook, then the loop moves on to the next step.
// Undo failures are never returned: the caller always receives the body's
// original error value.
//
// Compensation runs on context.WithoutCancel(ctx). A request context
// that is cancelled mid-body must not stop the undo loop.
//
// Nothing here locks across calls. Two executors touching the same
// document race at the storage layer.
package saga
