package saga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitsaga/internal/store"
)

// recordingWriter logs undo calls and optionally fails some of them.
type recordingWriter struct {
	calls []string
	fail  map[string]error
}

func (w *recordingWriter) Patch(_ context.Context, table store.Table, id string, fields store.Fields) error {
	call := fmt.Sprintf("patch %s/%s", table, id)
	w.calls = append(w.calls, call)
	return w.fail[call]
}

func (w *recordingWriter) Delete(_ context.Context, table store.Table, id string) error {
	call := fmt.Sprintf("delete %s/%s", table, id)
	w.calls = append(w.calls, call)
	return w.fail[call]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "saga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExecute_SuccessDiscardsSteps(t *testing.T) {
	w := &recordingWriter{}
	ex := New(w, WithLogger(quietLogger()))

	err := ex.Execute(context.Background(), func(ctx context.Context, tx *Tracker) error {
		tx.TrackInsert(store.TablePlans, "p1")
		tx.TrackUpdate(store.TableUsers, "u1", store.Fields{"activePlanId": "p0"})
		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, w.calls)
}

func TestExecute_UndoesCombinedLogInReverse(t *testing.T) {
	w := &recordingWriter{}
	ex := New(w, WithLogger(quietLogger()))
	boom := errors.New("boom")

	err := ex.Execute(context.Background(), func(ctx context.Context, tx *Tracker) error {
		tx.TrackInsert(store.TablePlans, "p1")
		tx.TrackUpdate(store.TableUsers, "u1", store.Fields{"activePlanId": "p0"})
		tx.TrackInsert(store.TableCatalog, "c1")
		tx.TrackUpdate(store.TableStreaks, "s1", store.Fields{"currentStreak": 3})
		return boom
	})

	assert.Same(t, boom, err)
	assert.Equal(t, []string{
		"patch streaks/s1",
		"delete exercise_catalog/c1",
		"patch users/u1",
		"delete workout_plans/p1",
	}, w.calls)
}

func TestExecute_ReturnsOriginalErrorIdentity(t *testing.T) {
	ex := New(&recordingWriter{}, WithLogger(quietLogger()))

	err := ex.Execute(context.Background(), func(ctx context.Context, tx *Tracker) error {
		tx.TrackInsert(store.TablePlans, "p1")
		return fmt.Errorf("insert user: %w", store.ErrDuplicate)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Equal(t, "insert user: duplicate document", err.Error())
}

func TestExecute_UndoFailureDoesNotStopLoop(t *testing.T) {
	w := &recordingWriter{fail: map[string]error{
		"delete exercise_catalog/c1": errors.New("disk gone"),
	}}
	var failures []UndoFailure
	ex := New(w,
		WithLogger(quietLogger()),
		WithUndoFailureHook(func(f UndoFailure) { failures = append(failures, f) }),
	)
	boom := errors.New("boom")

	err := ex.Execute(context.Background(), func(ctx context.Context, tx *Tracker) error {
		tx.TrackInsert(store.TablePlans, "p1")
		tx.TrackInsert(store.TableCatalog, "c1")
		tx.TrackInsert(store.TableAchievements, "a1")
		return boom
	})

	assert.Same(t, boom, err)
	assert.Equal(t, []string{
		"delete achievements/a1",
		"delete exercise_catalog/c1",
		"delete workout_plans/p1",
	}, w.calls)

	require.Len(t, failures, 1)
	assert.Equal(t, StepInsert, failures[0].Step.Kind)
	assert.Equal(t, "c1", failures[0].Step.ID)
	assert.EqualError(t, failures[0].Err, "disk gone")
	assert.Same(t, boom, failures[0].Cause)
}

func TestExecute_PanicCompensatesThenRepanics(t *testing.T) {
	w := &recordingWriter{}
	ex := New(w, WithLogger(quietLogger()))

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = ex.Execute(context.Background(), func(ctx context.Context, tx *Tracker) error {
			tx.TrackInsert(store.TablePlans, "p1")
			panic("kaboom")
		})
	})
	assert.Equal(t, []string{"delete workout_plans/p1"}, w.calls)
}

func TestExecute_CompensatesAfterContextCancel(t *testing.T) {
	s := openStore(t)
	ex := New(s, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	var planID string
	err := ex.Execute(ctx, func(ctx context.Context, tx *Tracker) error {
		id, err := s.Insert(ctx, store.TablePlans, map[string]any{"userId": "u1", "name": "A"})
		if err != nil {
			return err
		}
		tx.TrackInsert(store.TablePlans, id)
		planID = id
		cancel()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Get(context.Background(), store.TablePlans, planID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecute_NoStepsNoUndo(t *testing.T) {
	w := &recordingWriter{}
	ex := New(w, WithLogger(quietLogger()))

	err := ex.Execute(context.Background(), func(ctx context.Context, tx *Tracker) error {
		return errors.New("validation failed")
	})

	require.Error(t, err)
	assert.Empty(t, w.calls)
}

// TestExecute_RollbackRestoresStore runs N inserts and M updates against a
// real store, fails, and checks every document is back to where it was.
func TestExecute_RollbackRestoresStore(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	ex := New(s, WithLogger(quietLogger()))

	userID, err := s.Insert(ctx, store.TableUsers, map[string]any{"userId": "u1", "activePlanId": "old"})
	require.NoError(t, err)
	streakID, err := s.Insert(ctx, store.TableStreaks, map[string]any{"userId": "u1", "currentStreak": 4})
	require.NoError(t, err)

	var inserted []string
	boom := errors.New("late failure")
	err = ex.Execute(ctx, func(ctx context.Context, tx *Tracker) error {
		for _, name := range []string{"a", "b", "c"} {
			id, err := s.Insert(ctx, store.TableCatalog, map[string]any{"name": name})
			if err != nil {
				return err
			}
			tx.TrackInsert(store.TableCatalog, id)
			inserted = append(inserted, id)
		}

		rec, err := s.Get(ctx, store.TableUsers, userID)
		if err != nil {
			return err
		}
		prior, err := SnapshotRecord(rec, "activePlanId", "nickname")
		if err != nil {
			return err
		}
		if err := s.Patch(ctx, store.TableUsers, userID, store.Fields{"activePlanId": "new", "nickname": "x"}); err != nil {
			return err
		}
		tx.TrackUpdate(store.TableUsers, userID, prior)

		srec, err := s.Get(ctx, store.TableStreaks, streakID)
		if err != nil {
			return err
		}
		sprior, err := SnapshotRecord(srec, "currentStreak")
		if err != nil {
			return err
		}
		if err := s.Patch(ctx, store.TableStreaks, streakID, store.Fields{"currentStreak": 5}); err != nil {
			return err
		}
		tx.TrackUpdate(store.TableStreaks, streakID, sprior)

		return boom
	})
	require.ErrorIs(t, err, boom)

	for _, id := range inserted {
		_, err := s.Get(ctx, store.TableCatalog, id)
		assert.ErrorIs(t, err, store.ErrNotFound, "catalog %s should be rolled back", id)
	}

	rec, err := s.Get(ctx, store.TableUsers, userID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","activePlanId":"old"}`, string(rec.Body))

	srec, err := s.Get(ctx, store.TableStreaks, streakID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","currentStreak":4}`, string(srec.Body))
}

func TestRun_ReturnsValue(t *testing.T) {
	ex := New(&recordingWriter{}, WithLogger(quietLogger()))

	got, err := Run(context.Background(), ex, func(ctx context.Context, tx *Tracker) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRun_ZeroValueOnError(t *testing.T) {
	w := &recordingWriter{}
	ex := New(w, WithLogger(quietLogger()))

	got, err := Run(context.Background(), ex, func(ctx context.Context, tx *Tracker) (string, error) {
		tx.TrackInsert(store.TablePlans, "p1")
		return "partial", errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, []string{"delete workout_plans/p1"}, w.calls)
}
