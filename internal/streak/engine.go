package streak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fitsaga/internal/achievement"
	"github.com/roach88/fitsaga/internal/saga"
	"github.com/roach88/fitsaga/internal/store"
)

// ActiveWindow is how long after the start of the last workout day a
// streak still counts as active.
const ActiveWindow = 48 * time.Hour

// Completion is one finished workout.
type Completion struct {
	UserID string

	// Date is when the workout happened. Zero means now.
	Date time.Time

	// TotalVolumeKg is the user's cumulative lifted volume, if known.
	// Volume achievements are evaluated against it.
	TotalVolumeKg *float64
}

// Outcome is the streak state after a completion.
type Outcome struct {
	CurrentStreak        int      `json:"currentStreak"`
	LongestStreak        int      `json:"longestStreak"`
	TotalWorkouts        int      `json:"totalWorkouts"`
	AchievementsUnlocked []string `json:"achievementsUnlocked"`
}

// Status is a read-only view of a user's streak.
type Status struct {
	CurrentStreak   int    `json:"currentStreak"`
	LongestStreak   int    `json:"longestStreak"`
	TotalWorkouts   int    `json:"totalWorkouts"`
	LastWorkoutDate string `json:"lastWorkoutDate,omitempty"`
	IsActive        bool   `json:"isActive"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine applies workout completions to streak records.
type Engine struct {
	docs     store.Documents
	exec     *saga.Executor
	unlocker *achievement.Unlocker
	now      func() time.Time
	loc      *time.Location
	logger   *slog.Logger
}

// NewEngine creates an Engine. Writes go through docs and are compensated
// by exec; unlocker grants achievements inside the same saga.
func NewEngine(docs store.Documents, exec *saga.Executor, unlocker *achievement.Unlocker, opts ...Option) *Engine {
	e := &Engine{
		docs:     docs,
		exec:     exec,
		unlocker: unlocker,
		now:      time.Now,
		loc:      time.UTC,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Complete records a workout for c.UserID.
func (e *Engine) Complete(ctx context.Context, c Completion) (Outcome, error) {
	if c.UserID == "" {
		return Outcome{}, errors.New("complete workout: user id is required")
	}
	when := c.Date
	if when.IsZero() {
		when = e.now()
	}
	day := when.In(e.loc).Format(time.DateOnly)
	stamp := e.now().UTC().Format(time.RFC3339)

	out, err := saga.Run(ctx, e.exec, func(ctx context.Context, tx *saga.Tracker) (Outcome, error) {
		rec, err := e.docs.FindOne(ctx, store.TableStreaks, store.Fields{"userId": c.UserID})
		if errors.Is(err, store.ErrNotFound) {
			out, berr := e.bootstrap(ctx, tx, c, day, stamp)
			if !errors.Is(berr, store.ErrDuplicate) {
				return out, berr
			}
			// Another completion created the record first; advance it instead.
			e.logger.Debug("streak created concurrently", "user", c.UserID)
			rec, err = e.docs.FindOne(ctx, store.TableStreaks, store.Fields{"userId": c.UserID})
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("load streak: %w", err)
		}
		return e.advance(ctx, tx, c, rec, day, stamp)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("complete workout: %w", err)
	}

	e.logger.Info("workout completed",
		"user", c.UserID,
		"day", day,
		"current_streak", out.CurrentStreak,
		"unlocked", out.AchievementsUnlocked,
	)
	return out, nil
}

// advance moves an existing streak record to day and unlocks what the new
// counts reach.
func (e *Engine) advance(ctx context.Context, tx *saga.Tracker, c Completion, rec store.Record, day, stamp string) (Outcome, error) {
	var prev Record
	if err := rec.Decode(&prev); err != nil {
		return Outcome{}, err
	}
	gap, err := DayGap(prev.LastWorkoutDate, day)
	if err != nil {
		return Outcome{}, err
	}
	next, changed := Advance(prev, gap, day)
	if !changed {
		e.logger.Debug("completion did not move streak", "user", c.UserID, "gap", gap)
		return outcome(prev, nil), nil
	}

	prior, err := saga.SnapshotRecord(rec, "currentStreak", "longestStreak", "lastWorkoutDate", "totalWorkouts", "updatedAt")
	if err != nil {
		return Outcome{}, err
	}
	err = e.docs.Patch(ctx, store.TableStreaks, rec.ID, store.Fields{
		"currentStreak":   next.CurrentStreak,
		"longestStreak":   next.LongestStreak,
		"lastWorkoutDate": next.LastWorkoutDate,
		"totalWorkouts":   next.TotalWorkouts,
		"updatedAt":       stamp,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("update streak: %w", err)
	}
	tx.TrackUpdate(store.TableStreaks, rec.ID, prior)

	defs := achievement.ForStreak(next.CurrentStreak)
	defs = append(defs, achievement.ForWorkoutCount(next.TotalWorkouts)...)
	if c.TotalVolumeKg != nil {
		defs = append(defs, achievement.ForVolume(*c.TotalVolumeKg)...)
	}
	unlocked, err := e.unlocker.UnlockAll(ctx, tx, c.UserID, defs)
	if err != nil {
		return Outcome{}, err
	}
	return outcome(next, unlocked), nil
}

func (e *Engine) bootstrap(ctx context.Context, tx *saga.Tracker, c Completion, day, stamp string) (Outcome, error) {
	rec := Record{
		UserID:          c.UserID,
		CurrentStreak:   1,
		LongestStreak:   1,
		LastWorkoutDate: day,
		TotalWorkouts:   1,
		CreatedAt:       stamp,
		UpdatedAt:       stamp,
	}
	id, err := e.docs.Insert(ctx, store.TableStreaks, rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("create streak: %w", err)
	}
	tx.TrackInsert(store.TableStreaks, id)

	first, _ := achievement.Lookup(achievement.FirstWorkout)
	defs := []achievement.Definition{first}
	if c.TotalVolumeKg != nil {
		defs = append(defs, achievement.ForVolume(*c.TotalVolumeKg)...)
	}
	unlocked, err := e.unlocker.UnlockAll(ctx, tx, c.UserID, defs)
	if err != nil {
		return Outcome{}, err
	}
	return outcome(rec, unlocked), nil
}

func outcome(r Record, unlocked []string) Outcome {
	if unlocked == nil {
		unlocked = []string{}
	}
	return Outcome{
		CurrentStreak:        r.CurrentStreak,
		LongestStreak:        r.LongestStreak,
		TotalWorkouts:        r.TotalWorkouts,
		AchievementsUnlocked: unlocked,
	}
}

// CheckVolume unlocks the volume achievements reached at totalKg and
// returns the types it inserted.
func (e *Engine) CheckVolume(ctx context.Context, userID string, totalKg float64) ([]string, error) {
	if userID == "" {
		return nil, errors.New("check volume: user id is required")
	}
	unlocked, err := saga.Run(ctx, e.exec, func(ctx context.Context, tx *saga.Tracker) ([]string, error) {
		return e.unlocker.UnlockAll(ctx, tx, userID, achievement.ForVolume(totalKg))
	})
	if err != nil {
		return nil, fmt.Errorf("check volume: %w", err)
	}
	if unlocked == nil {
		unlocked = []string{}
	}
	return unlocked, nil
}

// Status returns userID's streak as of now. A streak whose last workout
// day started more than ActiveWindow ago is inactive and reports a
// current streak of 0.
func (e *Engine) Status(ctx context.Context, userID string) (Status, error) {
	rec, err := e.docs.FindOne(ctx, store.TableStreaks, store.Fields{"userId": userID})
	if errors.Is(err, store.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("streak status: %w", err)
	}
	var r Record
	if err := rec.Decode(&r); err != nil {
		return Status{}, err
	}

	last, err := time.ParseInLocation(time.DateOnly, r.LastWorkoutDate, e.loc)
	if err != nil {
		return Status{}, fmt.Errorf("streak status: %w", err)
	}
	active := e.now().Sub(last) < ActiveWindow

	s := Status{
		CurrentStreak:   r.CurrentStreak,
		LongestStreak:   r.LongestStreak,
		TotalWorkouts:   r.TotalWorkouts,
		LastWorkoutDate: r.LastWorkoutDate,
		IsActive:        active,
	}
	if !active {
		s.CurrentStreak = 0
	}
	return s, nil
}
