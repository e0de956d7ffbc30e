// Package achievement grants named milestone records to users.
//
// An achievement is unique per (userId, type). Unlock checks for an
// existing record before inserting, and a unique index on the pair turns
// a concurrent double unlock into store.ErrDuplicate, which is treated as
// "already unlocked". Records are never modified after insert.
package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fitsaga/internal/saga"
	"github.com/roach88/fitsaga/internal/store"
)

// Record is one unlocked achievement.
type Record struct {
	ID          string `json:"-"`
	UserID      string `json:"userId"`
	Type        string `json:"type"`
	UnlockedAt  string `json:"unlockedAt"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Tier        Tier   `json:"tier"`
}

// Option configures an Unlocker.
type Option func(*Unlocker)

// WithClock sets the wall clock used for unlockedAt.
func WithClock(now func() time.Time) Option {
	return func(u *Unlocker) {
		if now != nil {
			u.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(u *Unlocker) {
		if l != nil {
			u.logger = l
		}
	}
}

// Unlocker inserts achievement records.
type Unlocker struct {
	docs   store.Documents
	now    func() time.Time
	logger *slog.Logger
}

// NewUnlocker creates an Unlocker over docs.
func NewUnlocker(docs store.Documents, opts ...Option) *Unlocker {
	u := &Unlocker{
		docs:   docs,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unlock grants def to userID unless it is already held. It reports
// whether this call inserted the record; the insert is tracked on tx.
func (u *Unlocker) Unlock(ctx context.Context, tx *saga.Tracker, userID string, def Definition) (bool, error) {
	where := store.Fields{"userId": userID, "type": def.Type}
	_, err := u.docs.FindOne(ctx, store.TableAchievements, where)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("unlock %s: %w", def.Type, err)
	}

	id, err := u.docs.Insert(ctx, store.TableAchievements, Record{
		UserID:      userID,
		Type:        def.Type,
		UnlockedAt:  u.now().UTC().Format(time.RFC3339),
		DisplayName: def.DisplayName,
		Description: def.Description,
		Icon:        def.Icon,
		Tier:        def.Tier,
	})
	if errors.Is(err, store.ErrDuplicate) {
		u.logger.Debug("achievement already unlocked concurrently", "user", userID, "type", def.Type)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unlock %s: %w", def.Type, err)
	}
	tx.TrackInsert(store.TableAchievements, id)

	u.logger.Info("achievement unlocked", "user", userID, "type", def.Type, "tier", def.Tier)
	return true, nil
}

// UnlockAll unlocks each of defs in order and returns the types this call
// inserted.
func (u *Unlocker) UnlockAll(ctx context.Context, tx *saga.Tracker, userID string, defs []Definition) ([]string, error) {
	var unlocked []string
	for _, def := range defs {
		ok, err := u.Unlock(ctx, tx, userID, def)
		if err != nil {
			return unlocked, err
		}
		if ok {
			unlocked = append(unlocked, def.Type)
		}
	}
	return unlocked, nil
}

// List returns userID's achievements in unlock order.
func (u *Unlocker) List(ctx context.Context, userID string) ([]Record, error) {
	recs, err := u.docs.Find(ctx, store.TableAchievements, store.Fields{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		var r Record
		if err := rec.Decode(&r); err != nil {
			return nil, err
		}
		r.ID = rec.ID
		out = append(out, r)
	}
	return out, nil
}
