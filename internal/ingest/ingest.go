// Package ingest stores workout plans and keeps the user's active-plan
// pointer and the exercise catalog consistent with them.
//
// Ingest runs as one saga:
//
//  1. normalize the draft (fatal errors return before any write)
//  2. insert the plan                      tracked insert
//  3. accumulate the catalog               tracked inserts, untracked increments
//  4. insert the user or move its pointer  tracked insert or update
//
// A failure at any step undoes the tracked writes in reverse order, so the
// caller never sees a plan without a pointer or a pointer to a missing
// plan. Ownership checks happen before entry; ErrForbidden only guards
// against a plan id that belongs to someone else.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fitsaga/internal/catalog"
	"github.com/roach88/fitsaga/internal/plan"
	"github.com/roach88/fitsaga/internal/saga"
	"github.com/roach88/fitsaga/internal/store"
)

// ErrForbidden is returned when a plan exists but belongs to another user.
var ErrForbidden = errors.New("plan belongs to another user")

// User is the stored user document.
type User struct {
	ID           string `json:"-"`
	UserID       string `json:"userId"`
	ActivePlanID string `json:"activePlanId,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// StoredPlan is a plan document with its id.
type StoredPlan struct {
	ID string `json:"id"`
	plan.Document
}

// Result reports what Ingest wrote.
type Result struct {
	PlanID             string         `json:"planId"`
	Exercises          []catalog.Ref  `json:"extractedExercises"`
	Warnings           []plan.Warning `json:"warnings"`
	CatalogInserted    []string       `json:"catalogInserted"`
	CatalogIncremented []string       `json:"catalogIncremented"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the wall clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service ingests, activates and deletes plans.
type Service struct {
	docs       store.Documents
	exec       *saga.Executor
	normalizer *plan.Normalizer
	catalog    *catalog.Accumulator
	now        func() time.Time
	logger     *slog.Logger
}

// NewService wires a Service.
func NewService(docs store.Documents, exec *saga.Executor, n *plan.Normalizer, acc *catalog.Accumulator, opts ...Option) *Service {
	s := &Service{
		docs:       docs,
		exec:       exec,
		normalizer: n,
		catalog:    acc,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest normalizes d and stores it as userID's active plan.
func (s *Service) Ingest(ctx context.Context, userID string, d *plan.Draft) (Result, error) {
	if userID == "" {
		return Result{}, errors.New("ingest plan: user id is required")
	}
	p, warnings, err := s.normalizer.Normalize(d)
	if err != nil {
		return Result{}, fmt.Errorf("ingest plan: %w", err)
	}
	stamp := s.now().UTC().Format(time.RFC3339)

	res, err := saga.Run(ctx, s.exec, func(ctx context.Context, tx *saga.Tracker) (Result, error) {
		planID, err := s.docs.Insert(ctx, store.TablePlans, plan.Document{UserID: userID, Plan: *p, CreatedAt: stamp})
		if err != nil {
			return Result{}, fmt.Errorf("insert plan: %w", err)
		}
		tx.TrackInsert(store.TablePlans, planID)

		sum, err := s.catalog.Accumulate(ctx, tx, p)
		if err != nil {
			return Result{}, err
		}

		if err := s.pointUserAt(ctx, tx, userID, planID, stamp); err != nil {
			return Result{}, err
		}

		return Result{
			PlanID:             planID,
			Exercises:          orEmpty(sum.Exercises),
			CatalogInserted:    orEmpty(sum.Inserted),
			CatalogIncremented: orEmpty(sum.Incremented),
		}, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ingest plan: %w", err)
	}
	res.Warnings = orEmpty(warnings)

	s.logger.Info("plan ingested",
		"user", userID,
		"plan", res.PlanID,
		"exercises", len(res.Exercises),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// pointUserAt creates the user with activePlanId = planID, or moves an
// existing user's pointer.
func (s *Service) pointUserAt(ctx context.Context, tx *saga.Tracker, userID, planID, stamp string) error {
	rec, err := s.docs.FindOne(ctx, store.TableUsers, store.Fields{"userId": userID})
	if errors.Is(err, store.ErrNotFound) {
		id, err := s.docs.Insert(ctx, store.TableUsers, User{UserID: userID, ActivePlanID: planID, CreatedAt: stamp})
		if err == nil {
			tx.TrackInsert(store.TableUsers, id)
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("insert user: %w", err)
		}
		// Created concurrently; fall through to the update path.
		rec, err = s.docs.FindOne(ctx, store.TableUsers, store.Fields{"userId": userID})
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	return s.setPointer(ctx, tx, rec, planID)
}

// setPointer patches activePlanId on the user record and tracks the
// prior value. An empty planID removes the pointer.
func (s *Service) setPointer(ctx context.Context, tx *saga.Tracker, rec store.Record, planID string) error {
	prior, err := saga.SnapshotRecord(rec, "activePlanId")
	if err != nil {
		return err
	}
	var value any = planID
	if planID == "" {
		value = nil
	}
	if err := s.docs.Patch(ctx, store.TableUsers, rec.ID, store.Fields{"activePlanId": value}); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	tx.TrackUpdate(store.TableUsers, rec.ID, prior)
	return nil
}

// Delete removes userID's plan planID. If it was the active plan the
// user's pointer is cleared first, in the same saga.
func (s *Service) Delete(ctx context.Context, userID, planID string) error {
	if _, err := s.owned(ctx, userID, planID); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}

	err := s.exec.Execute(ctx, func(ctx context.Context, tx *saga.Tracker) error {
		user, err := s.docs.FindOne(ctx, store.TableUsers, store.Fields{"userId": userID, "activePlanId": planID})
		switch {
		case err == nil:
			if err := s.setPointer(ctx, tx, user, ""); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("load user: %w", err)
		}

		// Last step: a delete cannot be tracked, but nothing follows it.
		if err := s.docs.Delete(ctx, store.TablePlans, planID); err != nil {
			return fmt.Errorf("remove plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	s.logger.Info("plan deleted", "user", userID, "plan", planID)
	return nil
}

// SetActive points userID at an existing plan of theirs.
func (s *Service) SetActive(ctx context.Context, userID, planID string) error {
	if _, err := s.owned(ctx, userID, planID); err != nil {
		return fmt.Errorf("set active plan: %w", err)
	}
	user, err := s.docs.FindOne(ctx, store.TableUsers, store.Fields{"userId": userID})
	if err != nil {
		return fmt.Errorf("set active plan: load user: %w", err)
	}

	err = s.exec.Execute(ctx, func(ctx context.Context, tx *saga.Tracker) error {
		return s.setPointer(ctx, tx, user, planID)
	})
	if err != nil {
		return fmt.Errorf("set active plan: %w", err)
	}
	s.logger.Info("active plan set", "user", userID, "plan", planID)
	return nil
}

// Get returns userID's plan planID. Plans of other users are reported as
// not found.
func (s *Service) Get(ctx context.Context, userID, planID string) (StoredPlan, error) {
	sp, err := s.owned(ctx, userID, planID)
	if errors.Is(err, ErrForbidden) {
		return StoredPlan{}, fmt.Errorf("get plan %s: %w", planID, store.ErrNotFound)
	}
	if err != nil {
		return StoredPlan{}, fmt.Errorf("get plan: %w", err)
	}
	return sp, nil
}

// Active returns userID's active plan.
func (s *Service) Active(ctx context.Context, userID string) (StoredPlan, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return StoredPlan{}, err
	}
	if u.ActivePlanID == "" {
		return StoredPlan{}, fmt.Errorf("active plan for %s: %w", userID, store.ErrNotFound)
	}
	return s.Get(ctx, userID, u.ActivePlanID)
}

// List returns userID's plans in creation order.
func (s *Service) List(ctx context.Context, userID string) ([]StoredPlan, error) {
	recs, err := s.docs.Find(ctx, store.TablePlans, store.Fields{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	out := make([]StoredPlan, 0, len(recs))
	for _, rec := range recs {
		sp, err := decodePlan(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// User returns the stored user document.
func (s *Service) User(ctx context.Context, userID string) (User, error) {
	rec, err := s.docs.FindOne(ctx, store.TableUsers, store.Fields{"userId": userID})
	if err != nil {
		return User{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	var u User
	if err := rec.Decode(&u); err != nil {
		return User{}, err
	}
	u.ID = rec.ID
	return u, nil
}

func (s *Service) owned(ctx context.Context, userID, planID string) (StoredPlan, error) {
	rec, err := s.docs.Get(ctx, store.TablePlans, planID)
	if err != nil {
		return StoredPlan{}, err
	}
	sp, err := decodePlan(rec)
	if err != nil {
		return StoredPlan{}, err
	}
	if sp.UserID != userID {
		return StoredPlan{}, fmt.Errorf("plan %s: %w", planID, ErrForbidden)
	}
	return sp, nil
}

func decodePlan(rec store.Record) (StoredPlan, error) {
	var sp StoredPlan
	if err := rec.Decode(&sp.Document); err != nil {
		return StoredPlan{}, err
	}
	sp.ID = rec.ID
	return sp, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
