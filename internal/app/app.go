// Package app wires every fitsaga service over one document store.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/fitsaga/internal/achievement"
	"github.com/roach88/fitsaga/internal/catalog"
	"github.com/roach88/fitsaga/internal/ingest"
	"github.com/roach88/fitsaga/internal/pgstore"
	"github.com/roach88/fitsaga/internal/plan"
	"github.com/roach88/fitsaga/internal/saga"
	"github.com/roach88/fitsaga/internal/store"
	"github.com/roach88/fitsaga/internal/streak"
)

// App holds the services.
type App struct {
	Docs         store.Documents
	Executor     *saga.Executor
	Normalizer   *plan.Normalizer
	Catalog      *catalog.Accumulator
	Achievements *achievement.Unlocker
	Streaks      *streak.Engine
	Plans        *ingest.Service
}

type config struct {
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
	onUndo func(saga.UndoFailure)
}

// Option configures New.
type Option func(*config)

// WithClock sets the wall clock shared by every service.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLocation sets the time zone that defines a workout day.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.loc = loc }
}

// WithLogger sets the logger shared by every service.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithUndoFailureHook is called for every compensation step that fails.
func WithUndoFailureHook(fn func(saga.UndoFailure)) Option {
	return func(c *config) { c.onUndo = fn }
}

// New builds every service over docs.
func New(docs store.Documents, opts ...Option) *App {
	c := config{now: time.Now, loc: time.UTC, logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}

	execOpts := []saga.Option{saga.WithLogger(c.logger)}
	if c.onUndo != nil {
		execOpts = append(execOpts, saga.WithUndoFailureHook(c.onUndo))
	}
	exec := saga.New(docs, execOpts...)

	norm := plan.NewNormalizer(plan.WithLogger(c.logger))
	acc := catalog.NewAccumulator(docs, catalog.WithClock(c.now), catalog.WithLogger(c.logger))
	unlocker := achievement.NewUnlocker(docs, achievement.WithClock(c.now), achievement.WithLogger(c.logger))

	return &App{
		Docs:         docs,
		Executor:     exec,
		Normalizer:   norm,
		Catalog:      acc,
		Achievements: unlocker,
		Streaks: streak.NewEngine(docs, exec, unlocker,
			streak.WithClock(c.now),
			streak.WithLocation(c.loc),
			streak.WithLogger(c.logger),
		),
		Plans: ingest.NewService(docs, exec, norm, acc,
			ingest.WithClock(c.now),
			ingest.WithLogger(c.logger),
		),
	}
}

// Backing is an open document store.
type Backing interface {
	store.Documents
	io.Closer
}

// OpenStore opens the store named by dsn: a postgres:// or postgresql://
// URL selects PostgreSQL, anything else is a SQLite file path.
func OpenStore(ctx context.Context, dsn string) (Backing, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open store: empty database path")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := pgstore.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	}
	s, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}
