// Package store provides SQLite-backed durable storage for fitsaga documents.
//
// The store exposes exactly the single-document primitive the consistency
// layer is built on:
//   - Insert: store a new JSON document under a generated id
//   - Patch: replace or remove top-level fields of one document
//   - Delete: remove one document
//
// plus the reads the services need (Get, FindOne, Find). There are no
// multi-document transactions at this level; multi-document invariants are
// maintained by compensation in internal/saga.
//
// # Tables
//
//   - workout_plans: normalized plans, one owner each
//   - users: per-user active plan pointer
//   - exercise_catalog: global exercise reference table, shared by all users
//   - streaks: one streak record per user
//   - achievements: unlocked milestones per user
//
// # Critical Patterns
//
// Merge patch semantics
//   - Keys present in the patch overwrite, keys whose value is nil are removed
//   - An undo snapshot can therefore restore "this field did not exist"
//
// Uniqueness (schema v1)
//   - One catalog entry per normalized name
//   - One streak and one user row per userId
//   - One achievement per (userId, type)
//   - Violations surface as ErrDuplicate
//
// Deterministic ordering
//   - Every document carries a seq stamped from a monotonic counter
//   - Multi-row reads are ordered by seq ASC, id ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
