// Package harness runs consistency scenarios against the fitsaga services.
//
// A scenario drives the real services over a fresh in-memory store and
// can inject store faults into any step, so rollback behavior is tested
// end to end.
//
// # Scenario Format
//
//	name: ingest_rollback
//	description: "What this scenario validates"
//	clock: "2025-03-01"        # optional start date, noon UTC
//	timezone: Europe/Berlin    # optional, defines a workout day
//	steps:
//	  - action: ingest
//	    args: {user: u1, plan: ../plans/push_pull.json}
//	  - action: ingest
//	    args: {user: u1, plan: ../plans/legs.yaml}
//	    faults:
//	      - {op: patch, table: users}
//	    expect:
//	      case: error
//	      error: injected fault
//	assertions:
//	  - type: final_state
//	    table: users
//	    where: {userId: u1}
//	    expect: {activePlanId: doc-0001}
//
// # Actions
//
//   - ingest: user, plan (file path) or draft (inline object)
//   - complete: user, optional date (YYYY-MM-DD) and volume (kg)
//   - check_volume: user, total
//   - delete_plan, set_active: user, plan (id)
//   - advance_days: optional days (default 1)
//
// Faults apply to one step only. op is insert, patch, delete, get,
// find_one or find; table is optional; nth (1-based) selects a single
// matching call, otherwise every matching call fails.
//
// # Assertion Types
//
//   - trace_contains: a step with the action and a subset of args ran
//   - trace_order: actions first appear in the given order
//   - trace_count: the action ran exactly N times
//   - final_state: exactly one document matches where and has the
//     expected fields (null means the field is absent)
//   - count: N documents match where
//   - absent: no document matches where
//
// # Deterministic Testing
//
// Document ids are sequential ("doc-0001", ...) and the clock only moves
// on advance_days, so traces are identical across runs and can be compared
// with golden files (see RunWithGolden).
package harness
