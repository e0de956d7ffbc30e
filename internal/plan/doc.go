// Package plan validates client-submitted workout plans and rewrites them
// into one canonical shape.
//
// Clients send a Draft: each day carries either a flat list of blocks or a
// list of sessions holding blocks, scalars may arrive as strings or
// numbers, and enums are free text. Normalize turns a Draft into a Plan in
// which every Day is a tagged union:
//
//	kind=rest    no blocks, no sessions
//	kind=single  blocks
//	kind=multi   sessions, each with blocks
//
// Normalization is pure. Fatal problems (missing plan name, no days, a
// day with both blocks and sessions, an exercise without a name) return a
// *ValidationError naming the offending path. Everything else is repaired
// with a default and reported as a Warning.
//
// Normalize is idempotent: feeding the JSON encoding of a Plan back through
// Decode and Normalize yields the same Plan.
package plan
