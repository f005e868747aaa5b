// Package store provides SQLite-backed durable storage for preparation
// run provenance.
//
// The store records one row per pass execution plus its group
// assignments, materialized observer instances, and inserted observer
// nodes:
//   - Runs: content-addressed run records (run ID over graph hash,
//     mode, and tool version)
//   - Groups: position -> group assignments in registration order
//   - Observers: one instance record per group
//   - Insertions: observer nodes added to the graph, in insertion order
//
// Writes are idempotent: a run ID is content-addressed, so writing the
// same run twice is a no-op (ON CONFLICT DO NOTHING). All ordering uses
// seq INTEGER columns, never timestamps, so reads reproduce the pass's
// registration and insertion order exactly.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Run and graph IDs are computed via functions in internal/ir/hash.go
// using canonical JSON and SHA-256 with domain separation.
package store
