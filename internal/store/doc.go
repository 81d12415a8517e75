// Package store provides SQLite-backed history of regression runs.
//
// Each run is one row in runs, identified by its run ID, with one row per
// test in results. History is append-only and optional: a run that cannot
// be recorded still runs.
//
// # Ordering
//
// Runs are ordered by seq, a logical counter assigned on insert, and results
// by their position in the run. Wall-clock timestamps are stored for display
// only and never used for ordering, so listings are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
