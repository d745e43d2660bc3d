// Package journal provides SQLite-backed durable storage for mutation traces.
//
// A run is one runtime instance from Rebuild until it stops. Every flush of
// the run is appended as a pass holding the mutations it emitted, in order.
//
// # Tables
//   - runs: one row per run, keyed by a UUIDv7 run id
//   - passes: one row per flush, keyed by a content-addressed pass id
//   - mutations: the ordered operations of each pass
//
// # Ordering
//
// Passes are ordered by seq, a logical clock value, never by wall time.
// All queries use ORDER BY seq ASC (or idx ASC for mutations), so reading a
// run back yields the same trace on every machine.
//
// # Idempotency
//
// Pass ids are SHA-256 hashes of the pass's canonical JSON (see package
// canon). Writing the same pass twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal
