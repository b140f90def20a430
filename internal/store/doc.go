// Package store provides a SQLite-backed journal of call sites and
// compilations.
//
// The journal is append-only:
//   - call_sites: one row per trampoline, keyed by its token
//   - compilations: one row per witness run and its outcome
//
// All ordering uses the seq column (a logical clock stamped by the
// engine), never timestamps, so reads are deterministic:
// ORDER BY seq ASC, then id or token COLLATE BINARY.
//
// Witness arguments and values are stored as JSON that keeps the
// INT/DOUBLE distinction (see ir.MarshalValue), so a recorded call can
// be replayed with exactly the argument types it was compiled for.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
