// Package store provides SQLite-backed persistent storage for IntelliTodo tasks.
//
// The store is a single versioned table of task records with:
//   - Store-assigned integer IDs (AUTOINCREMENT, never reused)
//   - Secondary indexes on every field the list views filter or sort on
//   - Live subscriptions re-evaluated after every committed mutation
//
// # Schema Versions
//
// The schema version is tracked in PRAGMA user_version. Each version declares
// its column set and indexes, plus an upgrade step that runs exactly once, in
// increasing order, inside its own transaction together with the version bump.
// Every upgrade step is idempotent so an interrupted migration can be retried
// from the start.
//
//   - v1: id, title, completed, due_date, created_at, mode
//   - v2: adds priority and description, backfilled to 'medium' and ''
//
// # Ordering
//
// List queries are ordered by created_at DESC, id DESC. Subscribers observe
// the snapshot taken at each commit, in commit order, and never receive the
// same snapshot twice in a row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite supports one writer at a time
//
// Timestamps are stored as Unix milliseconds.
package store
