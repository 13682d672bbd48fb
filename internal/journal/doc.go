// Package journal records boundary calls in an append-only SQLite log.
//
// Each entry holds the engine id, the operation, a digest of the input
// (never the input itself), the returned status and the size of the result
// array. Entry ids are content addressed over canonical JSON, so the same
// call at the same seq always gets the same id.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection (SQLite has a single writer)
//
// Schema changes are applied through PRAGMA user_version migrations.
package journal
