// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements every store interface
// through a single database connection pool:
//
//   - CourseStore: courses, memberships and per-kind sync cursors
//   - ContentStore: content units and submissions, committed page by page
//   - SyncRunStore: the append-only sync run history
//   - IndexStore: chunk vectors and access-filtered similarity search
//   - CredentialsStore: OAuth tokens
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.classmate/data/classmate.db
//
// # Thread Safety
//
// All operations are thread-safe. The store runs SQLite in WAL mode and
// takes the write lock at the start of each transaction, so readers never
// observe a partially written page or chunk set.
package sqlite
