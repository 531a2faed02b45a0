// Package sqlite provides a SQLite-backed implementation of driven.EntityStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Pages and folders live in one database,
// scoped by owner id. Durable ids are ULIDs.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.mirae/data/mirae.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The store uses database-level
// locking provided by SQLite in WAL mode.
package sqlite
