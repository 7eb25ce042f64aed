// Package sqlite provides the SQLite-backed vector store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Vectors are stored as little-endian
// float32 blobs and searched with an exact cosine scan.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// A rebuild writes into a staging collection row. Commit deletes the live row
// and promotes the staging row in one transaction, so readers see either the
// old collection or the new one.
//
// # Data Location
//
// The database is stored at <store.path>/index.db, by default .vectordb/index.db
// relative to the working directory.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
