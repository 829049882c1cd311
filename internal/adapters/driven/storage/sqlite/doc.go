// Package sqlite provides a SQLite-based implementation of the driven store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - RecordStore: reconciled catalog records, keyed by remote identifier
//   - HistoryStore: results of scheduled sync runs
//
// # Schema
//
// The schema is managed by goose migrations embedded from the migrations/
// directory and applied when the store is opened.
//
// # Data Location
//
// By default, the database is stored at ~/.catalog-sync/data/catalog.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. Writes are serialised over a
// single connection; each upsert or merge runs in its own transaction.
package sqlite
