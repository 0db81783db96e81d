// Package store provides the SQLite storage engine.
//
// # Architecture
//
// An Engine owns one SQLite database and the tables it was opened with. Tables
// are described explicitly with Table and Column values; nothing is derived
// from struct tags:
//
//	engine, err := store.Open(ctx, store.Options{
//		Path:   "/var/lib/inventory/inventory.db",
//		Tables: []store.Table{inventory.ItemsTable},
//	})
//
// Query text lives with the callers (see inventory.ItemDao). The engine only
// executes, serializes and notifies.
//
// # Drivers
//
//   - "sqlite": modernc.org/sqlite, pure Go, the default
//   - "sqlite3": github.com/mattn/go-sqlite3, requires cgo
//
// File databases are opened in WAL mode with synchronous=FULL, so a mutation
// that returned is durable. MemoryPath (":memory:") databases are limited to a
// single connection.
//
// # Consistency
//
// Mutate runs a callback inside a transaction while holding the engine write
// lock. After a commit that changed rows, observers of the table are notified
// before the lock is released. Watch registers observers while commits are held
// off. Together these give live queries exactly one re-read per commit, in
// commit order, with no commit missed between subscription and first value.
//
// # Sharing
//
// OpenShared keeps one Engine per (driver, absolute path). Repeated calls
// return the same handle; Close releases references and the last one closes
// the database.
//
// # Error Handling
//
//   - ErrStorageUnavailable: the database could not be opened, read or written
//   - ErrClosed: the engine was closed (also matches ErrStorageUnavailable)
//
// Context cancellation is reported as the context error, not as a storage
// failure.
//
// # Testing
//
// Use MemoryPath for fast tests and t.TempDir() paths when durability or
// sharing across handles matters.
package store
