// Package store provides a SQLite-backed record table for state content and
// a history of exploration runs.
//
// The store is one of the interchangeable state-store backends. It keeps
// every interned record in a single table, partitioned by a numeric tag:
//
//   - records: (id, partition, digest, length, data)
//   - runs: one summary row per exploration run
//
// # Insert-or-find
//
// UNIQUE(partition, digest) makes the insert idempotent. WriteRecord runs
// INSERT ... ON CONFLICT DO NOTHING and, on conflict, selects the existing
// row inside the same transaction, returning (id, inserted). Digests are
// SHA-256 with domain separation (see hash.go); the stored bytes are compared
// on every hit so a digest collision surfaces as an error instead of a merge.
//
// # Connection
//
// Open passes journal_mode=WAL, synchronous=NORMAL and a 5s busy timeout as
// go-sqlite3 DSN parameters, and limits the pool to one connection so
// insert-or-find transactions serialize. The schema version lives in
// PRAGMA user_version; a database from a newer binary is refused with
// ErrSchemaTooNew.
package store
