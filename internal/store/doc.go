// Package store provides persistent storage for cin-gateway posts using SQLite.
//
// # Data Model
//
// A Post is created in "processing" status at admission time, before any
// generation work happens. That placeholder row makes the headline visible to
// duplicate checks immediately, closing the race where two near-simultaneous
// submissions of the same headline could both be admitted. The pipeline later
// moves the row exactly once to "published" or "rejected".
//
// Duplicate detection is backed by the headline_hash column: the lowercased,
// trimmed submission headline. Only "published" and "processing" rows block a
// resubmission; "rejected" headlines are deliberately retryable.
//
// # Crash Recovery
//
// There is no write-ahead log or job resumption. A row still in "processing"
// after a restart is orphaned — its pipeline goroutine died with the process —
// and CleanupStaleProcessing(ctx, 0) at startup reclassifies it as rejected so
// the headline can be resubmitted.
//
// # SQLite Configuration
//
// The store uses SQLite (modernc.org/sqlite) with WAL mode for concurrent
// reads:
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite, or
// NewMockStore() for unit tests.
package store
