// Package database is the serialized gateway to a single SQLite file.
//
// This package manages:
//   - First-run provisioning of the file from a bundled template
//   - One connection, driven by one worker goroutine in FIFO order
//   - Typed result rows (see package value)
//   - The reserved Schema table and linear schema migrations
//   - Compaction on close or on a cron schedule
//
// Concurrency:
//
// Exec, Query and ExecScript enqueue a job and block until the worker has
// run it. Two statements never run against the connection at the same
// time. Exclusive hands a callback the worker itself, so a read and a
// dependent write can run back to back; schema version checks use it.
//
// Error Handling:
//
// Statements rejected by SQLite return a *StatementError wrapping
// ErrPrepare or ErrExecution and carrying the driver's message. If the
// template copy fails on first run, Open returns a *ProvisioningError and a
// DB that answers every later call with ErrNotInitialized.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, schemaV1); err != nil {
//	    return err
//	}
//
//	rows, err := db.Query(ctx, "SELECT * FROM Person WHERE id = ?", id)
//
// Migration Strategy:
//
// Versions are integers starting at 1. A migration runs only when the
// stored version is below its own, then the stored version is raised to
// it. Versions never decrease. SQL migrations are embedded as
// NNNN_description.sql files; Go migrations are passed to Migrate.
package database
