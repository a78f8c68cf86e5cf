package database

import (
	"context"
	"fmt"
	"sort"
)

// schemaTable is the reserved single-row table holding the schema version.
const schemaTable = "Schema"

// Migration is one step of the linear schema history.
type Migration struct {
	// Version is the schema version reached once Apply succeeds. Versions
	// start at 1.
	Version int

	// Name is a human-readable label used in logs.
	Name string

	// Apply performs the schema change. It should be idempotent
	// (CREATE TABLE IF NOT EXISTS and similar), since a crash between Apply
	// and the version update reruns it on the next start.
	Apply func(ctx context.Context, ex Executor) error
}

// SchemaVersion returns the stored schema version. A database without the
// Schema table, or with an empty one, is at version 0.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.Exclusive(ctx, func(ex Executor) error {
		v, err := readSchemaVersion(ctx, ex)
		version = v
		return err
	})
	return version, err
}

// IncrementSchemaVersion raises the schema version by one and returns the
// new version. The read and the write happen without any other statement
// in between.
func (db *DB) IncrementSchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.Exclusive(ctx, func(ex Executor) error {
		current, err := readSchemaVersion(ctx, ex)
		if err != nil {
			return err
		}
		version = current + 1
		return writeSchemaVersion(ctx, ex, current, version)
	})
	return version, err
}

// RunMigration applies m if the schema version is below m.Version and then
// records m.Version. It reports whether the migration ran; a migration that
// is already covered by the stored version is skipped without error.
//
// The version check, Apply and the version update all run on the worker
// without interleaving other callers' statements.
//
// Parameters:
//   - ctx: Context for the queue wait
//   - m: Migration to apply
//
// Returns:
//   - applied: true if Apply ran and the version was raised
//   - error: If Apply or the version update fails
func (db *DB) RunMigration(ctx context.Context, m Migration) (applied bool, err error) {
	if m.Version <= 0 || m.Apply == nil {
		return false, fmt.Errorf("%w: version %d (%s)", ErrInvalidMigration, m.Version, m.Name)
	}

	err = db.Exclusive(ctx, func(ex Executor) error {
		current, err := readSchemaVersion(ctx, ex)
		if err != nil {
			return err
		}
		if current >= m.Version {
			return nil
		}

		if err := m.Apply(ctx, ex); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.Version, m.Name, err)
		}
		if err := writeSchemaVersion(ctx, ex, current, m.Version); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		db.log().Info("schema migrated", "version", m.Version, "name", m.Name)
	}
	return applied, nil
}

// Migrate applies the embedded SQL migrations registered in MigrationsFS
// together with extra, in version order.
//
// The combined set must number 1..N without gaps or duplicates. Migrations
// at or below the stored version are skipped, so Migrate is safe to call on
// every start.
//
// Returns:
//   - int: Number of migrations applied by this call
//   - error: If the set is not contiguous or a migration fails
func (db *DB) Migrate(ctx context.Context, extra ...Migration) (int, error) {
	embedded, err := loadMigrations()
	if err != nil {
		return 0, fmt.Errorf("loading migrations: %w", err)
	}

	all := append(embedded, extra...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Version < all[j].Version
	})
	for i, m := range all {
		if m.Version != i+1 {
			return 0, fmt.Errorf("%w: expected version %d, found %d (%s)", ErrMigrationGap, i+1, m.Version, m.Name)
		}
	}

	count := 0
	for _, m := range all {
		applied, err := db.RunMigration(ctx, m)
		if err != nil {
			return count, err
		}
		if applied {
			count++
		}
	}
	return count, nil
}

func readSchemaVersion(ctx context.Context, ex Executor) (int, error) {
	rows, err := ex.Query(ctx,
		"SELECT COUNT(*) AS count FROM sqlite_master WHERE type = 'table' AND name = ?",
		schemaTable,
	)
	if err != nil {
		return 0, fmt.Errorf("checking schema table: %w", err)
	}
	if len(rows) == 0 || rows[0].Value("count").Int() == 0 {
		return 0, nil
	}

	rows, err = ex.Query(ctx, "SELECT MAX(version) AS version FROM "+schemaTable)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(rows[0].Value("version").Int()), nil
}

// writeSchemaVersion stores next as the only row of the Schema table.
// current is the version read under the same exclusive section.
func writeSchemaVersion(ctx context.Context, ex Executor, current, next int) error {
	if next < current {
		return fmt.Errorf("%w: %d -> %d", ErrVersionRegression, current, next)
	}

	if _, err := ex.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+schemaTable+" (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("creating schema table: %w", err)
	}

	res, err := ex.Exec(ctx, "UPDATE "+schemaTable+" SET version = ?", next)
	if err != nil {
		return fmt.Errorf("updating schema version: %w", err)
	}
	if res.RowsAffected == 0 {
		if _, err := ex.Exec(ctx, "INSERT INTO "+schemaTable+" (version) VALUES (?)", next); err != nil {
			return fmt.Errorf("inserting schema version: %w", err)
		}
	}
	return nil
}
