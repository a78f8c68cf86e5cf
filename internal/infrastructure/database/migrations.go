package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// MigrationsFS holds SQL migration files compiled into the binary. The
// migrations package sets it from an embed.FS in its init function:
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.MigrationsFS = migrationsFS
//	    database.MigrationsDir = "."
//	}
//
// A nil MigrationsFS means there are no SQL migrations.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
var MigrationsDir = "migrations"

// loadMigrations reads every NNNN_description.sql file from MigrationsFS.
// Files that don't follow the naming scheme are ignored.
func loadMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		// Directory might not exist if there are no migrations
		return nil, nil //nolint:nilerr // A missing directory means no migrations
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, sqlMigration(version, name, string(body)))
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// sqlMigration wraps a SQL script as a Migration.
func sqlMigration(version int, name, script string) Migration {
	return Migration{
		Version: version,
		Name:    name,
		Apply: func(ctx context.Context, ex Executor) error {
			if strings.TrimSpace(script) == "" {
				return fmt.Errorf("%w: %s is empty", ErrInvalidMigration, name)
			}
			return ex.ExecScript(ctx, script)
		},
	}
}

// parseMigrationFilename extracts the version and name from a filename.
// Example: "0002_person_name_index.sql" -> 2, "person_name_index"
func parseMigrationFilename(filename string) (version int, name string, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return 0, "", false
	}

	prefix, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", false
	}

	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, name, true
}
