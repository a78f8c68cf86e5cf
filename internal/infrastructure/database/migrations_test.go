package database

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"
)

// testMigrationsDir is the directory containing test migration files.
const testMigrationsDir = "testdata"

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useMigrations swaps the package migration source for the test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()

	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})

	MigrationsFS = fsys
	MigrationsDir = dir
}

// TestMigrate verifies embedded SQL migration application.
func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	applied, err := db.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if applied != 2 {
		t.Errorf("Migrate() applied %d, want 2", applied)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 2 {
		t.Errorf("SchemaVersion() = %d, want 2", version)
	}

	rows, err := db.Query(ctx, "SELECT name FROM widgets")
	if err != nil {
		t.Fatalf("widgets table not created: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("widgets has %d rows, want 1", len(rows))
	}

	// Running again should be idempotent
	applied, err = db.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if applied != 0 {
		t.Errorf("second Migrate() applied %d, want 0", applied)
	}
}

// TestMigrateWithBlocks verifies SQL files and Go migrations combine.
func TestMigrateWithBlocks(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	runs := 0
	block := Migration{
		Version: 3,
		Name:    "widget_colour",
		Apply: func(ctx context.Context, ex Executor) error {
			runs++
			_, err := ex.Exec(ctx, "ALTER TABLE widgets ADD COLUMN colour TEXT")
			return err
		},
	}

	if _, err := db.Migrate(ctx, block); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.Migrate(ctx, block); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if runs != 1 {
		t.Errorf("block ran %d times, want 1", runs)
	}
}

// TestMigrateGap verifies non-contiguous versions are refused.
func TestMigrateGap(t *testing.T) {
	useMigrations(t, nil, ".")

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	noop := func(context.Context, Executor) error { return nil }

	tests := []struct {
		name       string
		migrations []Migration
	}{
		{name: "missing first", migrations: []Migration{{Version: 2, Name: "b", Apply: noop}}},
		{name: "hole", migrations: []Migration{{Version: 1, Name: "a", Apply: noop}, {Version: 3, Name: "c", Apply: noop}}},
		{name: "duplicate", migrations: []Migration{{Version: 1, Name: "a", Apply: noop}, {Version: 1, Name: "a2", Apply: noop}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Migrate(context.Background(), tt.migrations...)
			if !errors.Is(err, ErrMigrationGap) {
				t.Errorf("Migrate() error = %v, want ErrMigrationGap", err)
			}
		})
	}

	version, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("SchemaVersion() = %d after refused migrations, want 0", version)
	}
}

// TestMigrateNoMigrations verifies behaviour with no migrations.
func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, fstest.MapFS{}, ".")

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	applied, err := db.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if applied != 0 {
		t.Errorf("Migrate() applied %d, want 0", applied)
	}
}

// TestMigrateFailure verifies a failing SQL migration leaves the version unchanged.
func TestMigrateFailure(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"0001_good.sql": &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS good (id INTEGER);")},
		"0002_bad.sql":  &fstest.MapFile{Data: []byte("CREATE TABLE (;")},
	}, ".")

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	applied, err := db.Migrate(ctx)
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("Migrate() error = %v, want ErrExecution", err)
	}
	if applied != 1 {
		t.Errorf("Migrate() applied %d before failing, want 1", applied)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", version)
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  int
		name     string
		ok       bool
	}{
		{filename: "0001_initial.sql", version: 1, name: "initial", ok: true},
		{filename: "12_add_index.sql", version: 12, name: "add_index", ok: true},
		{filename: "0001_initial.up.sql", version: 1, name: "initial.up", ok: true},
		{filename: "initial.sql", ok: false},
		{filename: "0000_zero.sql", ok: false},
		{filename: "abcd_name.sql", ok: false},
		{filename: "0001_.sql", ok: false},
		{filename: "0001_readme.txt", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (version != tt.version || name != tt.name) {
				t.Errorf("parse = %d/%q, want %d/%q", version, name, tt.version, tt.name)
			}
		})
	}
}
