package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/quells/managedmodel/internal/value"
)

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(context.Background(), Config{
			Path:        dbPath,
			WALMode:     true,
			BusyTimeout: 5,
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		// SQLite creates the file lazily; the first statement forces it.
		if _, err := db.Exec(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
	})

	t.Run("returns path", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("rejects invalid compaction schedule", func(t *testing.T) {
		_, err := Open(context.Background(), Config{
			Path:            filepath.Join(t.TempDir(), "test.db"),
			CompactSchedule: "not a schedule",
		})
		if err == nil {
			t.Fatal("Open() error = nil, want schedule error")
		}
	})
}

// TestProvisioning verifies first-run template handling.
func TestProvisioning(t *testing.T) {
	template := fstest.MapFS{"blank.db": &fstest.MapFile{Data: []byte{}}}

	t.Run("copies template when file is absent", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.db")

		db, err := Open(context.Background(), Config{
			Path:         dbPath,
			Template:     template,
			TemplateName: "blank.db",
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("template was not copied: %v", err)
		}
		if err := db.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("keeps existing file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.db")

		first, err := Open(context.Background(), Config{Path: dbPath})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := first.Exec(context.Background(), "CREATE TABLE kept (id INTEGER)"); err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		first.Close() //nolint:errcheck // Test cleanup

		db, err := Open(context.Background(), Config{
			Path:         dbPath,
			Template:     template,
			TemplateName: "blank.db",
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := db.Query(context.Background(), "SELECT * FROM kept"); err != nil {
			t.Errorf("existing table lost: %v", err)
		}
	})

	t.Run("failed copy leaves an uninitialized db", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.db")

		db, err := Open(context.Background(), Config{
			Path:         dbPath,
			Template:     template,
			TemplateName: "missing.db",
		})

		var provErr *ProvisioningError
		if !errors.As(err, &provErr) || !errors.Is(err, ErrProvisioning) {
			t.Fatalf("Open() error = %v, want ProvisioningError", err)
		}
		if db == nil {
			t.Fatal("Open() returned nil DB on provisioning failure")
		}

		if _, err := db.Exec(context.Background(), "SELECT 1"); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("Exec() error = %v, want ErrNotInitialized", err)
		}
		if _, err := db.Query(context.Background(), "SELECT 1"); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("Query() error = %v, want ErrNotInitialized", err)
		}
		if _, err := db.SchemaVersion(context.Background()); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("SchemaVersion() error = %v, want ErrNotInitialized", err)
		}
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
			t.Errorf("partial database file left behind: %v", err)
		}
	})
}

// TestHealthCheck verifies the health check functionality.
func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestClose verifies graceful shutdown.
func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := db.Exec(context.Background(), "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Exec() after Close error = %v, want ErrClosed", err)
	}

	var never *DB
	if err := never.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
	var zero DB
	if err := zero.Close(); err != nil {
		t.Errorf("Close() on zero DB error = %v", err)
	}
	if _, err := zero.Query(context.Background(), "SELECT 1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Query() on zero DB error = %v, want ErrNotInitialized", err)
	}
}

// TestCloseCompacts verifies compaction on close.
func TestCloseCompacts(t *testing.T) {
	db, err := Open(context.Background(), Config{
		Path:           filepath.Join(t.TempDir(), "test.db"),
		CompactOnClose: true,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := db.Exec(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	before := db.Stats().Executed

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if after := db.Stats().Executed; after != before+1 {
		t.Errorf("Executed after close = %d, want %d (compaction script)", after, before+1)
	}
}

// TestExec verifies statement execution results.
func TestExec(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	res, err := db.Exec(ctx, "CREATE TABLE test_table (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
	if err != nil {
		t.Fatalf("Exec() CREATE error = %v", err)
	}
	if res.LastInsertID != 0 {
		t.Errorf("CREATE LastInsertID = %d, want 0", res.LastInsertID)
	}

	for i := 1; i <= 2; i++ {
		res, err = db.Exec(ctx, "insert into test_table (name) values (?)", fmt.Sprintf("row%d", i))
		if err != nil {
			t.Fatalf("Exec() INSERT error = %v", err)
		}
		if res.LastInsertID != int64(i) {
			t.Errorf("LastInsertID = %d, want %d", res.LastInsertID, i)
		}
	}

	res, err = db.Exec(ctx, "UPDATE test_table SET name = ?", "same")
	if err != nil {
		t.Fatalf("Exec() UPDATE error = %v", err)
	}
	if res.RowsAffected != 2 || res.LastInsertID != 0 {
		t.Errorf("UPDATE result = %+v, want 2 rows and no insert id", res)
	}
}

// TestStatementErrors verifies prepare and execution failures are reported.
func TestStatementErrors(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	_, err := db.Exec(ctx, "CREATE TABL broken (id INTEGER)")
	var stmtErr *StatementError
	if !errors.As(err, &stmtErr) || !errors.Is(err, ErrPrepare) {
		t.Fatalf("Exec() error = %v, want prepare StatementError", err)
	}
	if stmtErr.Op != OpPrepare || stmtErr.Err == nil || stmtErr.Err.Error() == "" {
		t.Errorf("StatementError = %+v, want backend message", stmtErr)
	}

	if _, err := db.Exec(ctx, "CREATE TABLE u (id TEXT PRIMARY KEY NOT NULL)"); err != nil {
		t.Fatalf("Exec() CREATE error = %v", err)
	}
	if _, err := db.Exec(ctx, "INSERT INTO u (id) VALUES (?)", "a"); err != nil {
		t.Fatalf("Exec() INSERT error = %v", err)
	}
	_, err = db.Exec(ctx, "INSERT INTO u (id) VALUES (?)", "a")
	if !errors.Is(err, ErrExecution) || errors.Is(err, ErrPrepare) {
		t.Errorf("duplicate key error = %v, want ErrExecution", err)
	}

	if _, err := db.Query(ctx, "SELECT * FROM missing_table"); !errors.Is(err, ErrPrepare) {
		t.Errorf("Query() missing table error = %v, want ErrPrepare", err)
	}

	// The channel keeps working after failures.
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() after failures error = %v", err)
	}
	if stats := db.Stats(); stats.Failed != 3 {
		t.Errorf("Stats().Failed = %d, want 3", stats.Failed)
	}
}

// TestQuery verifies typed row decoding.
func TestQuery(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	if err := db.ExecScript(ctx, `
		CREATE TABLE typed (
			id INTEGER PRIMARY KEY,
			label VARCHAR(40),
			score REAL,
			payload BLOB,
			created DATE,
			note TEXT
		);
		INSERT INTO typed (id, label, score, payload, created, note)
			VALUES (1, 12345, 2.5, x'0001', 1700000000, NULL);
	`); err != nil {
		t.Fatalf("ExecScript() error = %v", err)
	}

	rows, err := db.Query(ctx, "SELECT id, label, score, payload, created, note, id * 2 AS doubled FROM typed")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Query() returned %d rows, want 1", len(rows))
	}
	row := rows[0]

	tests := []struct {
		column string
		kind   value.Kind
	}{
		{column: "id", kind: value.Integer},
		{column: "label", kind: value.Text},
		{column: "score", kind: value.Real},
		{column: "payload", kind: value.Blob},
		{column: "created", kind: value.Timestamp},
		{column: "note", kind: value.Null},
		{column: "doubled", kind: value.Integer},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			v, ok := row.Get(tt.column)
			if !ok {
				t.Fatalf("column %s missing from row %v", tt.column, row)
			}
			if v.Kind() != tt.kind {
				t.Errorf("%s kind = %s, want %s", tt.column, v.Kind(), tt.kind)
			}
		})
	}

	if got := row.Value("label").String(); got != "12345" {
		t.Errorf("label = %q, want 12345", got)
	}
	if got := row.Value("created").Int(); got != 1700000000 {
		t.Errorf("created = %d, want 1700000000", got)
	}
	if got := row.Value("doubled").Int(); got != 2 {
		t.Errorf("doubled = %d, want 2", got)
	}
}

// TestQueryTimestampText verifies text in every date/time declaration is
// read as local wall-clock time and numbers as epoch seconds.
func TestQueryTimestampText(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("EST", -5*60*60)
	t.Cleanup(func() { time.Local = local })

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.ExecScript(ctx, `
		CREATE TABLE stamps (d DATE, t TIME, dt DATETIME, ts TIMESTAMP);
		INSERT INTO stamps VALUES
			('2024-01-02 03:04:05', '2024-01-02 03:04:05', '2024-01-02 03:04:05', '2024-01-02 03:04:05'),
			('garbage', 'garbage', 'garbage', 'garbage'),
			(1700000000, 1700000000, 1700000000, 1700000000);
	`); err != nil {
		t.Fatalf("ExecScript() error = %v", err)
	}

	rows, err := db.Query(ctx, "SELECT d, t, dt, ts FROM stamps ORDER BY rowid")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Query() returned %d rows, want 3", len(rows))
	}

	want := []time.Time{
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local),
		time.Unix(0, 0),
		time.Unix(1700000000, 0),
	}
	for i, row := range rows {
		for _, col := range []string{"d", "t", "dt", "ts"} {
			v := row.Value(col)
			if v.Kind() != value.Timestamp {
				t.Errorf("row %d %s kind = %s, want Timestamp", i, col, v.Kind())
				continue
			}
			got, ok := v.Time()
			if !ok || !got.Equal(want[i]) {
				t.Errorf("row %d %s Time() = %v, %v; want %v", i, col, got, ok, want[i])
			}
		}
	}

	if got := rows[0].Value("dt").String(); got != "2024-01-02 03:04:05" {
		t.Errorf("DATETIME text String() = %q, want 2024-01-02 03:04:05", got)
	}
}

// TestQueryNoRows verifies an empty result is not an error.
func TestQueryNoRows(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if _, err := db.Exec(ctx, "CREATE TABLE People (id TEXT PRIMARY KEY NOT NULL)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	rows, err := db.Query(ctx, "SELECT * FROM People WHERE id = 'abc'")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("Query() = %#v, want empty non-nil slice", rows)
	}
}

// TestQuoteRoundTrip verifies bound text with quotes is stored exactly.
func TestQuoteRoundTrip(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if _, err := db.Exec(ctx, "CREATE TABLE names (name TEXT NOT NULL)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	const name = `O'Brien "the 'quoted'"`
	if _, err := db.Exec(ctx, "INSERT INTO names (name) VALUES (?)", name); err != nil {
		t.Fatalf("Exec() INSERT error = %v", err)
	}

	rows, err := db.Query(ctx, "SELECT name FROM names WHERE name = ?", name)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Value("name").String() != name {
		t.Errorf("Query() = %v, want one row with %q", rows, name)
	}
}

// TestSerialization verifies concurrent callers never interleave.
func TestSerialization(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if _, err := db.Exec(ctx, "CREATE TABLE counter (n INTEGER NOT NULL)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if _, err := db.Exec(ctx, "INSERT INTO counter (n) VALUES (0)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// Read-modify-write inside Exclusive must never lose an update.
				err := db.Exclusive(ctx, func(ex Executor) error {
					rows, err := ex.Query(ctx, "SELECT n FROM counter")
					if err != nil {
						return err
					}
					_, err = ex.Exec(ctx, "UPDATE counter SET n = ?", rows[0].Value("n").Int()+1)
					return err
				})
				if err != nil {
					errs <- err
					return
				}
				if _, err := db.Query(ctx, "SELECT n FROM counter"); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call error = %v", err)
	}

	rows, err := db.Query(ctx, "SELECT n FROM counter")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got := rows[0].Value("n").Int(); got != workers*perWorker {
		t.Errorf("counter = %d, want %d", got, workers*perWorker)
	}
}

// TestExclusivePanic verifies a panicking callback is returned as an error.
func TestExclusivePanic(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	err := db.Exclusive(context.Background(), func(Executor) error {
		panic("boom")
	})
	if !errors.Is(err, ErrExecution) {
		t.Errorf("Exclusive() error = %v, want ErrExecution", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("worker stopped after panic: %v", err)
	}
}

// TestCanceledContext verifies a canceled caller does not block.
func TestCanceledContext(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	release := make(chan struct{})
	started := make(chan struct{})
	go db.Exclusive(context.Background(), func(Executor) error { //nolint:errcheck // Blocker only
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := db.Query(ctx, "SELECT 1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Query() error = %v, want DeadlineExceeded", err)
	}
	close(release)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestStats verifies counters are returned.
func TestStats(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	stats := db.Stats()
	if stats.Pool.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %v, want 1", stats.Pool.MaxOpenConnections)
	}
	if stats.Executed != 1 || stats.Failed != 0 {
		t.Errorf("Stats() = %+v, want 1 executed, 0 failed", stats)
	}
}

type recordedMetric struct {
	kind, table string
	err         error
}

type metricsSpy struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (m *metricsSpy) WriteStatementMetric(kind, table string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, recordedMetric{kind: kind, table: table, err: err})
}

// TestMetrics verifies each statement is reported to the recorder.
func TestMetrics(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	spy := &metricsSpy{}
	db.SetMetrics(spy)

	ctx := context.Background()
	statements := []struct {
		sql  string
		args []any
	}{
		{sql: "CREATE TABLE IF NOT EXISTS Person (id TEXT)"},
		{sql: "INSERT INTO Person (id) VALUES (?)", args: []any{"a"}},
		{sql: "SELECT COUNT(*) AS count FROM Person"},
		{sql: "CREATE INDEX IF NOT EXISTS id ON Person (id)"},
		{sql: "UPDATE Person SET id = ? WHERE id = ?", args: []any{"b", "a"}},
		{sql: "DELETE FROM nowhere WHERE id = ?", args: []any{"b"}},
	}
	for _, st := range statements {
		// Errors are checked through the recorded metrics.
		_, _ = db.Exec(ctx, st.sql, st.args...) //nolint:errcheck // Checked via spy
	}

	want := []recordedMetric{
		{kind: "CREATE", table: "Person"},
		{kind: "INSERT", table: "Person"},
		{kind: "SELECT", table: "Person"},
		{kind: "CREATE", table: "Person"},
		{kind: "UPDATE", table: "Person"},
		{kind: "DELETE", table: "nowhere"},
	}

	spy.mu.Lock()
	defer spy.mu.Unlock()
	if len(spy.metrics) != len(want) {
		t.Fatalf("recorded %d metrics, want %d: %+v", len(spy.metrics), len(want), spy.metrics)
	}
	for i, w := range want {
		got := spy.metrics[i]
		if got.kind != w.kind || got.table != w.table {
			t.Errorf("metric %d = %s/%s, want %s/%s", i, got.kind, got.table, w.kind, w.table)
		}
	}
	if spy.metrics[5].err == nil {
		t.Error("failed DELETE recorded without error")
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(context.Background(), Config{
		Path:        dbPath,
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	return db
}
