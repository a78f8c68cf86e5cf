package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// defaultQueueSize is the job queue capacity when Config.QueueSize is unset.
	defaultQueueSize = 64
)

// Logger defines the logging interface used by the DB.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder receives one call per statement run by the worker.
// kind is the leading SQL keyword (INSERT, SELECT, ...) and table is the
// table the statement targets, or "" when it cannot be determined.
type MetricsRecorder interface {
	WriteStatementMetric(kind, table string, elapsed time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) WriteStatementMetric(string, string, time.Duration, error) {}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// Template, when set, supplies the file copied into place at Path if no
	// database exists there yet.
	Template fs.FS

	// TemplateName is the file inside Template to copy.
	TemplateName string

	// QueueSize is the capacity of the statement queue. Callers beyond it
	// block until the worker catches up.
	QueueSize int

	// CompactOnClose runs VACUUM and ANALYZE before the connection closes.
	CompactOnClose bool

	// CompactSchedule is a cron expression for periodic compaction while
	// the database is open. Empty disables it.
	CompactSchedule string
}

// Result reports the outcome of Exec.
type Result struct {
	// LastInsertID is the new rowid for INSERT statements and 0 otherwise.
	LastInsertID int64

	// RowsAffected is the number of rows changed by the statement.
	RowsAffected int64
}

// Stats is a snapshot of the execution channel's counters.
type Stats struct {
	Executed uint64 // statements run by the worker
	Failed   uint64 // statements that returned an error
	Queued   int    // jobs waiting in the queue
	Pool     sql.DBStats
}

// DB is the single gateway to one SQLite file.
//
// All statements run on one worker goroutine in the order they were
// submitted. The *sql.DB handle is never exposed; callers go through
// Exec, Query, ExecScript and Exclusive. Open one DB per file.
type DB struct {
	sqlDB *sql.DB
	path  string

	// initErr is set when provisioning failed. Such a DB has no worker.
	initErr error

	jobs    chan *job
	done    chan struct{} // closed by Close to stop the worker
	stopped chan struct{} // closed by the worker on exit
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	compactOnClose bool
	scheduler      *cron.Cron

	logger  atomic.Value // holds loggerBox
	metrics atomic.Value // holds metricsBox

	executed atomic.Uint64
	failed   atomic.Uint64
}

type loggerBox struct{ Logger }
type metricsBox struct{ MetricsRecorder }

// Open creates the database gateway described by cfg.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Copies cfg.Template into place when no database file exists yet
//  3. Opens the file with a single connection and verifies it with a ping
//  4. Starts the statement worker and, if configured, the compaction schedule
//
// If the template copy fails, Open returns a DB that refuses every call with
// ErrNotInitialized together with a *ProvisioningError. The returned DB is
// still safe to Close.
//
// Parameters:
//   - ctx: Context for the connectivity check
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Database gateway
//   - error: If setup fails
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	if err := provision(cfg); err != nil {
		return &DB{path: cfg.Path, initErr: err}, err
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The worker is the only user of the connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Best effort, file may be created lazily

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	db := &DB{
		sqlDB:          sqlDB,
		path:           cfg.Path,
		jobs:           make(chan *job, queueSize),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
		compactOnClose: cfg.CompactOnClose,
	}
	db.logger.Store(loggerBox{noopLogger{}})
	db.metrics.Store(metricsBox{noopMetrics{}})

	db.wg.Add(1)
	go db.run()

	if cfg.CompactSchedule != "" {
		if err := db.startCompactSchedule(cfg.CompactSchedule); err != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, err
		}
	}

	return db, nil
}

// SetLogger sets the logger used for statement and lifecycle messages.
func (db *DB) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	db.logger.Store(loggerBox{logger})
}

// SetMetrics sets the recorder that receives per-statement timings.
func (db *DB) SetMetrics(m MetricsRecorder) {
	if m == nil {
		m = noopMetrics{}
	}
	db.metrics.Store(metricsBox{m})
}

func (db *DB) log() Logger {
	if b, ok := db.logger.Load().(loggerBox); ok {
		return b.Logger
	}
	return noopLogger{}
}

func (db *DB) recorder() MetricsRecorder {
	if b, ok := db.metrics.Load().(metricsBox); ok {
		return b.MetricsRecorder
	}
	return noopMetrics{}
}

// Close stops the worker and releases the connection.
//
// Statements already queued run before the worker exits. Close is
// idempotent and safe on a nil, zero or never-provisioned DB.
//
// Returns:
//   - error: If compaction or closing the connection fails
func (db *DB) Close() error {
	if db == nil || db.jobs == nil {
		return nil
	}

	db.closeOnce.Do(func() {
		if db.scheduler != nil {
			<-db.scheduler.Stop().Done()
		}

		var compactErr error
		if db.compactOnClose {
			compactErr = db.Compact(context.Background())
		}

		db.closed.Store(true)
		close(db.done)
		db.wg.Wait()

		if err := db.sqlDB.Close(); err != nil {
			db.closeErr = fmt.Errorf("closing database: %w", err)
			return
		}
		if compactErr != nil {
			db.closeErr = fmt.Errorf("compacting on close: %w", compactErr)
		}
		db.log().Info("database closed", "path", db.path)
	})

	return db.closeErr
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	if db == nil {
		return ""
	}
	return db.path
}

// HealthCheck verifies the worker and connection by running SELECT 1.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	rows, err := db.Query(ctx, "SELECT 1 AS ok")
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if len(rows) != 1 || rows[0].Value("ok").Int() != 1 {
		return fmt.Errorf("database health check failed: unexpected result %v", rows)
	}
	return nil
}

// Stats returns the execution counters and connection pool statistics.
func (db *DB) Stats() Stats {
	if db == nil || db.jobs == nil {
		return Stats{}
	}
	return Stats{
		Executed: db.executed.Load(),
		Failed:   db.failed.Load(),
		Queued:   len(db.jobs),
		Pool:     db.sqlDB.Stats(),
	}
}

// usable reports why the DB cannot accept work, or nil.
func (db *DB) usable() error {
	switch {
	case db == nil || db.jobs == nil:
		if db != nil && db.initErr != nil {
			return fmt.Errorf("%w: %w", ErrNotInitialized, db.initErr)
		}
		return ErrNotInitialized
	case db.closed.Load():
		return ErrClosed
	default:
		return nil
	}
}
