package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/quells/managedmodel/internal/value"
)

type jobKind int

const (
	jobExec jobKind = iota
	jobQuery
	jobScript
	jobExclusive
)

// job is one unit of work for the worker. reply is buffered so the worker
// never blocks on a caller that stopped waiting.
type job struct {
	kind  jobKind
	ctx   context.Context
	sql   string
	args  []any
	fn    func(Executor) error
	reply chan jobResult
}

type jobResult struct {
	result Result
	rows   []value.Row
	err    error
}

// Executor runs statements. *DB implements it by queueing work for the
// worker; the Executor handed to an Exclusive callback runs directly on
// the worker.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	Query(ctx context.Context, query string, args ...any) ([]value.Row, error)
	ExecScript(ctx context.Context, script string) error
}

// Exec runs one statement that returns no rows.
//
// For statements starting with INSERT, Result.LastInsertID carries the new
// rowid. Rejected statements return a *StatementError.
//
// Parameters:
//   - ctx: Bounds the wait for a queue slot and for the reply. A statement
//     the worker has already started runs to completion.
//   - query: A single SQL statement with ? placeholders
//   - args: Arguments for placeholders
//
// Returns:
//   - Result: Insert rowid and rows affected
//   - error: If the statement is rejected or the DB is unusable
func (db *DB) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	r, err := db.submit(ctx, &job{kind: jobExec, sql: query, args: args})
	return r.result, err
}

// Query runs one statement and returns every row it produces.
//
// Column kinds come from the declared column types, classified once per
// result set. Columns without a declared type, such as expressions, are
// classified from each value's storage class. Zero rows is an empty slice
// and a nil error.
//
// Parameters:
//   - ctx: Same semantics as Exec
//   - query: A single SQL statement with ? placeholders
//   - args: Arguments for placeholders
//
// Returns:
//   - []value.Row: The fetched rows, in cursor order
//   - error: If the statement is rejected or the DB is unusable
func (db *DB) Query(ctx context.Context, query string, args ...any) ([]value.Row, error) {
	r, err := db.submit(ctx, &job{kind: jobQuery, sql: query, args: args})
	return r.rows, err
}

// ExecScript runs a script of one or more semicolon-separated statements
// without arguments. Failures are reported as execution errors.
func (db *DB) ExecScript(ctx context.Context, script string) error {
	_, err := db.submit(ctx, &job{kind: jobScript, sql: script})
	return err
}

// Exclusive runs fn on the worker. No other statement runs until fn
// returns, so a read followed by a dependent write inside fn cannot be
// interleaved with other callers. fn must only use the Executor it is given.
func (db *DB) Exclusive(ctx context.Context, fn func(Executor) error) error {
	_, err := db.submit(ctx, &job{kind: jobExclusive, fn: fn})
	return err
}

func (db *DB) submit(ctx context.Context, j *job) (jobResult, error) {
	if err := db.usable(); err != nil {
		return jobResult{}, err
	}

	j.ctx = context.WithoutCancel(ctx)
	j.reply = make(chan jobResult, 1)

	select {
	case db.jobs <- j:
	case <-db.done:
		return jobResult{}, ErrClosed
	case <-ctx.Done():
		return jobResult{}, ctx.Err()
	}

	select {
	case r := <-j.reply:
		return r, r.err
	case <-db.stopped:
		// The worker may have answered just before exiting.
		select {
		case r := <-j.reply:
			return r, r.err
		default:
			return jobResult{}, ErrClosed
		}
	case <-ctx.Done():
		return jobResult{}, ctx.Err()
	}
}

// run is the worker loop. It drains queued jobs after done is closed so
// that work accepted before Close still completes.
func (db *DB) run() {
	defer db.wg.Done()
	defer close(db.stopped)

	for {
		select {
		case j := <-db.jobs:
			db.handle(j)
		case <-db.done:
			for {
				select {
				case j := <-db.jobs:
					db.handle(j)
				default:
					return
				}
			}
		}
	}
}

func (db *DB) handle(j *job) {
	var r jobResult
	defer func() {
		if p := recover(); p != nil {
			r = jobResult{err: fmt.Errorf("%w: panic: %v", ErrExecution, p)}
			db.log().Error("statement panicked", "sql", j.sql, "panic", p)
		}
		j.reply <- r
	}()

	direct := directExecutor{db: db}
	switch j.kind {
	case jobExec:
		r.result, r.err = direct.Exec(j.ctx, j.sql, j.args...)
	case jobQuery:
		r.rows, r.err = direct.Query(j.ctx, j.sql, j.args...)
	case jobScript:
		r.err = direct.ExecScript(j.ctx, j.sql)
	case jobExclusive:
		r.err = j.fn(direct)
	}
}

// directExecutor runs statements on the connection immediately. It is only
// ever used from the worker goroutine.
type directExecutor struct {
	db *DB
}

func (x directExecutor) Exec(ctx context.Context, query string, args ...any) (res Result, err error) {
	start := time.Now()
	defer func() { x.db.observe(query, start, err) }()

	stmt, err := x.db.sqlDB.PrepareContext(ctx, query)
	if err != nil {
		return Result{}, &StatementError{Op: OpPrepare, SQL: query, Err: err}
	}
	defer stmt.Close() //nolint:errcheck // Finalize errors repeat the exec error

	sqlRes, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return Result{}, &StatementError{Op: OpExecute, SQL: query, Err: err}
	}

	if n, err := sqlRes.RowsAffected(); err == nil {
		res.RowsAffected = n
	}
	if isInsert(query) {
		if id, err := sqlRes.LastInsertId(); err == nil {
			res.LastInsertID = id
		}
	}
	return res, nil
}

func (x directExecutor) Query(ctx context.Context, query string, args ...any) (rows []value.Row, err error) {
	start := time.Now()
	defer func() { x.db.observe(query, start, err) }()

	stmt, err := x.db.sqlDB.PrepareContext(ctx, query)
	if err != nil {
		return nil, &StatementError{Op: OpPrepare, SQL: query, Err: err}
	}
	defer stmt.Close() //nolint:errcheck // Finalize errors repeat the query error

	cursor, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, &StatementError{Op: OpExecute, SQL: query, Err: err}
	}
	defer cursor.Close() //nolint:errcheck // Close error surfaces through Err below

	rows, err = scanRows(cursor)
	if err != nil {
		return nil, &StatementError{Op: OpExecute, SQL: query, Err: err}
	}
	return rows, nil
}

func (x directExecutor) ExecScript(ctx context.Context, script string) (err error) {
	start := time.Now()
	defer func() { x.db.observe(script, start, err) }()

	if _, err := x.db.sqlDB.ExecContext(ctx, script); err != nil {
		return &StatementError{Op: OpExecute, SQL: script, Err: err}
	}
	return nil
}

// scanRows reads every row from the cursor. Declared types are looked up
// once; values from undeclared columns are classified one by one.
func scanRows(cursor *sql.Rows) ([]value.Row, error) {
	types, err := cursor.ColumnTypes()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(types))
	declared := make([]string, len(types))
	kinds := make([]value.Kind, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
		declared[i] = ct.DatabaseTypeName()
		if declared[i] != "" {
			kinds[i] = value.Classify(declared[i])
		}
	}

	raw := make([]any, len(types))
	dest := make([]any, len(types))
	for i := range raw {
		dest[i] = &raw[i]
	}

	rows := []value.Row{}
	for cursor.Next() {
		if err := cursor.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(value.Row, len(names))
		for i, name := range names {
			kind := kinds[i]
			if declared[i] == "" {
				kind = value.KindOf(raw[i])
			}
			row[name] = value.New(raw[i], kind)
		}
		rows = append(rows, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *DB) observe(query string, start time.Time, err error) {
	elapsed := time.Since(start)
	kind, table := describeStatement(query)

	db.executed.Add(1)
	if err != nil {
		db.failed.Add(1)
		db.log().Warn("statement failed", "kind", kind, "table", table, "error", err)
	} else {
		db.log().Debug("statement executed", "kind", kind, "table", table, "elapsed", elapsed)
	}
	db.recorder().WriteStatementMetric(kind, table, elapsed, err)
}

func isInsert(query string) bool {
	q := strings.TrimSpace(query)
	return len(q) >= len("INSERT") && strings.EqualFold(q[:len("INSERT")], "INSERT")
}

// describeStatement extracts the leading keyword and the target table from
// simple single-table SQL. Either may be "" when the text is unusual.
func describeStatement(query string) (kind, table string) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return "", ""
	}
	kind = strings.ToUpper(strings.TrimRight(words[0], ";"))

	// Keywords whose next word names the table, in priority order.
	for _, marker := range []string{"ON", "INTO", "FROM", "UPDATE", "EXISTS", "TABLE"} {
		for i := 0; i < len(words)-1; i++ {
			if strings.EqualFold(words[i], marker) {
				return kind, cleanIdentifier(words[i+1])
			}
		}
	}
	return kind, ""
}

func cleanIdentifier(word string) string {
	if i := strings.IndexAny(word, "(;,"); i >= 0 {
		word = word[:i]
	}
	return strings.Trim(word, "`\"[]")
}
