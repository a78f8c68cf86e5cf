package database

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/mattn/go-sqlite3"
)

// driverName is mattn/go-sqlite3 with its date decoding switched off.
//
// For columns declared DATE, DATETIME or TIMESTAMP mattn turns INTEGER
// cells into UTC instants and parses TEXT cells as UTC, replacing
// unparseable text with the zero time. By then the storage class is gone,
// so text and epoch numbers can no longer be told apart. With the
// conversion off, those cells reach the value package as int64, float64 or
// string and are decoded like any other Timestamp column: numbers as epoch
// seconds, text in the local zone.
const driverName = "sqlite3_managedmodel"

func init() {
	sql.Register(driverName, &plainDateDriver{})
}

type plainDateDriver struct {
	sqlite3.SQLiteDriver
}

func (d *plainDateDriver) Open(dsn string) (driver.Conn, error) {
	c, err := d.SQLiteDriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &plainDateConn{SQLiteConn: c.(*sqlite3.SQLiteConn)}, nil
}

type plainDateConn struct {
	*sqlite3.SQLiteConn
}

func (c *plainDateConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *plainDateConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	s, err := c.SQLiteConn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &plainDateStmt{SQLiteStmt: s.(*sqlite3.SQLiteStmt)}, nil
}

func (c *plainDateConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return plainDates(c.SQLiteConn.QueryContext(ctx, query, args))
}

type plainDateStmt struct {
	*sqlite3.SQLiteStmt
}

func (s *plainDateStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return plainDates(s.SQLiteStmt.QueryContext(ctx, args))
}

// plainDates blanks the date declarations on rows before the first Next.
// DeclTypes returns the cached slice Next switches on; the declared type
// reported through ColumnTypeDatabaseTypeName is read from SQLite and
// stays intact for classification.
func plainDates(rows driver.Rows, err error) (driver.Rows, error) {
	if err != nil {
		return nil, err
	}
	if r, ok := rows.(*sqlite3.SQLiteRows); ok {
		decl := r.DeclTypes()
		for i, t := range decl {
			switch t {
			case "date", "datetime", "timestamp":
				decl[i] = ""
			}
		}
	}
	return rows, nil
}
