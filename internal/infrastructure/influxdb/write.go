package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and status values written for each statement.
const (
	measurementStatements = "statements"

	statusOK    = "ok"
	statusError = "error"
)

// WriteStatementMetric records one executed statement.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Nothing is written once the client is closed.
//
// Parameters:
//   - kind: Leading SQL keyword (SELECT, INSERT, ...)
//   - table: Table the statement addresses, or "" when unknown
//   - elapsed: Time spent preparing and executing on the worker
//   - err: The statement's error, or nil
func (c *Client) WriteStatementMetric(kind, table string, elapsed time.Duration, err error) {
	if !c.IsConnected() {
		return
	}
	c.points.WritePoint(statementPoint(kind, table, elapsed, err, time.Now()))
}

// statementPoint builds the point for one statement. Kind, table and status
// are tags; they are low cardinality for a fixed schema.
func statementPoint(kind, table string, elapsed time.Duration, err error, at time.Time) *write.Point {
	status := statusOK
	if err != nil {
		status = statusError
	}
	if table == "" {
		table = "-"
	}

	return write.NewPoint(
		measurementStatements,
		map[string]string{
			"kind":   kind,
			"table":  table,
			"status": status,
		},
		map[string]any{
			"elapsed_us": elapsed.Microseconds(),
			"count":      int64(1),
		},
		at,
	)
}
