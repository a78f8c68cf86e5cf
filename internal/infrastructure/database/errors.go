package database

import (
	"errors"
	"fmt"
)

// Domain errors for the database package.
//
// Check them with errors.Is():
//
//	if errors.Is(err, database.ErrExecution) {
//	    // the backend rejected the statement while running it
//	}
var (
	// ErrNotInitialized is returned by every call on a DB whose backing
	// file could not be provisioned, or on a zero DB.
	ErrNotInitialized = errors.New("database: not initialized")

	// ErrProvisioning is wrapped by ProvisioningError.
	ErrProvisioning = errors.New("database: provisioning failed")

	// ErrPrepare is returned when the backend cannot compile a statement.
	ErrPrepare = errors.New("database: prepare failed")

	// ErrExecution is returned when a compiled statement fails while running.
	ErrExecution = errors.New("database: execution failed")

	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("database: closed")

	// ErrVersionRegression is returned when the schema version would decrease.
	ErrVersionRegression = errors.New("database: schema version cannot decrease")

	// ErrMigrationGap is returned when migration versions are not contiguous
	// from 1 or a version appears twice.
	ErrMigrationGap = errors.New("database: migration versions not contiguous")

	// ErrInvalidMigration is returned for migrations with no version or no body.
	ErrInvalidMigration = errors.New("database: invalid migration")
)

// Statement operations reported in StatementError.Op.
const (
	OpPrepare = "prepare"
	OpExecute = "execute"
)

// StatementError reports a statement the backend rejected. The message
// carries the backend's own diagnostic text.
type StatementError struct {
	Op  string // OpPrepare or OpExecute
	SQL string
	Err error
}

// Error implements error.
func (e *StatementError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.SQL, e.Err)
}

// Unwrap exposes both the phase sentinel and the driver error.
func (e *StatementError) Unwrap() []error {
	phase := ErrExecution
	if e.Op == OpPrepare {
		phase = ErrPrepare
	}
	return []error{phase, e.Err}
}

// ProvisioningError reports that the template database could not be copied
// into place. The DB it accompanies refuses every call with ErrNotInitialized.
type ProvisioningError struct {
	Path     string
	Template string
	Err      error
}

// Error implements error.
func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s from template %s: %v", e.Path, e.Template, e.Err)
}

// Unwrap exposes ErrProvisioning and the underlying cause.
func (e *ProvisioningError) Unwrap() []error {
	return []error{ErrProvisioning, e.Err}
}
