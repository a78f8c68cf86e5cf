package command

import "errors"

var (
	// ErrInvalidIdentifier is returned when a table or column name is not a
	// plain SQL identifier.
	ErrInvalidIdentifier = errors.New("command: invalid identifier")

	// ErrUnsupportedValue is returned when a value cannot be rendered or
	// bound. Blobs are always rejected by Literal.
	ErrUnsupportedValue = errors.New("command: unsupported value")

	// ErrFieldMismatch is returned when field and value lists differ in length.
	ErrFieldMismatch = errors.New("command: field and value count mismatch")

	// ErrNoFields is returned when a table or row would have no columns.
	ErrNoFields = errors.New("command: no fields")
)
