package model

import "errors"

// Domain errors for the model package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, model.ErrVetoed) {
//	    // a lifecycle hook refused the operation
//	}
var (
	// ErrUnsupportedField is returned when a managed field points at a type
	// with no semantic mapping.
	ErrUnsupportedField = errors.New("model: unsupported field type")

	// ErrInvalidField is returned when a managed field has an empty name or
	// a nil or non-pointer Ptr.
	ErrInvalidField = errors.New("model: invalid field")

	// ErrDuplicateField is returned when two managed fields share a name.
	ErrDuplicateField = errors.New("model: duplicate field")

	// ErrReservedTable is returned when an entity claims the schema-version table.
	ErrReservedTable = errors.New("model: reserved table name")

	// ErrVetoed is returned when a Before* lifecycle hook rejects an operation.
	ErrVetoed = errors.New("model: operation vetoed")
)
