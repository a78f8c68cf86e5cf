package controller

import "errors"

var (
	// ErrNoPrimaryKey is returned for entities with no managed fields.
	ErrNoPrimaryKey = errors.New("controller: entity has no primary key")

	// ErrUnknownField is returned when a where-field is not a managed field.
	ErrUnknownField = errors.New("controller: unknown field")

	// ErrNotRegistered is returned for tables that were never registered.
	ErrNotRegistered = errors.New("controller: table not registered")
)
