// Package controller composes entity reflection, statement generation and
// the database gateway into CRUD operations on entities.
//
// Every operation reflects the entity at call time, so the column order
// comes from the entity's ManagedFields on each call. Entities without a
// primary key are rejected before any statement is built.
//
// Inserting a second entity with an existing primary key fails with the
// backend's constraint error (database.ErrExecution); rows are never
// silently overwritten.
package controller
