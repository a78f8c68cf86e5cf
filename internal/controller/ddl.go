package controller

import (
	"context"
	"fmt"

	"github.com/quells/managedmodel/internal/command"
	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/internal/model"
)

// Execer runs a single statement. *database.DB, the Executor a migration
// block receives and every controller Executor satisfy it.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) (database.Result, error)
}

// CreateTable creates e's table through ex if it does not exist. Migration
// blocks use it so their DDL matches what a controller would emit.
func CreateTable(ctx context.Context, ex Execer, e model.Entity) error {
	d, err := describe(e)
	if err != nil {
		return err
	}
	st, err := command.CreateTable(d.Table, d.Fields)
	if err != nil {
		return fmt.Errorf("building create table for %s: %w", d.Table, err)
	}
	if _, err := ex.Exec(ctx, st.SQL); err != nil {
		return fmt.Errorf("creating table %s: %w", d.Table, err)
	}
	return nil
}

// CreateIndex creates an index on one of e's managed fields through ex.
func CreateIndex(ctx context.Context, ex Execer, e model.Entity, field string, unique bool) error {
	d, err := describe(e)
	if err != nil {
		return err
	}
	if _, ok := d.Lookup(field); !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Table, field)
	}
	st, err := command.CreateIndex(d.Table, field, unique)
	if err != nil {
		return fmt.Errorf("building index for %s: %w", d.Table, err)
	}
	if _, err := ex.Exec(ctx, st.SQL); err != nil {
		return fmt.Errorf("creating index %s.%s: %w", d.Table, field, err)
	}
	return nil
}
