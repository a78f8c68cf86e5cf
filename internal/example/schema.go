package example

import (
	"context"

	"github.com/quells/managedmodel/internal/controller"
	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/internal/model"
)

// Entities returns constructors for every demo entity, for registration
// with a controller.
func Entities() []func() model.Entity {
	return []func() model.Entity{
		func() model.Entity { return &People{} },
		func() model.Entity { return &Person{} },
	}
}

// Schema1 creates the People and Person tables, indexes Person.dateCreated
// and makes Person.id unique.
func Schema1() database.Migration {
	return database.Migration{
		Version: 1,
		Name:    "people",
		Apply: func(ctx context.Context, ex database.Executor) error {
			for _, e := range []model.Entity{&People{}, &Person{}} {
				if err := controller.CreateTable(ctx, ex, e); err != nil {
					return err
				}
			}
			if err := controller.CreateIndex(ctx, ex, &Person{}, "dateCreated", false); err != nil {
				return err
			}
			return controller.CreateIndex(ctx, ex, &Person{}, "id", true)
		},
	}
}
