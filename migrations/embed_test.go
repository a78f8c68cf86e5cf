package migrations

import (
	"io/fs"
	"testing"

	"github.com/quells/managedmodel/internal/infrastructure/database"
)

func TestEmbedded(t *testing.T) {
	if database.MigrationsFS == nil {
		t.Fatal("MigrationsFS not registered")
	}

	matches, err := fs.Glob(database.MigrationsFS, "*.sql")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(matches) == 0 {
		t.Error("no SQL migrations embedded")
	}

	data, err := fs.ReadFile(Template(), TemplateName)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", TemplateName, err)
	}
	if len(data) != 0 {
		t.Errorf("template is %d bytes, want an empty database file", len(data))
	}
}
