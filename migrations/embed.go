// Package migrations embeds the SQL migration files and the blank database
// template into the binary.
//
// Migration files are named NNNN_description.sql and numbered in the same
// sequence as the Go migration blocks passed to database.Migrate.
package migrations

import (
	"embed"

	"github.com/quells/managedmodel/internal/infrastructure/database"
)

// TemplateName is the empty database copied into place on first run.
const TemplateName = "blank.db"

//go:embed *.sql
var migrationsFS embed.FS

//go:embed blank.db
var templateFS embed.FS

// Template returns the filesystem holding TemplateName.
func Template() embed.FS {
	return templateFS
}

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
