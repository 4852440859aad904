// Package migrations embeds the intercom's SQL migrations into the binary
// and registers them with the database package on import.
package migrations

import (
	"embed"

	"github.com/nerrad567/intercom-core/internal/infrastructure/database"
)

//go:embed *.up.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
