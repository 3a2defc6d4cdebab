// Package migrations embeds the DeviceHub SQLite schema into the binary.
//
// Importing this package (usually with a blank import from main) registers
// the files with the database package so Migrate works without the .sql
// files present on disk.
package migrations

import (
	"embed"

	"github.com/devicehub/devicehub-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
