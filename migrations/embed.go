// Package migrations embeds SQL migration files into the binary.
//
// The device registry runs its schema migrations at startup without needing
// the SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
