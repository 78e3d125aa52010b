// Package database embeds the SQL migration set so the API server and the
// repairctl CLI can apply schema changes without shipping loose files.
package database

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS
