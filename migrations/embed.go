// Package migrations embeds the species store schema for each SQL driver.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql in golang-migrate naming.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Directories within FS.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
