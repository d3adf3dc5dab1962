// Package migrations embeds the goose SQL migration files applied at
// startup by db.RunMigrations.
package migrations

import "embed"

// FS holds the embedded .sql migration files, served to goose via
// goose.SetBaseFS.
//
//go:embed *.sql
var FS embed.FS
