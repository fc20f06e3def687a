// Package migrations embeds the SQL schema of the order store.
package migrations

import "embed"

// FS holds the *.up.sql files applied by database.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
