// Package migrations embeds the schema migrations for the SQLite entity store.
// Files are applied in name order; NNN_name.up.sql is applied once and
// recorded in schema_migrations.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
