// Package migrations embeds the SQL migration files for each supported dialect.
package migrations

import "embed"

// FS contains the per-dialect migration directories embedded at compile time.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
