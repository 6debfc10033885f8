// Package migrations embeds the portal's PostgreSQL schema changes.
package migrations

import "embed"

// Files holds NNN_name.sql migrations; they are applied in lexical order and
// each must open with a "-- " header line describing it.
//
//go:embed *.sql
var Files embed.FS
