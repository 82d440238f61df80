// Package migrations embeds the Postgres schema.
package migrations

import "embed"

// Files holds the golang-migrate up/down scripts.
//
//go:embed *.sql
var Files embed.FS
