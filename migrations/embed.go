// Package migrations embeds the golang-migrate SQL files for the schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
