// Package migrations holds the goose SQL migrations for the devapi database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
