// Package migrations embeds the SQL migrations for the working tables of the
// embedded store. Uploaded tables themselves are created at upload time.
package migrations

import "embed"

// FS holds the *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
