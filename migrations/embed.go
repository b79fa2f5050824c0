// Package migrations embeds the SQL schema for the history database so the
// binary can migrate without the files on disk.
package migrations

import "embed"

// FS holds every *.sql file in this directory at the root of the filesystem.
//
//go:embed *.sql
var FS embed.FS
