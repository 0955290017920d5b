package migrations

import "embed"

// FS holds the SQLite ledger migrations.
//
//go:embed *.sql
var FS embed.FS
