package migrations

import "embed"

// FS embeds the SQL schema files applied at startup, in lexical order.
//
//go:embed *.sql
var FS embed.FS
