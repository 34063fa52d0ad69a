// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// Files holds every *.sql migration in name order.
//
//go:embed *.sql
var Files embed.FS
