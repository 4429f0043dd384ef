// Package migrations embeds the chat history schema.
package migrations

import "embed"

// FS holds the ordered migration scripts.
//
//go:embed *.sql
var FS embed.FS
