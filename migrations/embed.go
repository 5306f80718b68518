// Package migrations holds the numbered SQL schema files applied by
// "healthrecord-server migrate up".
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
