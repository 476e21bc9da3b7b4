// Package migrations carries the schema as embedded goose files, one
// directory per dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
