package migrations

import "embed"

//go:embed sqlite/*.sql
var FS embed.FS

// go:embed cannot reach across package boundaries, so the migration files
// live next to this file and other packages read them through FS.
