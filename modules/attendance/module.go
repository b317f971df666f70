package attendance

import (
	"embed"
)

//go:embed infrastructure/persistence/schema/attendance-schema.sql
var MigrationFiles embed.FS

const SchemaFile = "infrastructure/persistence/schema/attendance-schema.sql"
