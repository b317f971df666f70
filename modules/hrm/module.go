package hrm

import (
	"embed"
)

//go:embed infrastructure/persistence/schema/hrm-schema.sql
var MigrationFiles embed.FS

const SchemaFile = "infrastructure/persistence/schema/hrm-schema.sql"
