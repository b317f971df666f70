package modules

import (
	"context"
	"embed"
	"fmt"

	"github.com/jacksonlee411/attendance-sync/modules/attendance"
	"github.com/jacksonlee411/attendance-sync/modules/hrm"
	"github.com/jacksonlee411/attendance-sync/pkg/composables"
)

// Schema is the embedded DDL of one module.
type Schema struct {
	Module string
	FS     embed.FS
	File   string
}

func (s Schema) SQL() (string, error) {
	b, err := s.FS.ReadFile(s.File)
	if err != nil {
		return "", fmt.Errorf("read %s schema: %w", s.Module, err)
	}
	return string(b), nil
}

// BuiltInSchemas is ordered by dependency.
var BuiltInSchemas = []Schema{
	{Module: "hrm", FS: hrm.MigrationFiles, File: hrm.SchemaFile},
	{Module: "attendance", FS: attendance.MigrationFiles, File: attendance.SchemaFile},
}

// Load applies schemas in order within a single transaction.
func Load(ctx context.Context, schemas ...Schema) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		for _, s := range schemas {
			sql, err := s.SQL()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(txCtx, sql); err != nil {
				return fmt.Errorf("apply %s schema: %w", s.Module, err)
			}
		}
		return nil
	})
}
