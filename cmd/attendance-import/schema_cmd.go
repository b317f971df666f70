package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/attendance-sync/modules"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Create the employee and attendance tables if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaApply(cmd.Context(), cmd.OutOrStdout())
		},
	})
	return cmd
}

func runSchemaApply(ctx context.Context, w io.Writer) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, err = a.withDB(ctx)
	if err != nil {
		return err
	}
	if err := modules.Load(ctx, modules.BuiltInSchemas...); err != nil {
		return withCode(exitDB, err)
	}

	applied := make([]string, 0, len(modules.BuiltInSchemas))
	for _, s := range modules.BuiltInSchemas {
		applied = append(applied, s.Module)
	}
	return newLineWriter(w).write(map[string]any{"type": "schema", "applied": applied})
}
