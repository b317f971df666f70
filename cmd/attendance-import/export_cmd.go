package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/infrastructure/persistence"
	"github.com/jacksonlee411/attendance-sync/modules/attendance/services"
	hrmservices "github.com/jacksonlee411/attendance-sync/modules/hrm/services"
	"github.com/jacksonlee411/attendance-sync/pkg/constants"
)

type exportOptions struct {
	start     string
	end       string
	employees []string
	statuses  []string
	out       string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger records of a date range to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "First day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last day, YYYY-MM-DD (required)")
	cmd.Flags().StringSliceVar(&opts.employees, "employee", nil, "Restrict to employee ids")
	cmd.Flags().StringSliceVar(&opts.statuses, "status", nil, "Restrict to statuses (VALID, TO_VERIFY, NEEDS_CORRECTION, CORRECTED)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output .xlsx path (required)")

	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func exportParams(opts exportOptions) (*record.FindParams, error) {
	from, to, err := parsePeriod(opts.start, opts.end)
	if err != nil {
		return nil, err
	}
	params := &record.FindParams{
		EmployeeIDs: hrmservices.NormalizeIDs(opts.employees),
		From:        from,
		To:          to,
	}
	for _, raw := range opts.statuses {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		st, err := record.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --status: %w", err))
		}
		params.Statuses = append(params.Statuses, st)
	}
	return params, nil
}

func runExport(ctx context.Context, w io.Writer, opts exportOptions) error {
	params, err := exportParams(opts)
	if err != nil {
		return err
	}
	if strings.TrimSpace(opts.out) == "" {
		return withCode(exitUsage, fmt.Errorf("--out is required"))
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, err = a.withDB(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.out), 0o755); err != nil {
		return withCode(exitUsage, fmt.Errorf("mkdir %s: %w", filepath.Dir(opts.out), err))
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("create %s: %w", opts.out, err))
	}

	n, err := services.NewExcelExportService(persistence.NewAttendanceRecordRepository()).Export(ctx, params, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(opts.out)
		return withCode(exitDB, err)
	}

	return newLineWriter(w).write(map[string]any{
		"type":    "export",
		"path":    opts.out,
		"records": n,
		"start":   params.From.Format(constants.DateLayout),
		"end":     params.To.Format(constants.DateLayout),
	})
}
