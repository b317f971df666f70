package services

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jacksonlee411/attendance-sync/modules/attendance/domain/aggregates/record"
	"github.com/jacksonlee411/attendance-sync/pkg/constants"
)

const exportSheet = "Attendance"

var exportHeader = []any{
	"Employee ID", "Employee", "Date", "Normal Hours", "Extra Hours", "Total Hours", "Status", "Last Import",
}

// ExcelExportService writes ledger records to a spreadsheet, one row per
// employee-day.
type ExcelExportService struct {
	repo record.Repository
}

func NewExcelExportService(repo record.Repository) *ExcelExportService {
	return &ExcelExportService{repo: repo}
}

// Export writes every record matched by params to w and returns the row count.
func (s *ExcelExportService) Export(ctx context.Context, params *record.FindParams, w io.Writer) (int, error) {
	records, err := s.repo.List(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to list attendance records: %w", err)
	}
	data, err := RecordsToExcel(records)
	if err != nil {
		return 0, fmt.Errorf("failed to export to Excel: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return len(records), nil
}

func RecordsToExcel(records []record.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			r.EmployeeID(),
			r.EmployeeName(),
			r.Date().Format(constants.DateLayout),
			r.NormalHours().InexactFloat64(),
			r.ExtraHours().InexactFloat64(),
			r.TotalHours().InexactFloat64(),
			string(r.Status()),
			r.LastImportID().String(),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
