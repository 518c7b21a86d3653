package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

// Sheet names of the exported workbook.
const (
	SheetSummary     = "Summary"
	SheetAssessments = "Branches"
	SheetOutcomes    = "Events"
	SheetManual      = "Manual validation"
	SheetErrors      = "Rejected"
)

// Workbook builds an in-memory workbook for the report. The caller closes it.
func Workbook(r *reconcile.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		_ = f.Close()
		return nil, err
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{SheetSummary, []string{"Field", "Value"}, SummaryRows(r)},
		{SheetAssessments, AssessmentHeader, AssessmentRows(r)},
		{SheetOutcomes, OutcomeHeader, OutcomeRows(r.Outcomes)},
		{SheetManual, OutcomeHeader, OutcomeRows(r.NeedsManualValidation())},
		{SheetErrors, ErrorHeader, ErrorRows(r.Errors)},
	}
	for i, s := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
		if err := writeSheet(f, s.name, s.header, s.rows); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// XLSX writes the report workbook to w.
func XLSX(w io.Writer, r *reconcile.Report) error {
	f, err := Workbook(r)
	if err != nil {
		return errors.WrapResource("build", "workbook", r.RunID, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteTo(w); err != nil {
		return errors.WrapIO("write", "workbook", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
