package spreadsheet

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/agentstation/branchmap/pkg/errors"
)

// writeWorkbook saves rows to a new workbook whose first sheet is named sheet.
func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "supervisiones 2025.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestFetch(t *testing.T) {
	path := writeWorkbook(t, "Supervisiones", [][]any{
		{"Folio", "Tipo", "Fecha", "Supervisor", "Sucursal", "Latitud", "Longitud", "Ubicación", "Sucursal Manual", "Comentarios"},
		{"S-1", "Seguridad", "2025-06-01 10:00:00", "Ana López", "35 - Riverside", 25.6866, -100.3161, "", "", "ok"},
		{"S-2", "Operativa", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), "Luis", "", "", "", "https://maps.example.com/@25.1,-100.2,17z", "centrito"},
		{},
		{"S-3", "Operativa", "02/06/2025", "", "", "n/a", "", "", ""},
	})

	s := New(path)
	assert.Equal(t, "spreadsheet:supervisiones 2025.xlsx", s.Name())

	records, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3, "blank rows are skipped")

	r := records[0]
	assert.Equal(t, "S-1", r.SubmissionID)
	assert.Equal(t, "Seguridad", r.Category)
	assert.Equal(t, "2025-06-01 10:00:00", r.SubmittedAt)
	assert.Equal(t, "Ana López", r.Inspector)
	assert.Equal(t, "35 - Riverside", r.BranchLabel)
	require.NotNil(t, r.Latitude)
	assert.InDelta(t, 25.6866, *r.Latitude, 1e-9)
	require.NotNil(t, r.Longitude)
	assert.InDelta(t, -100.3161, *r.Longitude, 1e-9)
	assert.Equal(t, "spreadsheet:supervisiones 2025.xlsx", r.Source)
	assert.Equal(t, 2, r.Row)

	r = records[1]
	assert.Equal(t, "2025-06-02", r.SubmittedAt[:10], "date serials are converted")
	assert.Nil(t, r.Latitude)
	assert.Contains(t, r.MapLink, "@25.1,-100.2")
	assert.Equal(t, "centrito", r.BranchHint)
	assert.Equal(t, 3, r.Row)

	r = records[2]
	assert.Equal(t, "02/06/2025", r.SubmittedAt)
	assert.Nil(t, r.Latitude, "unreadable coordinates are dropped")
	assert.Equal(t, 5, r.Row)
}

func TestFetchSelectsSheet(t *testing.T) {
	path := writeWorkbook(t, "Resumen", [][]any{{"nothing here"}})

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	_, err = f.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Data", "A1", &[]any{"submission_id", "category", "branch"}))
	require.NoError(t, f.SetSheetRow("Data", "A2", &[]any{"X-9", "safety", "Riverside"}))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	_, err = New(path).Fetch(context.Background())
	var parseErr *errors.ParseError
	require.ErrorAs(t, err, &parseErr, "the first sheet lacks the required columns")
	assert.Contains(t, err.Error(), "submission id")

	records, err := New(path, WithSheet("Data")).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "X-9", records[0].SubmissionID)
	assert.Equal(t, "Riverside", records[0].BranchLabel)
}

func TestFetchMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.xlsx")).Fetch(context.Background())
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestRead(t *testing.T) {
	path := writeWorkbook(t, "Hoja1", [][]any{
		{"ID", "Category", "Date", "Inspector", "Branch", "Lat", "Lng", "Map Link", "Hint"},
		{101, "safety", "2025-01-05", "ana", "Riverside", "25.5", "-100.25", "", ""},
	})
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := Read(bytes.NewReader(buf.Bytes()), "", "upload.xlsx")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "101", records[0].SubmissionID)
	assert.Equal(t, "upload.xlsx", records[0].Source)
	require.NotNil(t, records[0].Longitude)
	assert.InDelta(t, -100.25, *records[0].Longitude, 1e-12)

	_, err = Read(bytes.NewReader([]byte("not a workbook")), "", "junk.xlsx")
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestHeaderKey(t *testing.T) {
	assert.Equal(t, "sucursal_manual", headerKey(" Sucursal  Manual "))
	assert.Equal(t, "ubicacion", headerKey("UBICACIÓN"))
	assert.Equal(t, "submission_id", headerKey("Submission-ID"))
}

func TestExcelDate(t *testing.T) {
	assert.Equal(t, "2025-06-01 12:00:00", excelDate("45809.5"))
	assert.Equal(t, "01/06/2025", excelDate("01/06/2025"))
	assert.Empty(t, excelDate(""))
}
