// Package spreadsheet reads inspection submissions from .xlsx exports.
// Columns are located by header name, so the exports may order them freely
// and use either the Spanish or the English headings.
package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/textnorm"
)

type field int

const (
	fieldSubmissionID field = iota
	fieldCategory
	fieldDate
	fieldInspector
	fieldBranch
	fieldLat
	fieldLon
	fieldMapLink
	fieldHint
)

var headerAliases = map[string]field{
	"id":               fieldSubmissionID,
	"folio":            fieldSubmissionID,
	"submission":       fieldSubmissionID,
	"submission_id":    fieldSubmissionID,
	"tipo":             fieldCategory,
	"tipo_supervision": fieldCategory,
	"categoria":        fieldCategory,
	"category":         fieldCategory,
	"fecha":            fieldDate,
	"fecha_envio":      fieldDate,
	"date":             fieldDate,
	"submitted_at":     fieldDate,
	"supervisor":       fieldInspector,
	"inspector":        fieldInspector,
	"usuario":          fieldInspector,
	"user":             fieldInspector,
	"sucursal":         fieldBranch,
	"branch":           fieldBranch,
	"lat":              fieldLat,
	"latitud":          fieldLat,
	"latitude":         fieldLat,
	"lon":              fieldLon,
	"lng":              fieldLon,
	"longitud":         fieldLon,
	"longitude":        fieldLon,
	"ubicacion":        fieldMapLink,
	"mapa":             fieldMapLink,
	"map":              fieldMapLink,
	"map_link":         fieldMapLink,
	"location":         fieldMapLink,
	"sucursal_manual":  fieldHint,
	"hint":             fieldHint,
	"branch_hint":      fieldHint,
	"nombre_sucursal":  fieldHint,
}

// headerKey folds "Sucursal Manual" and "sucursal-manual" to "sucursal_manual".
func headerKey(h string) string {
	return strings.Join(textnorm.Tokens(h), "_")
}

// Source reads one workbook.
type Source struct {
	path  string
	sheet string
}

// Option configures a Source.
type Option func(*Source)

// WithSheet selects the sheet to read. The first sheet is read by default.
func WithSheet(name string) Option {
	return func(s *Source) {
		s.sheet = name
	}
}

// New creates a source for the workbook at path.
func New(path string, opts ...Option) *Source {
	s := &Source{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements ingest.Source.
func (s *Source) Name() string {
	return "spreadsheet:" + filepath.Base(s.path)
}

// Fetch implements ingest.Source.
func (s *Source) Fetch(ctx context.Context) ([]inspections.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, errors.WrapIO("open", s.path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := read(f, s.sheet, s.Name(), s.path)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("file", s.path).Int("records", len(records)).Msg("read inspections from spreadsheet")
	return records, nil
}

// Read parses a workbook from r. name is stamped on every record as its source.
func Read(r io.Reader, sheet, name string) ([]inspections.RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.WrapParse("xlsx", name, err)
	}
	defer func() { _ = f.Close() }()
	return read(f, sheet, name, name)
}

func read(f *excelize.File, sheet, source, file string) ([]inspections.RawRecord, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.WrapParse("xlsx", file, err)
	}
	if len(rows) == 0 {
		return nil, errors.NewParseError("xlsx", file, fmt.Sprintf("sheet %q is empty", sheet), nil)
	}

	columns := make(map[field]int)
	for i, h := range rows[0] {
		if fld, ok := headerAliases[headerKey(h)]; ok {
			if _, seen := columns[fld]; !seen {
				columns[fld] = i
			}
		}
	}
	for _, required := range []struct {
		f    field
		name string
	}{{fieldSubmissionID, "submission id"}, {fieldCategory, "category"}} {
		if _, ok := columns[required.f]; !ok {
			return nil, errors.NewParseError("xlsx", file, fmt.Sprintf("sheet %q has no %s column", sheet, required.name), nil)
		}
	}

	var records []inspections.RawRecord
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cell := func(fld field) string {
			idx, ok := columns[fld]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		records = append(records, inspections.RawRecord{
			SubmissionID: cell(fieldSubmissionID),
			Category:     cell(fieldCategory),
			SubmittedAt:  excelDate(cell(fieldDate)),
			Inspector:    cell(fieldInspector),
			BranchLabel:  cell(fieldBranch),
			Latitude:     parseFloat(cell(fieldLat)),
			Longitude:    parseFloat(cell(fieldLon)),
			MapLink:      cell(fieldMapLink),
			BranchHint:   cell(fieldHint),
			Source:       source,
			Row:          i + 2,
		})
	}
	return records, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// excelDate turns a raw date serial ("45809.4166") into a timestamp the
// normalizer understands. Text dates are passed through untouched.
func excelDate(raw string) string {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial <= 0 {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return raw
	}
	return t.Round(time.Second).Format("2006-01-02 15:04:05")
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}
