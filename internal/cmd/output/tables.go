package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/agentstation/branchmap/internal/export"
	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

// StatusColor returns the colorized title of a quota status.
func StatusColor(s quota.Status) string {
	switch s {
	case quota.StatusPerfect:
		return color.New(color.FgHiGreen).Sprint(s.Title())
	case quota.StatusDeficit:
		return color.New(color.FgRed).Sprint(s.Title())
	case quota.StatusSurplus:
		return color.New(color.FgYellow).Sprint(s.Title())
	}
	return s.Title()
}

// BranchesData converts catalog branches to table format.
func BranchesData(list []branches.Branch, wide bool) Data {
	headers := []string{"ID", "Name", "Classification", "Quota"}
	if wide {
		headers = append(headers, "Coordinate", "Aliases")
	}

	rows := make([][]string, 0, len(list))
	for _, b := range list {
		row := []string{strconv.Itoa(b.ID), b.Name, string(b.Classification), b.Quota.String()}
		if wide {
			coord := "-"
			if b.Coordinate != nil {
				coord = b.Coordinate.String()
			}
			row = append(row, coord, strings.Join(b.Aliases, ", "))
		}
		rows = append(rows, row)
	}

	align := []Align{AlignRight, AlignLeft, AlignLeft, AlignRight}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// MatchesData converts nearest-branch matches to table format.
func MatchesData(matches []branches.Match) Data {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			strconv.Itoa(m.Branch.ID),
			m.Branch.Name,
			strconv.FormatFloat(m.DistanceKm, 'f', 3, 64),
		})
	}
	return Data{
		Headers:         []string{"ID", "Name", "Distance (km)"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignRight},
	}
}

// AssessmentsData converts the per-branch assessments to table format with
// colorized statuses.
func AssessmentsData(r *reconcile.Report) Data {
	rows := export.AssessmentRows(r)
	for i, a := range r.Assessments {
		rows[i][len(rows[i])-1] = StatusColor(a.Status)
	}
	return Data{
		Headers:         export.AssessmentHeader,
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignLeft},
	}
}

// OutcomesData converts event outcomes to table format.
func OutcomesData(outcomes []reconcile.EventOutcome) Data {
	return Data{Headers: export.OutcomeHeader, Rows: export.OutcomeRows(outcomes)}
}

// WriteReport renders a report as tables. Wide output adds every event, not
// only the ones that need manual validation.
func WriteReport(w io.Writer, r *reconcile.Report, wide bool) error {
	if _, err := fmt.Fprintf(w, "Period %s: %s\n\n", r.Period, r); err != nil {
		return err
	}
	if err := formatTable(w, AssessmentsData(r)); err != nil {
		return err
	}

	outcomes, title := r.NeedsManualValidation(), "Needs manual validation"
	if wide {
		outcomes, title = r.Outcomes, "Events"
	}
	if len(outcomes) > 0 {
		if _, err := fmt.Fprintf(w, "\n%s (%d)\n", title, len(outcomes)); err != nil {
			return err
		}
		if err := formatTable(w, OutcomesData(outcomes)); err != nil {
			return err
		}
	}

	if r.HasErrors() {
		if _, err := fmt.Fprintf(w, "\nRejected records (%d)\n", len(r.Errors)); err != nil {
			return err
		}
		if err := formatTable(w, Data{Headers: export.ErrorHeader, Rows: export.ErrorRows(r.Errors)}); err != nil {
			return err
		}
	}
	for _, warning := range r.Warnings {
		if _, err := fmt.Fprintf(w, "%s %s\n", color.New(color.FgYellow).Sprint("warning:"), warning); err != nil {
			return err
		}
	}
	return nil
}
