// Package export renders reconciliation reports as Markdown documents and
// Excel workbooks. The row builders are shared with the CLI table output.
package export

import (
	"strconv"
	"strings"

	"github.com/agentstation/branchmap/pkg/reconcile"
	"github.com/agentstation/branchmap/pkg/resolver"
)

// AssessmentHeader is the column set of the per-branch quota table.
var AssessmentHeader = []string{"Branch", "Name", "Classification", "Operational", "Safety", "Expected", "Status"}

// AssessmentRows renders one row per branch, in catalog order.
func AssessmentRows(r *reconcile.Report) [][]string {
	rows := make([][]string, 0, len(r.Assessments))
	for _, a := range r.Assessments {
		rows = append(rows, []string{
			strconv.Itoa(a.BranchID),
			a.BranchName,
			string(a.Classification),
			withDelta(a.OperationalCount, a.OperationalDelta),
			withDelta(a.SafetyCount, a.SafetyDelta),
			strconv.Itoa(a.ExpectedOperational) + "+" + strconv.Itoa(a.ExpectedSafety),
			a.Status.Title(),
		})
	}
	return rows
}

// OutcomeHeader is the column set of the per-event table.
var OutcomeHeader = []string{"Submission", "Category", "Date", "Inspector", "Branch", "Confidence", "Distance (km)", "Counted", "Note"}

// OutcomeRows renders one row per event, in input order.
func OutcomeRows(outcomes []reconcile.EventOutcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			o.Event.SubmissionID,
			o.Event.Category.String(),
			o.Event.Day(),
			o.Event.Inspector,
			branchCell(o.Result),
			o.Result.Confidence.Title(),
			distanceCell(o.Result.DistanceKm),
			yesNo(o.Counted),
			o.Result.Note,
		})
	}
	return rows
}

// ErrorHeader is the column set of the rejected-record table.
var ErrorHeader = []string{"Record", "Submission", "Source", "Row", "Message"}

// ErrorRows renders the rejected records.
func ErrorRows(errs []reconcile.RecordError) [][]string {
	rows := make([][]string, 0, len(errs))
	for _, e := range errs {
		row := ""
		if e.Row > 0 {
			row = strconv.Itoa(e.Row)
		}
		rows = append(rows, []string{strconv.Itoa(e.Index), e.SubmissionID, e.Source, row, e.Message})
	}
	return rows
}

// SummaryRows renders the global counters as label/value pairs.
func SummaryRows(r *reconcile.Report) [][]string {
	s := r.Summary
	rows := [][]string{
		{"Run", r.RunID},
		{"Generated", r.GeneratedAt.Time().Format("2006-01-02 15:04:05 MST")},
		{"Period", r.Period.String()},
		{"Max distance (km)", strconv.FormatFloat(r.MaxDistanceKm, 'f', -1, 64)},
		{"Records", strconv.Itoa(s.Records)},
		{"Events", strconv.Itoa(s.Events)},
		{"Rejected", strconv.Itoa(s.Rejected)},
		{"Duplicates", strconv.Itoa(s.Duplicates)},
		{"Out of period", strconv.Itoa(s.OutOfPeriod)},
	}
	for _, c := range resolver.Confidences {
		rows = append(rows, []string{c.Title(), strconv.Itoa(s.ByConfidence[c])})
	}
	return rows
}

func withDelta(count, delta int) string {
	if delta == 0 {
		return strconv.Itoa(count)
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(count))
	b.WriteString(" (")
	if delta > 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.Itoa(delta))
	b.WriteByte(')')
	return b.String()
}

func branchCell(r resolver.Result) string {
	if r.BranchID == nil {
		return "-"
	}
	return strconv.Itoa(*r.BranchID) + " - " + r.BranchName
}

func distanceCell(d *float64) string {
	if d == nil {
		return ""
	}
	return strconv.FormatFloat(*d, 'f', 3, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
