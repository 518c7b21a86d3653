package export

import (
	"fmt"
	"io"

	md "github.com/nao1215/markdown"

	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

// Markdown writes the report as a Markdown document.
func Markdown(w io.Writer, r *reconcile.Report) error {
	doc := md.NewMarkdown(w).
		H1("Inspection reconciliation").
		PlainTextf("%s: %s", md.Bold("Period"), r.Period.String()).LF().
		PlainText(r.String()).LF()

	doc.H2("Summary").
		Table(md.TableSet{Header: []string{"", "Value"}, Rows: SummaryRows(r)})

	doc.H2("Branch quotas")
	counts := make([]string, 0, len(quota.Statuses))
	for _, s := range quota.Statuses {
		counts = append(counts, fmt.Sprintf("%s: %d", s.Title(), r.Summary.ByStatus[s]))
	}
	doc.BulletList(counts...)
	if len(r.Assessments) > 0 {
		doc.Table(md.TableSet{Header: AssessmentHeader, Rows: AssessmentRows(r)})
	}

	doc.H2("Needs manual validation")
	if manual := r.NeedsManualValidation(); len(manual) > 0 {
		doc.Table(md.TableSet{Header: OutcomeHeader, Rows: OutcomeRows(manual)})
	} else {
		doc.PlainText("Every event was assigned to a branch.").LF()
	}

	if r.HasErrors() {
		doc.H2("Rejected records").
			Table(md.TableSet{Header: ErrorHeader, Rows: ErrorRows(r.Errors)})
	}
	if r.HasWarnings() {
		doc.H2("Warnings").BulletList(r.Warnings...)
	}

	return doc.Build()
}
