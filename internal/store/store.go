// Package store persists reconciliation outcomes so repeated runs converge on
// one row per submission. Implementations live in the sqlite and postgres
// subpackages; both upsert and never delete.
package store

import (
	"context"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/reconcile"
	"github.com/agentstation/branchmap/pkg/resolver"
)

// Driver names accepted in configuration.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store is a write-through sink for reconciliation runs.
type Store interface {
	// UpsertOutcomes inserts or replaces one row per submission id.
	UpsertOutcomes(ctx context.Context, runID string, outcomes []reconcile.EventOutcome) error
	// SaveRun records the run counters and its per-branch assessments.
	SaveRun(ctx context.Context, run RunSummary) error
	// Outcome reads back the stored row of one submission.
	Outcome(ctx context.Context, submissionID string) (OutcomeRecord, error)
	Close() error
}

// OutcomeRecord is the stored form of one resolved event.
type OutcomeRecord struct {
	SubmissionID string
	RunID        string
	Category     string
	OccurredAt   *time.Time
	Inspector    string
	Source       string
	Row          int
	BranchID     *int
	BranchName   string
	Confidence   string
	DistanceKm   *float64
	Counted      bool
	Note         string
	UpdatedAt    time.Time
}

// RunSummary is the stored form of one report, without its outcomes.
type RunSummary struct {
	RunID         string
	GeneratedAt   time.Time
	PeriodStart   *time.Time
	PeriodEnd     *time.Time
	MaxDistanceKm float64
	Records       int
	Events        int
	Resolved      int
	Unresolved    int
	Rejected      int
	Duplicates    int
	OutOfPeriod   int
	Perfect       int
	Deficit       int
	Surplus       int
	Assessments   []quota.Assessment
}

// NewOutcomeRecords flattens report outcomes into rows stamped with now.
func NewOutcomeRecords(runID string, outcomes []reconcile.EventOutcome, now utc.Time) []OutcomeRecord {
	rows := make([]OutcomeRecord, 0, len(outcomes))
	for _, o := range outcomes {
		row := OutcomeRecord{
			SubmissionID: o.Event.SubmissionID,
			RunID:        runID,
			Category:     o.Event.Category.String(),
			Inspector:    o.Event.Inspector,
			Source:       o.Event.Source,
			Row:          o.Event.Row,
			BranchID:     o.Result.BranchID,
			BranchName:   o.Result.BranchName,
			Confidence:   o.Result.Confidence.String(),
			DistanceKm:   o.Result.DistanceKm,
			Counted:      o.Counted,
			Note:         o.Result.Note,
			UpdatedAt:    now.Time(),
		}
		if o.Event.HasDate() {
			at := o.Event.OccurredAt.UTC()
			row.OccurredAt = &at
		}
		rows = append(rows, row)
	}
	return rows
}

// SummarizeRun extracts the stored run summary from a report.
func SummarizeRun(r *reconcile.Report) RunSummary {
	s := r.Summary
	run := RunSummary{
		RunID:         r.RunID,
		GeneratedAt:   r.GeneratedAt.Time(),
		MaxDistanceKm: r.MaxDistanceKm,
		Records:       s.Records,
		Events:        s.Events,
		Resolved:      s.Resolved(),
		Unresolved:    s.ByConfidence[resolver.ConfidenceUnresolved],
		Rejected:      s.Rejected,
		Duplicates:    s.Duplicates,
		OutOfPeriod:   s.OutOfPeriod,
		Perfect:       s.ByStatus[quota.StatusPerfect],
		Deficit:       s.ByStatus[quota.StatusDeficit],
		Surplus:       s.ByStatus[quota.StatusSurplus],
		Assessments:   r.Assessments,
	}
	if !r.Period.Start.IsZero() {
		start := r.Period.Start.UTC()
		run.PeriodStart = &start
	}
	if !r.Period.End.IsZero() {
		end := r.Period.End.UTC()
		run.PeriodEnd = &end
	}
	return run
}

// Persist writes a whole report through s: outcomes first, then the run.
func Persist(ctx context.Context, s Store, r *reconcile.Report) error {
	if r == nil {
		return errors.NewValidationError("report", nil, "is nil")
	}
	if err := s.UpsertOutcomes(ctx, r.RunID, r.Outcomes); err != nil {
		return err
	}
	return s.SaveRun(ctx, SummarizeRun(r))
}
