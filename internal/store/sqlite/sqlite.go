// Package sqlite implements the outcome store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/agentstation/branchmap/internal/store"
	"github.com/agentstation/branchmap/internal/store/migrations"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

const timeLayout = time.RFC3339Nano

// Store is a store.Store backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, errors.WrapResource("open", "store", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("open", "store", path, err)
	}
	if _, err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	logging.FromContext(ctx).Debug().Str("path", path).Msg("sqlite store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const upsertOutcome = `
INSERT INTO outcomes (
    submission_id, run_id, category, occurred_at, inspector, source, row_number,
    branch_id, branch_name, confidence, distance_km, counted, note, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(submission_id) DO UPDATE SET
    run_id = excluded.run_id,
    category = excluded.category,
    occurred_at = excluded.occurred_at,
    inspector = excluded.inspector,
    source = excluded.source,
    row_number = excluded.row_number,
    branch_id = excluded.branch_id,
    branch_name = excluded.branch_name,
    confidence = excluded.confidence,
    distance_km = excluded.distance_km,
    counted = excluded.counted,
    note = excluded.note,
    updated_at = excluded.updated_at`

// UpsertOutcomes writes all outcomes in one transaction.
func (s *Store) UpsertOutcomes(ctx context.Context, runID string, outcomes []reconcile.EventOutcome) error {
	rows := store.NewOutcomeRecords(runID, outcomes, utc.New(s.now()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapResource("begin", "store", runID, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertOutcome)
	if err != nil {
		return errors.WrapResource("prepare", "store", runID, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.SubmissionID, r.RunID, r.Category, formatTime(r.OccurredAt), r.Inspector, r.Source, r.Row,
			r.BranchID, r.BranchName, r.Confidence, r.DistanceKm, r.Counted, r.Note, r.UpdatedAt.Format(timeLayout),
		)
		if err != nil {
			return errors.WrapResource("upsert", "outcome", r.SubmissionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapResource("commit", "store", runID, err)
	}
	logging.FromContext(ctx).Debug().Str(logging.FieldRun, runID).Int("rows", len(rows)).Msg("outcomes upserted")
	return nil
}

// SaveRun upserts the run row and its assessments.
func (s *Store) SaveRun(ctx context.Context, run store.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapResource("begin", "store", run.RunID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (
    run_id, generated_at, period_start, period_end, max_distance_km, records, events,
    resolved, unresolved, rejected, duplicates, out_of_period, perfect, deficit, surplus
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
    generated_at = excluded.generated_at,
    period_start = excluded.period_start,
    period_end = excluded.period_end,
    max_distance_km = excluded.max_distance_km,
    records = excluded.records,
    events = excluded.events,
    resolved = excluded.resolved,
    unresolved = excluded.unresolved,
    rejected = excluded.rejected,
    duplicates = excluded.duplicates,
    out_of_period = excluded.out_of_period,
    perfect = excluded.perfect,
    deficit = excluded.deficit,
    surplus = excluded.surplus`,
		run.RunID, run.GeneratedAt.UTC().Format(timeLayout), formatTime(run.PeriodStart), formatTime(run.PeriodEnd),
		run.MaxDistanceKm, run.Records, run.Events, run.Resolved, run.Unresolved, run.Rejected,
		run.Duplicates, run.OutOfPeriod, run.Perfect, run.Deficit, run.Surplus,
	)
	if err != nil {
		return errors.WrapResource("upsert", "run", run.RunID, err)
	}

	for _, a := range run.Assessments {
		_, err := tx.ExecContext(ctx, `
INSERT INTO assessments (
    run_id, branch_id, branch_name, classification, operational_count, safety_count,
    expected_operational, expected_safety, status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, branch_id) DO UPDATE SET
    branch_name = excluded.branch_name,
    classification = excluded.classification,
    operational_count = excluded.operational_count,
    safety_count = excluded.safety_count,
    expected_operational = excluded.expected_operational,
    expected_safety = excluded.expected_safety,
    status = excluded.status`,
			run.RunID, a.BranchID, a.BranchName, string(a.Classification), a.OperationalCount, a.SafetyCount,
			a.ExpectedOperational, a.ExpectedSafety, string(a.Status),
		)
		if err != nil {
			return errors.WrapResource("upsert", "assessment", run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapResource("commit", "store", run.RunID, err)
	}
	return nil
}

// Outcome reads back one stored outcome.
func (s *Store) Outcome(ctx context.Context, submissionID string) (store.OutcomeRecord, error) {
	var (
		r          store.OutcomeRecord
		occurredAt sql.NullString
		updatedAt  string
		branchID   sql.NullInt64
		distance   sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT submission_id, run_id, category, occurred_at, inspector, source, row_number,
       branch_id, branch_name, confidence, distance_km, counted, note, updated_at
FROM outcomes WHERE submission_id = ?`, submissionID).Scan(
		&r.SubmissionID, &r.RunID, &r.Category, &occurredAt, &r.Inspector, &r.Source, &r.Row,
		&branchID, &r.BranchName, &r.Confidence, &distance, &r.Counted, &r.Note, &updatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return store.OutcomeRecord{}, errors.NewNotFoundError("outcome", submissionID)
	}
	if err != nil {
		return store.OutcomeRecord{}, errors.WrapResource("read", "outcome", submissionID, err)
	}

	if occurredAt.Valid {
		t, err := time.Parse(timeLayout, occurredAt.String)
		if err != nil {
			return store.OutcomeRecord{}, errors.WrapParse("time", "occurred_at", err)
		}
		r.OccurredAt = &t
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return store.OutcomeRecord{}, errors.WrapParse("time", "updated_at", err)
	}
	if branchID.Valid {
		id := int(branchID.Int64)
		r.BranchID = &id
	}
	if distance.Valid {
		d := distance.Float64
		r.DistanceKm = &d
	}
	return r, nil
}

// CountOutcomes returns the number of stored outcome rows.
func (s *Store) CountOutcomes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n); err != nil {
		return 0, errors.WrapResource("count", "outcome", "", err)
	}
	return n, nil
}

// dsn maps ":memory:" to a uniquely named shared-cache database so every
// pooled connection sees the same schema.
func dsn(path string) string {
	if path == ":memory:" {
		return "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
