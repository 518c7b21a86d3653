// Package postgres implements the outcome store on PostgreSQL through pgx.
package postgres

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/agentstation/utc"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/agentstation/branchmap/internal/store"
	"github.com/agentstation/branchmap/internal/store/migrations"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
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

// Open connects to dsn, applies pending migrations and returns the store.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.NewConfigError("store", "invalid postgres dsn", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	if err := migrate(ctx, poolConfig.ConnConfig); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WrapResource("open", "store", "postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WrapResource("open", "store", "postgres", err)
	}

	s := &Store{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	logging.FromContext(ctx).Debug().Str("host", poolConfig.ConnConfig.Host).Msg("postgres store opened")
	return s, nil
}

// migrate runs goose over a short-lived database/sql handle.
func migrate(ctx context.Context, cfg *pgx.ConnConfig) error {
	db := stdlib.OpenDB(*cfg)
	defer func() { _ = db.Close() }()

	_, err := migrations.Up(ctx, db, migrations.Postgres)
	return err
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const upsertOutcome = `
INSERT INTO outcomes (
    submission_id, run_id, category, occurred_at, inspector, source, row_number,
    branch_id, branch_name, confidence, distance_km, counted, note, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (submission_id) DO UPDATE SET
    run_id = EXCLUDED.run_id,
    category = EXCLUDED.category,
    occurred_at = EXCLUDED.occurred_at,
    inspector = EXCLUDED.inspector,
    source = EXCLUDED.source,
    row_number = EXCLUDED.row_number,
    branch_id = EXCLUDED.branch_id,
    branch_name = EXCLUDED.branch_name,
    confidence = EXCLUDED.confidence,
    distance_km = EXCLUDED.distance_km,
    counted = EXCLUDED.counted,
    note = EXCLUDED.note,
    updated_at = EXCLUDED.updated_at`

// UpsertOutcomes sends all rows in one batch inside a transaction.
func (s *Store) UpsertOutcomes(ctx context.Context, runID string, outcomes []reconcile.EventOutcome) error {
	rows := store.NewOutcomeRecords(runID, outcomes, utc.New(s.now()))

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.WrapResource("begin", "store", runID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertOutcome,
			r.SubmissionID, r.RunID, r.Category, r.OccurredAt, r.Inspector, r.Source, r.Row,
			r.BranchID, r.BranchName, r.Confidence, r.DistanceKm, r.Counted, r.Note, r.UpdatedAt,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return errors.WrapResource("upsert", "outcome", r.SubmissionID, err)
		}
	}
	if err := results.Close(); err != nil {
		return errors.WrapResource("upsert", "store", runID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.WrapResource("commit", "store", runID, err)
	}
	logging.FromContext(ctx).Debug().Str(logging.FieldRun, runID).Int("rows", len(rows)).Msg("outcomes upserted")
	return nil
}

// SaveRun upserts the run row and its assessments.
func (s *Store) SaveRun(ctx context.Context, run store.RunSummary) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.WrapResource("begin", "store", run.RunID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO runs (
    run_id, generated_at, period_start, period_end, max_distance_km, records, events,
    resolved, unresolved, rejected, duplicates, out_of_period, perfect, deficit, surplus
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (run_id) DO UPDATE SET
    generated_at = EXCLUDED.generated_at,
    period_start = EXCLUDED.period_start,
    period_end = EXCLUDED.period_end,
    max_distance_km = EXCLUDED.max_distance_km,
    records = EXCLUDED.records,
    events = EXCLUDED.events,
    resolved = EXCLUDED.resolved,
    unresolved = EXCLUDED.unresolved,
    rejected = EXCLUDED.rejected,
    duplicates = EXCLUDED.duplicates,
    out_of_period = EXCLUDED.out_of_period,
    perfect = EXCLUDED.perfect,
    deficit = EXCLUDED.deficit,
    surplus = EXCLUDED.surplus`,
		run.RunID, run.GeneratedAt, run.PeriodStart, run.PeriodEnd, run.MaxDistanceKm,
		run.Records, run.Events, run.Resolved, run.Unresolved, run.Rejected,
		run.Duplicates, run.OutOfPeriod, run.Perfect, run.Deficit, run.Surplus,
	)
	if err != nil {
		return errors.WrapResource("upsert", "run", run.RunID, err)
	}

	for _, a := range run.Assessments {
		_, err := tx.Exec(ctx, `
INSERT INTO assessments (
    run_id, branch_id, branch_name, classification, operational_count, safety_count,
    expected_operational, expected_safety, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (run_id, branch_id) DO UPDATE SET
    branch_name = EXCLUDED.branch_name,
    classification = EXCLUDED.classification,
    operational_count = EXCLUDED.operational_count,
    safety_count = EXCLUDED.safety_count,
    expected_operational = EXCLUDED.expected_operational,
    expected_safety = EXCLUDED.expected_safety,
    status = EXCLUDED.status`,
			run.RunID, a.BranchID, a.BranchName, string(a.Classification), a.OperationalCount, a.SafetyCount,
			a.ExpectedOperational, a.ExpectedSafety, string(a.Status),
		)
		if err != nil {
			return errors.WrapResource("upsert", "assessment", run.RunID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.WrapResource("commit", "store", run.RunID, err)
	}
	return nil
}

// Outcome reads back one stored outcome.
func (s *Store) Outcome(ctx context.Context, submissionID string) (store.OutcomeRecord, error) {
	var r store.OutcomeRecord
	err := s.pool.QueryRow(ctx, `
SELECT submission_id, run_id::text, category, occurred_at, inspector, source, row_number,
       branch_id, branch_name, confidence, distance_km, counted, note, updated_at
FROM outcomes WHERE submission_id = $1`, submissionID).Scan(
		&r.SubmissionID, &r.RunID, &r.Category, &r.OccurredAt, &r.Inspector, &r.Source, &r.Row,
		&r.BranchID, &r.BranchName, &r.Confidence, &r.DistanceKm, &r.Counted, &r.Note, &r.UpdatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return store.OutcomeRecord{}, errors.NewNotFoundError("outcome", submissionID)
	}
	if err != nil {
		return store.OutcomeRecord{}, errors.WrapResource("read", "outcome", submissionID, err)
	}
	return r, nil
}
