// Package reconcile runs the whole pipeline for one batch of raw inspection
// records: normalization, branch resolution, quota assessment, and the
// assembly of an immutable report.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/resolver"
)

// Reconciler turns raw records into a Report. It keeps no state between
// runs; each call to Run owns its own accumulators.
type Reconciler struct {
	catalog      *branches.Catalog
	resolver     *resolver.Resolver
	resolverOpts []resolver.Option
	normalizer   *inspections.Normalizer
	period       quota.Period
	periodSet    bool
	now          func() time.Time
	logger       *zerolog.Logger
}

// New creates a Reconciler over a loaded catalog.
func New(catalog *branches.Catalog, opts ...Option) (*Reconciler, error) {
	if catalog == nil {
		return nil, errors.NewValidationError("catalog", nil, "is required")
	}
	r := &Reconciler{
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.normalizer == nil {
		r.normalizer = inspections.NewNormalizer()
	}
	if !r.periodSet {
		r.period = quota.Year(r.now().Year(), time.UTC)
	}
	if r.logger != nil {
		r.resolverOpts = append(r.resolverOpts, resolver.WithLogger(r.logger))
	}

	res, err := resolver.New(catalog, r.resolverOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}
	r.resolver = res
	return r, nil
}

// Catalog returns the catalog the reconciler resolves against.
func (r *Reconciler) Catalog() *branches.Catalog {
	return r.catalog
}

// Period returns the reporting period.
func (r *Reconciler) Period() quota.Period {
	return r.period
}

// Run reconciles one batch. Records that fail normalization are reported in
// Report.Errors and do not affect the others. The only error returned is a
// cancelled context.
func (r *Reconciler) Run(ctx context.Context, raws []inspections.RawRecord) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logging.WithRun(ctx, runID)
	logger := r.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	} else {
		l := logger.With().Str(logging.FieldRun, runID).Logger()
		logger = &l
	}

	report := &Report{
		RunID:         runID,
		GeneratedAt:   utc.New(r.now()),
		Period:        r.period,
		MaxDistanceKm: r.resolver.MaxDistanceKm(),
		Summary: Summary{
			Records:      len(raws),
			ByConfidence: make(map[resolver.Confidence]int, len(resolver.Confidences)),
			ByStatus:     make(map[quota.Status]int, len(quota.Statuses)),
		},
	}

	events := r.normalize(raws, report)
	events = dedupe(events, report)
	report.Summary.Events = len(events)
	report.Summary.Rejected = len(report.Errors)

	results := r.resolver.Resolve(ctx, events)

	validator, err := quota.NewValidator(r.catalog, r.period, events, results)
	if err != nil {
		return nil, fmt.Errorf("assessing quotas: %w", err)
	}

	for _, c := range resolver.Confidences {
		report.Summary.ByConfidence[c] = 0
	}
	for _, s := range quota.Statuses {
		report.Summary.ByStatus[s] = 0
	}

	report.Outcomes = make([]EventOutcome, len(events))
	for i, ev := range events {
		res := results[i]
		report.Outcomes[i] = EventOutcome{
			Event:   ev,
			Result:  res,
			Counted: res.Resolved() && r.period.Contains(ev.OccurredAt),
		}
		report.Summary.ByConfidence[res.Confidence]++
	}
	report.Summary.OutOfPeriod = validator.OutOfPeriod()

	report.Assessments = validator.AssessAll()
	for _, a := range report.Assessments {
		report.Summary.ByStatus[a.Status]++
	}

	logger.Info().
		Int("records", report.Summary.Records).
		Int("events", report.Summary.Events).
		Int("rejected", report.Summary.Rejected).
		Int("unresolved", report.Summary.ByConfidence[resolver.ConfidenceUnresolved]).
		Str("period", r.period.String()).
		Msg("reconciliation complete")

	return report, nil
}

func (r *Reconciler) normalize(raws []inspections.RawRecord, report *Report) []inspections.Event {
	events := make([]inspections.Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := r.normalizer.Normalize(raw)
		if err != nil {
			report.Errors = append(report.Errors, RecordError{
				Index:        i,
				SubmissionID: raw.SubmissionID,
				Source:       raw.Source,
				Row:          raw.Row,
				Message:      err.Error(),
				Err:          err,
			})
			continue
		}
		events = append(events, ev)
	}
	return events
}

// dedupe keeps the last record for each submission id, mirroring the upsert
// the store performs, and records a warning for every replaced record.
func dedupe(events []inspections.Event, report *Report) []inspections.Event {
	last := make(map[string]int, len(events))
	for i, ev := range events {
		last[ev.SubmissionID] = i
	}
	if len(last) == len(events) {
		return events
	}

	out := make([]inspections.Event, 0, len(last))
	for i, ev := range events {
		keep := last[ev.SubmissionID]
		if keep != i {
			report.Summary.Duplicates++
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"submission %s appears more than once; %s replaces %s",
				ev.SubmissionID, describe(events[keep]), describe(ev)))
			continue
		}
		out = append(out, ev)
	}
	return out
}

func describe(ev inspections.Event) string {
	switch {
	case ev.Source != "" && ev.Row > 0:
		return fmt.Sprintf("%s row %d", ev.Source, ev.Row)
	case ev.Source != "":
		return ev.Source
	default:
		return "record without source"
	}
}
