package reconcile_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/geo"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/reconcile"
	"github.com/agentstation/branchmap/pkg/resolver"
)

func f(v float64) *float64 { return &v }

var fixedNow = time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

func newReconciler(t *testing.T, opts ...reconcile.Option) *reconcile.Reconciler {
	t.Helper()
	c, err := branches.New([]branches.Branch{
		{ID: 1, Name: "Riverside", Coordinate: &geo.Coordinate{Lat: 25.000, Lon: -100.000}},
		{ID: 2, Name: "Centrito Valle", Coordinate: &geo.Coordinate{Lat: 25.100, Lon: -100.000}},
		{ID: 7, Name: "Linda Vista", Classification: branches.ClassificationRemote},
	}, branches.WithStopWords("sucursal"))
	require.NoError(t, err)

	opts = append([]reconcile.Option{
		reconcile.WithClock(func() time.Time { return fixedNow }),
		reconcile.WithLogger(logging.NewNopLogger()),
	}, opts...)
	r, err := reconcile.New(c, opts...)
	require.NoError(t, err)
	return r
}

func records() []inspections.RawRecord {
	return []inspections.RawRecord{
		{SubmissionID: "E1", Category: "seguridad", SubmittedAt: "2025-05-02", Latitude: f(25.001), Longitude: f(-100.000), Source: "api", Row: 1},
		{SubmissionID: "E3", Category: "operativa", SubmittedAt: "2025-06-01 09:00:00", BranchLabel: "7 - Linda Vista", Inspector: "Ana", Source: "api", Row: 2},
		{SubmissionID: "E2", Category: "seguridad", SubmittedAt: "2025-06-01 16:30:00", Inspector: "Ana", Source: "api", Row: 3},
		{Category: "seguridad", BranchLabel: "Riverside", Source: "spreadsheet:2025.xlsx", Row: 9},
		{SubmissionID: "E4", Category: "operativa", SubmittedAt: "2025-07-10", BranchHint: "sucursal centrito", Source: "api", Row: 4},
		{SubmissionID: "E5", Category: "operativa", SubmittedAt: "2025-07-11", Source: "api", Row: 5},
		{SubmissionID: "E6", Category: "operativa", SubmittedAt: "2024-12-31", BranchLabel: "Riverside", Source: "api", Row: 6},
	}
}

func TestNew(t *testing.T) {
	_, err := reconcile.New(nil)
	assert.True(t, errors.IsValidationError(err))

	r := newReconciler(t)
	assert.Equal(t, quota.Year(2025, time.UTC), r.Period(), "defaults to the current calendar year")

	c := r.Catalog()
	_, err = reconcile.New(c, reconcile.WithResolverOptions(resolver.WithMaxDistance(-2)))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	r := newReconciler(t)
	report, err := r.Run(context.Background(), records())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.True(t, fixedNow.Equal(report.GeneratedAt.Time()))
	assert.InDelta(t, 3.0, report.MaxDistanceKm, 0)

	t.Run("worked examples", func(t *testing.T) {
		e1, ok := report.Outcome("E1")
		require.True(t, ok)
		assert.Equal(t, resolver.ConfidenceCoordinateMatch, e1.Result.Confidence)
		assert.Equal(t, 1, *e1.Result.BranchID)
		assert.InDelta(t, 0.11, *e1.Result.DistanceKm, 0.005)

		e2, ok := report.Outcome("E2")
		require.True(t, ok)
		assert.Equal(t, resolver.ConfidenceDateCorrelated, e2.Result.Confidence)
		assert.Equal(t, 7, *e2.Result.BranchID)
		assert.True(t, e2.Result.InspectorMatch)
	})

	t.Run("partial failure isolation", func(t *testing.T) {
		require.Len(t, report.Errors, 1)
		rec := report.Errors[0]
		assert.Equal(t, 3, rec.Index)
		assert.Equal(t, "spreadsheet:2025.xlsx", rec.Source)
		assert.Equal(t, 9, rec.Row)
		assert.True(t, errors.IsValidationError(rec))
		assert.Contains(t, rec.Error(), "spreadsheet:2025.xlsx row 9")
		assert.Len(t, report.Outcomes, 6)
	})

	t.Run("summary", func(t *testing.T) {
		s := report.Summary
		assert.Equal(t, 7, s.Records)
		assert.Equal(t, 6, s.Events)
		assert.Equal(t, 1, s.Rejected)
		assert.Equal(t, 0, s.Duplicates)
		assert.Equal(t, 1, s.OutOfPeriod)
		assert.Equal(t, map[resolver.Confidence]int{
			resolver.ConfidenceExact:           2,
			resolver.ConfidenceCoordinateMatch: 1,
			resolver.ConfidenceDateCorrelated:  1,
			resolver.ConfidenceTextHint:        1,
			resolver.ConfidenceUnresolved:      1,
		}, s.ByConfidence)
		assert.Equal(t, map[quota.Status]int{
			quota.StatusPerfect: 0,
			quota.StatusDeficit: 3,
			quota.StatusSurplus: 0,
		}, s.ByStatus)
		assert.Equal(t, 5, s.Resolved())
		assert.Contains(t, report.String(), "6 events (5 resolved, 1 unresolved)")
	})

	t.Run("manual validation list", func(t *testing.T) {
		manual := report.NeedsManualValidation()
		require.Len(t, manual, 1)
		assert.Equal(t, "E5", manual[0].Event.SubmissionID)
		assert.False(t, manual[0].Counted)
	})

	t.Run("out of period events are resolved but not counted", func(t *testing.T) {
		e6, ok := report.Outcome("E6")
		require.True(t, ok)
		assert.True(t, e6.Result.Resolved())
		assert.False(t, e6.Counted)

		a, ok := report.Assessment(1)
		require.True(t, ok)
		assert.Equal(t, 0, a.OperationalCount)
		assert.Equal(t, 1, a.SafetyCount)
	})

	t.Run("assessments cover every branch", func(t *testing.T) {
		require.Len(t, report.Assessments, 3)
		a, ok := report.Assessment(7)
		require.True(t, ok)
		assert.Equal(t, 1, a.OperationalCount)
		assert.Equal(t, 1, a.SafetyCount)
		assert.Equal(t, quota.StatusDeficit, a.Status)
		_, ok = report.Assessment(99)
		assert.False(t, ok)
	})

	t.Run("serializable", func(t *testing.T) {
		data, err := json.Marshal(report)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"confidence":"date_correlated"`)
		assert.Contains(t, string(data), `"by_status"`)
	})
}

func TestRunDeduplicatesSubmissions(t *testing.T) {
	r := newReconciler(t)
	raws := []inspections.RawRecord{
		{SubmissionID: "S-1", Category: "safety", SubmittedAt: "2025-03-01", BranchLabel: "Riverside", Source: "spreadsheet:a.xlsx", Row: 2},
		{SubmissionID: "S-2", Category: "safety", SubmittedAt: "2025-03-01", BranchLabel: "Riverside"},
		{SubmissionID: "S-1", Category: "safety", SubmittedAt: "2025-03-02", BranchLabel: "Centrito Valle", Source: "api", Row: 1},
	}
	report, err := r.Run(context.Background(), raws)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.Events)
	assert.Equal(t, 1, report.Summary.Duplicates)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "api row 1 replaces spreadsheet:a.xlsx row 2")

	o, ok := report.Outcome("S-1")
	require.True(t, ok)
	assert.Equal(t, 2, *o.Result.BranchID)
	assert.Equal(t, "S-2", report.Outcomes[0].Event.SubmissionID)
}

func TestRunIsRepeatable(t *testing.T) {
	r := newReconciler(t)
	first, err := r.Run(context.Background(), records())
	require.NoError(t, err)
	second, err := r.Run(context.Background(), records())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Outcomes, second.Outcomes)
	assert.Equal(t, first.Assessments, second.Assessments)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestRunWithPeriod(t *testing.T) {
	p, err := quota.ParseDays("2025-06-01", "2025-06-30", time.UTC)
	require.NoError(t, err)
	r := newReconciler(t, reconcile.WithPeriod(p))

	report, err := r.Run(context.Background(), records())
	require.NoError(t, err)
	// E2 and E3 fall in June; E1, E4 and E6 do not.
	assert.Equal(t, 3, report.Summary.OutOfPeriod)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newReconciler(t).Run(ctx, records())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunLogsSummary(t *testing.T) {
	tl := logging.NewTestLogger(t)
	r := newReconciler(t, reconcile.WithLogger(tl.Logger))
	_, err := r.Run(context.Background(), records())
	require.NoError(t, err)
	tl.AssertContains(t, "reconciliation complete")
	tl.AssertContains(t, `"rejected":1`)
	tl.AssertContains(t, `"run_id"`)
}
