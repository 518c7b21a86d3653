package resolver_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/geo"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/resolver"
)

var june1 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *branches.Catalog {
	t.Helper()
	c, err := branches.New([]branches.Branch{
		{ID: 1, Name: "Riverside", Coordinate: &geo.Coordinate{Lat: 25.000, Lon: -100.000}},
		{ID: 2, Name: "Centrito Valle", Aliases: []string{"Valle Oriente"}, Coordinate: &geo.Coordinate{Lat: 25.100, Lon: -100.000}},
		{ID: 7, Name: "Linda Vista"},
		{ID: 8, Name: "Vista Hermosa", Classification: branches.ClassificationRemote},
	}, branches.WithStopWords("Sucursal", "Grupo Norte"))
	require.NoError(t, err)
	return c
}

func newResolver(t *testing.T, opts ...resolver.Option) *resolver.Resolver {
	t.Helper()
	opts = append([]resolver.Option{resolver.WithLogger(logging.NewNopLogger())}, opts...)
	r, err := resolver.New(testCatalog(t), opts...)
	require.NoError(t, err)
	return r
}

func event(id string, c inspections.Category) inspections.Event {
	return inspections.Event{SubmissionID: id, Category: c}
}

func at(lat, lon float64) *geo.Coordinate {
	return &geo.Coordinate{Lat: lat, Lon: lon}
}

func resolveOne(t *testing.T, r *resolver.Resolver, events []inspections.Event, id string) resolver.Result {
	t.Helper()
	for _, res := range r.Resolve(context.Background(), events) {
		if res.SubmissionID == id {
			return res
		}
	}
	t.Fatalf("no result for %s", id)
	return resolver.Result{}
}

func TestNew(t *testing.T) {
	_, err := resolver.New(nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = resolver.New(testCatalog(t), resolver.WithMaxDistance(-1))
	assert.True(t, errors.IsValidationError(err))

	r := newResolver(t)
	assert.InDelta(t, 3.0, r.MaxDistanceKm(), 0)
}

func TestExactTier(t *testing.T) {
	r := newResolver(t)

	e := event("S-1", inspections.CategorySafety)
	e.DeclaredLabel = "2 - Centrito Valle"
	res := resolveOne(t, r, []inspections.Event{e}, "S-1")

	assert.Equal(t, resolver.ConfidenceExact, res.Confidence)
	require.NotNil(t, res.BranchID)
	assert.Equal(t, 2, *res.BranchID)
	assert.Equal(t, "Centrito Valle", res.BranchName)
	assert.Nil(t, res.DistanceKm)
}

func TestLabelBeatsGeometry(t *testing.T) {
	r := newResolver(t)

	// Standing at Riverside while declaring Centrito Valle.
	e := event("S-1", inspections.CategoryOperational)
	e.DeclaredLabel = "Valle Oriente"
	e.Coordinate = at(25.0001, -100.000)
	res := resolveOne(t, r, []inspections.Event{e}, "S-1")

	assert.Equal(t, resolver.ConfidenceExact, res.Confidence)
	assert.Equal(t, 2, *res.BranchID)
	assert.Nil(t, res.DistanceKm)
}

func TestCoordinateTier(t *testing.T) {
	r := newResolver(t)

	e1 := event("E1", inspections.CategorySafety)
	e1.Coordinate = at(25.001, -100.000)
	res := resolveOne(t, r, []inspections.Event{e1}, "E1")

	assert.Equal(t, resolver.ConfidenceCoordinateMatch, res.Confidence)
	assert.Equal(t, 1, *res.BranchID)
	require.NotNil(t, res.DistanceKm)
	assert.InDelta(t, 0.11, *res.DistanceKm, 0.005)

	t.Run("unknown label falls through to coordinate", func(t *testing.T) {
		e := e1
		e.DeclaredLabel = "Riverside Centro"
		res := resolveOne(t, r, []inspections.Event{e}, "E1")
		assert.Equal(t, resolver.ConfidenceCoordinateMatch, res.Confidence)
	})

	t.Run("beyond the cutoff", func(t *testing.T) {
		e := event("E9", inspections.CategorySafety)
		e.Coordinate = at(25.05, -100.000)
		res := resolveOne(t, r, []inspections.Event{e}, "E9")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
		assert.Nil(t, res.BranchID)
		assert.Contains(t, res.Note, "no branch near")
	})

	t.Run("configured cutoff", func(t *testing.T) {
		wide := newResolver(t, resolver.WithMaxDistance(10))
		e := event("E9", inspections.CategorySafety)
		e.Coordinate = at(25.05, -100.000)
		res := resolveOne(t, wide, []inspections.Event{e}, "E9")
		assert.Equal(t, resolver.ConfidenceCoordinateMatch, res.Confidence)
		assert.LessOrEqual(t, *res.DistanceKm, 10.0)
	})
}

func TestDateCorrelatedTier(t *testing.T) {
	r := newResolver(t)

	e3 := event("E3", inspections.CategoryOperational)
	e3.OccurredAt = june1
	e3.DeclaredLabel = "7"
	e2 := event("E2", inspections.CategorySafety)
	e2.OccurredAt = june1.Add(5 * time.Hour)

	for _, order := range [][]inspections.Event{{e3, e2}, {e2, e3}} {
		res := resolveOne(t, r, order, "E2")
		assert.Equal(t, resolver.ConfidenceDateCorrelated, res.Confidence)
		require.NotNil(t, res.BranchID)
		assert.Equal(t, 7, *res.BranchID)
		assert.Equal(t, []string{"E3"}, res.CorrelatedWith)
		assert.False(t, res.InspectorMatch)
		assert.Nil(t, res.DistanceKm)
	}

	t.Run("shared inspector is recorded", func(t *testing.T) {
		a, b := e3, e2
		a.Inspector = "Ana López"
		b.Inspector = "ANA LOPEZ"
		res := resolveOne(t, r, []inspections.Event{a, b}, "E2")
		assert.Equal(t, resolver.ConfidenceDateCorrelated, res.Confidence)
		assert.True(t, res.InspectorMatch)
	})

	t.Run("same category does not correlate", func(t *testing.T) {
		other := event("E4", inspections.CategoryOperational)
		other.OccurredAt = june1
		res := resolveOne(t, r, []inspections.Event{e3, other}, "E4")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
	})

	t.Run("different day does not correlate", func(t *testing.T) {
		late := e2
		late.OccurredAt = june1.AddDate(0, 0, 1)
		res := resolveOne(t, r, []inspections.Event{e3, late}, "E2")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
	})

	t.Run("undated events do not correlate", func(t *testing.T) {
		undated := e2
		undated.OccurredAt = time.Time{}
		res := resolveOne(t, r, []inspections.Event{e3, undated}, "E2")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
	})

	t.Run("correlated events do not anchor further correlations", func(t *testing.T) {
		chained := event("E5", inspections.CategoryOperational)
		chained.OccurredAt = june1
		res := resolveOne(t, r, []inspections.Event{e3, e2, chained}, "E5")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
	})
}

func TestAmbiguousCorrelation(t *testing.T) {
	r := newResolver(t)

	atRiverside := event("A1", inspections.CategoryOperational)
	atRiverside.OccurredAt = june1
	atRiverside.Inspector = "Ana"
	atRiverside.Coordinate = at(25.0001, -100.000)

	atValle := event("A2", inspections.CategoryOperational)
	atValle.OccurredAt = june1
	atValle.Inspector = "Luis"
	atValle.DeclaredLabel = "Centrito Valle"

	t.Run("inspector narrows the candidates", func(t *testing.T) {
		e := event("S-1", inspections.CategorySafety)
		e.OccurredAt = june1
		e.Inspector = "luis"
		res := resolveOne(t, r, []inspections.Event{atRiverside, atValle, e}, "S-1")
		assert.Equal(t, resolver.ConfidenceDateCorrelated, res.Confidence)
		assert.Equal(t, 2, *res.BranchID)
		assert.True(t, res.InspectorMatch)
		assert.Equal(t, []string{"A2"}, res.CorrelatedWith)
	})

	t.Run("no inspector match is unresolved", func(t *testing.T) {
		e := event("S-1", inspections.CategorySafety)
		e.OccurredAt = june1
		e.Inspector = "Marta"
		res := resolveOne(t, r, []inspections.Event{atRiverside, atValle, e}, "S-1")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
		assert.Nil(t, res.BranchID)
		assert.Contains(t, res.Note, "ambiguous correlation")
		assert.Contains(t, res.Note, "[1 2]")
	})

	t.Run("ambiguity falls through to the hint", func(t *testing.T) {
		e := event("S-1", inspections.CategorySafety)
		e.OccurredAt = june1
		e.Hint = "sucursal riverside"
		res := resolveOne(t, r, []inspections.Event{atRiverside, atValle, e}, "S-1")
		assert.Equal(t, resolver.ConfidenceTextHint, res.Confidence)
		assert.Equal(t, 1, *res.BranchID)
		assert.Contains(t, res.Note, "ambiguous correlation")
	})

	t.Run("ambiguity is logged", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		logged, err := resolver.New(testCatalog(t), resolver.WithLogger(tl.Logger))
		require.NoError(t, err)
		e := event("S-1", inspections.CategorySafety)
		e.OccurredAt = june1
		logged.Resolve(context.Background(), []inspections.Event{atRiverside, atValle, e})
		tl.AssertContains(t, "date correlation ambiguous")
		tl.AssertContains(t, `"confidence":"unresolved"`)
	})
}

func TestTextHintTier(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		hint   string
		wantID int
	}{
		{"Sucursal Centrito", 2},
		{"centrito valle", 2},
		{"valle oriente", 2},
		{"LINDA", 7},
		{"Vista Hermosa", 8},
		// "vista" is shared by two branches; the earlier one in the catalog wins.
		{"vista", 7},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			e := event("H", inspections.CategorySafety)
			e.Hint = tt.hint
			res := resolveOne(t, r, []inspections.Event{e}, "H")
			assert.Equal(t, resolver.ConfidenceTextHint, res.Confidence)
			require.NotNil(t, res.BranchID)
			assert.Equal(t, tt.wantID, *res.BranchID)
			assert.NotEmpty(t, res.MatchedTokens)
		})
	}

	for _, hint := range []string{"Sucursal Grupo Norte", "la", "Cumbres"} {
		t.Run("no match "+hint, func(t *testing.T) {
			e := event("H", inspections.CategorySafety)
			e.Hint = hint
			res := resolveOne(t, r, []inspections.Event{e}, "H")
			assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
		})
	}

	t.Run("label as hint when enabled", func(t *testing.T) {
		e := event("H", inspections.CategorySafety)
		e.DeclaredLabel = "Linda Vista Norte"

		res := resolveOne(t, r, []inspections.Event{e}, "H")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)

		withLabel := newResolver(t, resolver.WithHintFromLabel(true))
		res = resolveOne(t, withLabel, []inspections.Event{e}, "H")
		assert.Equal(t, resolver.ConfidenceTextHint, res.Confidence)
		assert.Equal(t, 7, *res.BranchID)
	})

	t.Run("extra stop words", func(t *testing.T) {
		strict := newResolver(t, resolver.WithStopWords("Linda"))
		e := event("H", inspections.CategorySafety)
		e.Hint = "linda"
		res := resolveOne(t, strict, []inspections.Event{e}, "H")
		assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
	})
}

func TestTextHintIgnoresGenericWordsWithoutConfiguration(t *testing.T) {
	c, err := branches.New([]branches.Branch{
		{ID: 1, Name: "Sucursal Norte"},
		{ID: 2, Name: "Branch Group Sur"},
	})
	require.NoError(t, err)
	r, err := resolver.New(c, resolver.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	for _, hint := range []string{"Sucursal Centro", "branch group", "Restaurante Grupo"} {
		t.Run(hint, func(t *testing.T) {
			e := event("H", inspections.CategorySafety)
			e.Hint = hint
			res := resolveOne(t, r, []inspections.Event{e}, "H")
			assert.Equal(t, resolver.ConfidenceUnresolved, res.Confidence)
			assert.Nil(t, res.BranchID)
			assert.Empty(t, res.MatchedTokens)
		})
	}

	e := event("H", inspections.CategorySafety)
	e.Hint = "sucursal norte"
	res := resolveOne(t, r, []inspections.Event{e}, "H")
	assert.Equal(t, resolver.ConfidenceTextHint, res.Confidence)
	require.NotNil(t, res.BranchID)
	assert.Equal(t, 1, *res.BranchID)
	assert.Equal(t, []string{"norte"}, res.MatchedTokens)
}

func TestResolveKeepsInputOrder(t *testing.T) {
	r := newResolver(t)
	events := []inspections.Event{
		event("U", inspections.CategorySafety),
		{SubmissionID: "X", Category: inspections.CategorySafety, DeclaredLabel: "Riverside"},
	}
	results := r.Resolve(context.Background(), events)
	require.Len(t, results, 2)
	assert.Equal(t, "U", results[0].SubmissionID)
	assert.Equal(t, "X", results[1].SubmissionID)
	assert.False(t, results[0].Resolved())
	assert.True(t, results[1].Resolved())
}

func TestResolveIsOrderIndependent(t *testing.T) {
	r := newResolver(t)

	var events []inspections.Event
	add := func(id string, c inspections.Category, day int, inspector string, mutate func(*inspections.Event)) {
		e := inspections.Event{
			SubmissionID: id,
			Category:     c,
			OccurredAt:   june1.AddDate(0, 0, day),
			Inspector:    inspector,
		}
		if mutate != nil {
			mutate(&e)
		}
		events = append(events, e)
	}
	add("o1", inspections.CategoryOperational, 0, "ana", func(e *inspections.Event) { e.DeclaredLabel = "Riverside" })
	add("s1", inspections.CategorySafety, 0, "ana", nil)
	add("o2", inspections.CategoryOperational, 1, "luis", func(e *inspections.Event) { e.Coordinate = at(25.1001, -100.0) })
	add("o3", inspections.CategoryOperational, 1, "ana", func(e *inspections.Event) { e.DeclaredLabel = "Linda Vista" })
	add("s2", inspections.CategorySafety, 1, "luis", nil)
	add("s3", inspections.CategorySafety, 1, "marta", func(e *inspections.Event) { e.Hint = "hermosa" })
	add("s4", inspections.CategorySafety, 1, "marta", nil)
	add("o4", inspections.CategoryOperational, 2, "", func(e *inspections.Event) { e.Coordinate = at(24.0, -99.0) })
	add("s5", inspections.CategorySafety, 3, "", func(e *inspections.Event) { e.Hint = "valle" })

	byID := func(results []resolver.Result) map[string]resolver.Result {
		m := make(map[string]resolver.Result, len(results))
		for _, res := range results {
			m[res.SubmissionID] = res
		}
		return m
	}

	want := byID(r.Resolve(context.Background(), events))
	assert.Equal(t, resolver.ConfidenceDateCorrelated, want["s1"].Confidence)
	assert.Equal(t, resolver.ConfidenceDateCorrelated, want["s2"].Confidence)
	assert.Equal(t, 2, *want["s2"].BranchID)
	assert.Equal(t, resolver.ConfidenceTextHint, want["s3"].Confidence)
	assert.Equal(t, resolver.ConfidenceUnresolved, want["s4"].Confidence)
	assert.Equal(t, resolver.ConfidenceUnresolved, want["o4"].Confidence)

	rng := rand.New(rand.NewSource(7))
	for range 20 {
		shuffled := append([]inspections.Event(nil), events...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := byID(r.Resolve(context.Background(), shuffled))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("resolution depends on input order (-want +got):\n%s", diff)
		}
	}
}
