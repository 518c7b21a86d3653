// Package resolver assigns every inspection event to one canonical branch
// using an ordered fallback of strategies:
//
//  1. exact label lookup in the catalog
//  2. nearest branch by coordinate, within the configured cutoff
//  3. correlation with same-day events of the other category
//  4. token overlap between a free-text hint and branch names
//
// Events no tier can place are returned as unresolved, never dropped.
//
// Tiers 1 and 2 run across the whole batch before tier 3, and tier 3 only
// anchors on label and coordinate matches, so the outcome does not depend
// on the order of the input.
package resolver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/textnorm"
)

// Resolver holds the read-only lookup structures. It keeps no state between
// calls to Resolve, so one Resolver may serve concurrent runs.
type Resolver struct {
	catalog       *branches.Catalog
	index         *branches.Index
	maxDistanceKm float64
	stopWords     map[string]struct{}
	hintFromLabel bool
	logger        *zerolog.Logger

	// significant name and alias tokens per branch, catalog order
	branchTokens [][]string
}

// New creates a Resolver over catalog. The built-in stop words and the
// catalog's own are always applied; options may add more.
func New(catalog *branches.Catalog, opts ...Option) (*Resolver, error) {
	if catalog == nil {
		return nil, errors.NewValidationError("catalog", nil, "is required")
	}
	r := &Resolver{
		catalog:       catalog,
		index:         branches.NewIndex(catalog),
		maxDistanceKm: constants.DefaultMaxDistanceKm,
		stopWords:     make(map[string]struct{}),
	}
	r.addStopWords(constants.DefaultStopWords)
	r.addStopWords(catalog.StopWords())

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	for _, b := range catalog.All() {
		names := append([]string{b.Name}, b.Aliases...)
		r.branchTokens = append(r.branchTokens, r.significant(strings.Join(names, " ")))
	}
	return r, nil
}

// MaxDistanceKm returns the coordinate-match cutoff in use.
func (r *Resolver) MaxDistanceKm() float64 {
	return r.maxDistanceKm
}

// Resolve assigns a branch to every event. Results are returned in input
// order, one per event. Submission ids are expected to be unique.
func (r *Resolver) Resolve(ctx context.Context, events []inspections.Event) []Result {
	logger := r.loggerFor(ctx)
	results := make([]Result, len(events))

	var pending []int
	for i, ev := range events {
		if res, ok := r.byLabel(ev); ok {
			results[i] = res
			continue
		}
		if res, ok := r.byCoordinate(ev); ok {
			results[i] = res
			continue
		}
		pending = append(pending, i)
	}

	anchors := buildAnchors(events, results)

	for _, i := range pending {
		ev := events[i]
		var notes []string

		res, ok, err := r.byCorrelation(ev, anchors)
		if err != nil {
			notes = append(notes, err.Error())
			if errors.IsAmbiguous(err) {
				logger.Debug().Err(err).Str(logging.FieldSubmission, ev.SubmissionID).Msg("date correlation ambiguous")
			}
		}
		if !ok {
			res, ok = r.byHint(ev)
		}
		if !ok {
			res = Result{
				SubmissionID: ev.SubmissionID,
				Confidence:   ConfidenceUnresolved,
				Note:         unresolvedNote(ev, notes),
			}
		} else if len(notes) > 0 {
			res.Note = strings.Join(notes, "; ")
		}
		results[i] = res
	}

	for i, res := range results {
		e := logger.Debug().
			Str(logging.FieldSubmission, res.SubmissionID).
			Str("confidence", res.Confidence.String()).
			Str(logging.FieldSource, events[i].Source)
		if res.BranchID != nil {
			e = e.Int(logging.FieldBranch, *res.BranchID)
		}
		if res.DistanceKm != nil {
			e = e.Float64("distance_km", *res.DistanceKm)
		}
		e.Msg("event resolved")
	}
	return results
}

func (r *Resolver) loggerFor(ctx context.Context) *zerolog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.FromContext(ctx)
}

func (r *Resolver) byLabel(ev inspections.Event) (Result, bool) {
	if ev.DeclaredLabel == "" {
		return Result{}, false
	}
	b, err := r.catalog.FindByExactLabel(ev.DeclaredLabel)
	if err != nil {
		return Result{}, false
	}
	return assigned(ev, b, ConfidenceExact), true
}

func (r *Resolver) byCoordinate(ev inspections.Event) (Result, bool) {
	if ev.Coordinate == nil {
		return Result{}, false
	}
	b, km, err := r.index.Nearest(*ev.Coordinate, r.maxDistanceKm)
	if err != nil {
		return Result{}, false
	}
	res := assigned(ev, b, ConfidenceCoordinateMatch)
	res.DistanceKm = &km
	return res, true
}

// anchor is a label or coordinate match that same-day events may correlate with.
type anchor struct {
	submissionID string
	branch       branches.Branch
	inspector    string
}

type dayKey struct {
	day      string
	category inspections.Category
}

func buildAnchors(events []inspections.Event, results []Result) map[dayKey][]anchor {
	out := make(map[dayKey][]anchor)
	for i, res := range results {
		ev := events[i]
		if !res.Anchor() || !ev.HasDate() {
			continue
		}
		k := dayKey{day: ev.Day(), category: ev.Category}
		out[k] = append(out[k], anchor{
			submissionID: ev.SubmissionID,
			branch:       branches.Branch{ID: *res.BranchID, Name: res.BranchName},
			inspector:    ev.InspectorKey(),
		})
	}
	return out
}

// byCorrelation implements tier 3. It returns an AmbiguousCorrelationError
// when the same-day events span several branches and the inspector does not
// narrow them down to one.
func (r *Resolver) byCorrelation(ev inspections.Event, anchors map[dayKey][]anchor) (Result, bool, error) {
	if !ev.HasDate() {
		return Result{}, false, nil
	}
	candidates := anchors[dayKey{day: ev.Day(), category: ev.Category.Other()}]
	if len(candidates) == 0 {
		return Result{}, false, nil
	}

	inspector := ev.InspectorKey()
	sameInspector := func(a anchor) bool {
		return inspector != "" && a.inspector == inspector
	}

	chosen := candidates
	if ids := distinctBranches(candidates); len(ids) > 1 {
		chosen = nil
		for _, a := range candidates {
			if sameInspector(a) {
				chosen = append(chosen, a)
			}
		}
		if len(distinctBranches(chosen)) != 1 {
			return Result{}, false, &errors.AmbiguousCorrelationError{
				SubmissionID: ev.SubmissionID,
				Day:          ev.Day(),
				BranchIDs:    ids,
			}
		}
	}

	res := assigned(ev, chosen[0].branch, ConfidenceDateCorrelated)
	for _, a := range chosen {
		res.CorrelatedWith = append(res.CorrelatedWith, a.submissionID)
		if sameInspector(a) {
			res.InspectorMatch = true
		}
	}
	slices.Sort(res.CorrelatedWith)
	return res, true, nil
}

func distinctBranches(anchors []anchor) []int {
	var ids []int
	for _, a := range anchors {
		if !slices.Contains(ids, a.branch.ID) {
			ids = append(ids, a.branch.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// byHint implements tier 4: the branch sharing the most significant tokens
// with the hint wins, ties going to the earlier branch in the catalog.
func (r *Resolver) byHint(ev inspections.Event) (Result, bool) {
	text := ev.Hint
	if text == "" && r.hintFromLabel {
		text = ev.DeclaredLabel
	}
	tokens := r.significant(text)
	if len(tokens) == 0 {
		return Result{}, false
	}

	all := r.catalog.All()
	bestPos, bestShared := -1, []string(nil)
	for pos, names := range r.branchTokens {
		var shared []string
		for _, tok := range tokens {
			if slices.Contains(names, tok) {
				shared = append(shared, tok)
			}
		}
		if len(shared) > len(bestShared) {
			bestPos, bestShared = pos, shared
		}
	}
	if bestPos < 0 {
		return Result{}, false
	}

	res := assigned(ev, all[bestPos], ConfidenceTextHint)
	res.MatchedTokens = bestShared
	return res, true
}

// significant returns the distinct folded tokens of s that are long enough
// to count and are not stop words.
func (r *Resolver) significant(s string) []string {
	var out []string
	for _, tok := range textnorm.Tokens(s) {
		if len([]rune(tok)) < constants.MinSignificantTokenLength {
			continue
		}
		if _, stop := r.stopWords[tok]; stop {
			continue
		}
		if !slices.Contains(out, tok) {
			out = append(out, tok)
		}
	}
	return out
}

func assigned(ev inspections.Event, b branches.Branch, c Confidence) Result {
	id := b.ID
	return Result{
		SubmissionID: ev.SubmissionID,
		BranchID:     &id,
		BranchName:   b.Name,
		Confidence:   c,
	}
}

func unresolvedNote(ev inspections.Event, notes []string) string {
	var reasons []string
	if ev.DeclaredLabel != "" {
		reasons = append(reasons, fmt.Sprintf("label %q not in catalog", ev.DeclaredLabel))
	}
	if ev.Coordinate != nil {
		reasons = append(reasons, fmt.Sprintf("no branch near %s", ev.Coordinate))
	}
	reasons = append(reasons, notes...)
	if ev.Hint != "" {
		reasons = append(reasons, fmt.Sprintf("hint %q matched no branch", ev.Hint))
	}
	if len(reasons) == 0 {
		return "nothing to match on"
	}
	return strings.Join(reasons, "; ")
}
