// Package quota compares the inspections each branch received in a reporting
// period against the quota its classification (or override) requires.
package quota

import (
	"strconv"

	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/resolver"
)

// Status is the outcome of a quota assessment.
type Status string

// String returns the string representation of a status.
func (s Status) String() string {
	return string(s)
}

// Quota statuses.
const (
	StatusPerfect Status = "perfect"
	StatusDeficit Status = "deficit"
	StatusSurplus Status = "surplus"
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusPerfect, StatusDeficit, StatusSurplus}

// Title returns the display name used in reports.
func (s Status) Title() string {
	switch s {
	case StatusPerfect:
		return "Perfect"
	case StatusDeficit:
		return "Deficit"
	case StatusSurplus:
		return "Surplus"
	}
	return string(s)
}

// Classify derives the status from counts and expectations. Both categories
// must match exactly to be Perfect. A short total is a Deficit; anything else
// is a Surplus, including one category over and the other under.
func Classify(operational, safety int, expected branches.Quota) Status {
	switch {
	case operational == expected.Operational && safety == expected.Safety:
		return StatusPerfect
	case operational+safety < expected.Total():
		return StatusDeficit
	default:
		return StatusSurplus
	}
}

// Assessment is the quota check for one branch.
type Assessment struct {
	BranchID            int                     `json:"branch_id" yaml:"branch_id"`
	BranchName          string                  `json:"branch_name" yaml:"branch_name"`
	Classification      branches.Classification `json:"classification" yaml:"classification"`
	OperationalCount    int                     `json:"operational_count" yaml:"operational_count"`
	SafetyCount         int                     `json:"safety_count" yaml:"safety_count"`
	ExpectedOperational int                     `json:"expected_operational" yaml:"expected_operational"`
	ExpectedSafety      int                     `json:"expected_safety" yaml:"expected_safety"`

	// Deltas are count minus quota: negative is missing, positive is extra.
	OperationalDelta int    `json:"operational_delta" yaml:"operational_delta"`
	SafetyDelta      int    `json:"safety_delta" yaml:"safety_delta"`
	Status           Status `json:"status" yaml:"status"`
}

// Total returns the number of counted inspections.
func (a Assessment) Total() int {
	return a.OperationalCount + a.SafetyCount
}

// Expected returns the combined quota.
func (a Assessment) Expected() int {
	return a.ExpectedOperational + a.ExpectedSafety
}

type tally struct {
	operational int
	safety      int
}

// Validator counts resolved events per branch within one period. It is
// built once from a finished resolution and then only read.
type Validator struct {
	catalog     *branches.Catalog
	period      Period
	counts      map[int]*tally
	outOfPeriod int
}

// NewValidator tallies events against their resolution results. events and
// results are parallel slices, as returned by resolver.Resolve. Unresolved
// events and events outside the period are not counted.
func NewValidator(catalog *branches.Catalog, period Period, events []inspections.Event, results []resolver.Result) (*Validator, error) {
	if catalog == nil {
		return nil, errors.NewValidationError("catalog", nil, "is required")
	}
	if len(events) != len(results) {
		return nil, errors.NewValidationError("results", len(results), "must have one result per event")
	}

	v := &Validator{catalog: catalog, period: period, counts: make(map[int]*tally)}
	for i, res := range results {
		if res.Confidence == resolver.ConfidenceUnresolved || res.BranchID == nil {
			continue
		}
		ev := events[i]
		if !period.Contains(ev.OccurredAt) {
			v.outOfPeriod++
			continue
		}
		t := v.counts[*res.BranchID]
		if t == nil {
			t = &tally{}
			v.counts[*res.BranchID] = t
		}
		switch ev.Category {
		case inspections.CategoryOperational:
			t.operational++
		case inspections.CategorySafety:
			t.safety++
		}
	}
	return v, nil
}

// Period returns the reporting period.
func (v *Validator) Period() Period {
	return v.period
}

// OutOfPeriod returns how many resolved events fell outside the period.
func (v *Validator) OutOfPeriod() int {
	return v.outOfPeriod
}

// Assess returns the quota assessment of one branch.
func (v *Validator) Assess(branchID int) (Assessment, error) {
	b, err := v.catalog.FindByID(branchID)
	if err != nil {
		return Assessment{}, errors.NewNotFoundError("branch", strconv.Itoa(branchID))
	}
	return v.assess(b), nil
}

// AssessAll returns an assessment for every branch in catalog order,
// including branches that received no inspections.
func (v *Validator) AssessAll() []Assessment {
	all := v.catalog.All()
	out := make([]Assessment, 0, len(all))
	for _, b := range all {
		out = append(out, v.assess(b))
	}
	return out
}

func (v *Validator) assess(b branches.Branch) Assessment {
	var t tally
	if c := v.counts[b.ID]; c != nil {
		t = *c
	}
	return Assessment{
		BranchID:            b.ID,
		BranchName:          b.Name,
		Classification:      b.Classification,
		OperationalCount:    t.operational,
		SafetyCount:         t.safety,
		ExpectedOperational: b.Quota.Operational,
		ExpectedSafety:      b.Quota.Safety,
		OperationalDelta:    t.operational - b.Quota.Operational,
		SafetyDelta:         t.safety - b.Quota.Safety,
		Status:              Classify(t.operational, t.safety, b.Quota),
	}
}
