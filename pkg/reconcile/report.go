package reconcile

import (
	"fmt"

	"github.com/agentstation/utc"

	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/resolver"
)

// EventOutcome pairs a normalized event with its resolution.
type EventOutcome struct {
	Event  inspections.Event `json:"event" yaml:"event"`
	Result resolver.Result   `json:"result" yaml:"result"`
	// Counted is false for unresolved events and events outside the period.
	Counted bool `json:"counted" yaml:"counted"`
}

// RecordError is a raw record that could not be normalized. It does not stop
// the run.
type RecordError struct {
	Index        int    `json:"index" yaml:"index"`
	SubmissionID string `json:"submission_id,omitempty" yaml:"submission_id,omitempty"`
	Source       string `json:"source,omitempty" yaml:"source,omitempty"`
	Row          int    `json:"row,omitempty" yaml:"row,omitempty"`
	Message      string `json:"message" yaml:"message"`
	Err          error  `json:"-" yaml:"-"`
}

// Error implements the error interface
func (e RecordError) Error() string {
	where := fmt.Sprintf("record %d", e.Index)
	if e.Source != "" && e.Row > 0 {
		where = fmt.Sprintf("%s row %d", e.Source, e.Row)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Unwrap implements errors.Unwrap
func (e RecordError) Unwrap() error {
	return e.Err
}

// Summary holds the global counters of a run.
type Summary struct {
	Records      int                         `json:"records" yaml:"records"`
	Events       int                         `json:"events" yaml:"events"`
	Rejected     int                         `json:"rejected" yaml:"rejected"`
	Duplicates   int                         `json:"duplicates" yaml:"duplicates"`
	OutOfPeriod  int                         `json:"out_of_period" yaml:"out_of_period"`
	ByConfidence map[resolver.Confidence]int `json:"by_confidence" yaml:"by_confidence"`
	ByStatus     map[quota.Status]int        `json:"by_status" yaml:"by_status"`
}

// Resolved returns the number of events assigned to a branch.
func (s Summary) Resolved() int {
	return s.Events - s.ByConfidence[resolver.ConfidenceUnresolved]
}

// Report is the snapshot of one reconciliation run. The reconciler keeps no
// reference to it once Run returns.
type Report struct {
	RunID         string             `json:"run_id" yaml:"run_id"`
	GeneratedAt   utc.Time           `json:"generated_at" yaml:"generated_at"`
	Period        quota.Period       `json:"period" yaml:"period"`
	MaxDistanceKm float64            `json:"max_distance_km" yaml:"max_distance_km"`
	Outcomes      []EventOutcome     `json:"outcomes" yaml:"outcomes"`
	Assessments   []quota.Assessment `json:"assessments" yaml:"assessments"`
	Errors        []RecordError      `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings      []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Summary       Summary            `json:"summary" yaml:"summary"`
}

// HasErrors returns true if any record was rejected
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there were warnings
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// NeedsManualValidation returns the unresolved events, in input order.
func (r *Report) NeedsManualValidation() []EventOutcome {
	var out []EventOutcome
	for _, o := range r.Outcomes {
		if !o.Result.Resolved() {
			out = append(out, o)
		}
	}
	return out
}

// Outcome returns the outcome of one submission.
func (r *Report) Outcome(submissionID string) (EventOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Event.SubmissionID == submissionID {
			return o, true
		}
	}
	return EventOutcome{}, false
}

// Assessment returns the quota assessment of one branch.
func (r *Report) Assessment(branchID int) (quota.Assessment, bool) {
	for _, a := range r.Assessments {
		if a.BranchID == branchID {
			return a, true
		}
	}
	return quota.Assessment{}, false
}

// String returns a one-line human-readable summary.
func (r *Report) String() string {
	s := r.Summary
	return fmt.Sprintf("%d events (%d resolved, %d unresolved), %d rejected; branches: %d perfect, %d deficit, %d surplus",
		s.Events, s.Resolved(), s.ByConfidence[resolver.ConfidenceUnresolved], s.Rejected,
		s.ByStatus[quota.StatusPerfect], s.ByStatus[quota.StatusDeficit], s.ByStatus[quota.StatusSurplus])
}
