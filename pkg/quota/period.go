package quota

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/errors"
)

// Period is the half-open interval [Start, End) inspections are counted in.
// A zero bound leaves that side open; the zero Period counts everything.
type Period struct {
	Start time.Time `json:"start,omitzero" yaml:"start,omitempty"`
	End   time.Time `json:"end,omitzero" yaml:"end,omitempty"`
}

// Year returns the calendar year y in loc.
func Year(y int, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(1, 0, 0)}
}

// ParseDays builds a period from inclusive first and last days in the
// "2006-01-02" layout. Either may be empty to leave that side open.
func ParseDays(first, last string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	var p Period
	if s := strings.TrimSpace(first); s != "" {
		t, err := time.ParseInLocation(constants.DayLayout, s, loc)
		if err != nil {
			return Period{}, errors.NewValidationError("period.start", first, "must be a YYYY-MM-DD date")
		}
		p.Start = t
	}
	if s := strings.TrimSpace(last); s != "" {
		t, err := time.ParseInLocation(constants.DayLayout, s, loc)
		if err != nil {
			return Period{}, errors.NewValidationError("period.end", last, "must be a YYYY-MM-DD date")
		}
		p.End = t.AddDate(0, 0, 1)
	}
	if !p.Start.IsZero() && !p.End.IsZero() && !p.Start.Before(p.End) {
		return Period{}, errors.NewValidationError("period", fmt.Sprintf("%s..%s", first, last), "start must not be after end")
	}
	return p, nil
}

// Bounded reports whether either side of the period is closed.
func (p Period) Bounded() bool {
	return !p.Start.IsZero() || !p.End.IsZero()
}

// Contains reports whether t falls inside the period. An unknown (zero) time
// is only inside an unbounded period.
func (p Period) Contains(t time.Time) bool {
	if t.IsZero() {
		return !p.Bounded()
	}
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && !t.Before(p.End) {
		return false
	}
	return true
}

// String renders the period with inclusive days, "2025-01-01..2025-12-31".
func (p Period) String() string {
	if !p.Bounded() {
		return "all time"
	}
	first, last := "", ""
	if !p.Start.IsZero() {
		first = p.Start.Format(constants.DayLayout)
	}
	if !p.End.IsZero() {
		last = p.End.AddDate(0, 0, -1).Format(constants.DayLayout)
	}
	return first + ".." + last
}
