// Package inspections defines the inspection event every source is normalized
// into, and the normalizer that turns raw spreadsheet rows and API records
// into events.
package inspections

import (
	"time"

	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/geo"
	"github.com/agentstation/branchmap/pkg/textnorm"
)

// Category is the kind of inspection form that was submitted.
type Category string

// String returns the string representation of a category.
func (c Category) String() string {
	return string(c)
}

const (
	// CategoryOperational is the operational checklist.
	CategoryOperational Category = "operational"
	// CategorySafety is the safety checklist.
	CategorySafety Category = "safety"
)

// Categories lists the known categories in report order.
var Categories = []Category{CategoryOperational, CategorySafety}

// Other returns the complementary category used for date correlation.
func (c Category) Other() Category {
	if c == CategorySafety {
		return CategoryOperational
	}
	return CategorySafety
}

var categorySynonyms = map[string]Category{
	"operational": CategoryOperational,
	"operations":  CategoryOperational,
	"operativa":   CategoryOperational,
	"operativo":   CategoryOperational,
	"operacion":   CategoryOperational,
	"operaciones": CategoryOperational,
	"op":          CategoryOperational,
	"safety":      CategorySafety,
	"seguridad":   CategorySafety,
	"security":    CategorySafety,
	"sanidad":     CategorySafety,
	"inocuidad":   CategorySafety,
}

// ParseCategory maps the category text used by either source ("Supervisión
// Operativa", "SEGURIDAD", "safety") to a Category.
func ParseCategory(s string) (Category, bool) {
	if c, ok := categorySynonyms[textnorm.Fold(s)]; ok {
		return c, true
	}
	for _, tok := range textnorm.Tokens(s) {
		if c, ok := categorySynonyms[tok]; ok {
			return c, true
		}
	}
	return "", false
}

// RawRecord is an inspection as delivered by a source, before normalization.
// Only SubmissionID and Category are required.
type RawRecord struct {
	SubmissionID string   `json:"submission_id" yaml:"submission_id"`
	Category     string   `json:"category" yaml:"category"`
	SubmittedAt  string   `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	Inspector    string   `json:"inspector,omitempty" yaml:"inspector,omitempty"`
	BranchLabel  string   `json:"branch,omitempty" yaml:"branch,omitempty"`
	Latitude     *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Longitude    *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
	MapLink      string   `json:"map_link,omitempty" yaml:"map_link,omitempty"`
	BranchHint   string   `json:"branch_hint,omitempty" yaml:"branch_hint,omitempty"`

	// Source names where the record came from ("spreadsheet:2025.xlsx", "api").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	// Row is the 1-based spreadsheet row or API position, for error messages.
	Row int `json:"row,omitempty" yaml:"row,omitempty"`
}

// Event is one normalized inspection submission.
type Event struct {
	SubmissionID  string          `json:"submission_id" yaml:"submission_id" validate:"required"`
	Category      Category        `json:"category" yaml:"category" validate:"required,oneof=operational safety"`
	OccurredAt    time.Time       `json:"occurred_at,omitzero" yaml:"occurred_at,omitempty"`
	Inspector     string          `json:"inspector,omitempty" yaml:"inspector,omitempty"`
	DeclaredLabel string          `json:"declared_label,omitempty" yaml:"declared_label,omitempty"`
	Coordinate    *geo.Coordinate `json:"coordinate,omitempty" yaml:"coordinate,omitempty"`
	Hint          string          `json:"hint,omitempty" yaml:"hint,omitempty"`
	Source        string          `json:"source,omitempty" yaml:"source,omitempty"`
	Row           int             `json:"row,omitempty" yaml:"row,omitempty"`
}

// HasDate reports whether the submission date is known.
func (e Event) HasDate() bool {
	return !e.OccurredAt.IsZero()
}

// Day returns the calendar day of the submission, or "" when it is unknown.
// Time of day is never used for matching.
func (e Event) Day() string {
	if !e.HasDate() {
		return ""
	}
	return e.OccurredAt.Format(constants.DayLayout)
}

// InspectorKey returns the folded inspector identity used for comparisons.
func (e Event) InspectorKey() string {
	return textnorm.Fold(e.Inspector)
}
