package resolver

// Confidence names the tier that assigned a branch to an event.
type Confidence string

// String returns the string representation of a confidence tier.
func (c Confidence) String() string {
	return string(c)
}

// Resolution tiers, in the order they are attempted.
const (
	ConfidenceExact           Confidence = "exact"
	ConfidenceCoordinateMatch Confidence = "coordinate_match"
	ConfidenceDateCorrelated  Confidence = "date_correlated"
	ConfidenceTextHint        Confidence = "text_hint"
	ConfidenceUnresolved      Confidence = "unresolved"
)

// Confidences lists every tier in precedence order.
var Confidences = []Confidence{
	ConfidenceExact,
	ConfidenceCoordinateMatch,
	ConfidenceDateCorrelated,
	ConfidenceTextHint,
	ConfidenceUnresolved,
}

// Title returns the display name used in reports.
func (c Confidence) Title() string {
	switch c {
	case ConfidenceExact:
		return "Exact"
	case ConfidenceCoordinateMatch:
		return "CoordinateMatch"
	case ConfidenceDateCorrelated:
		return "DateCorrelated"
	case ConfidenceTextHint:
		return "TextHint"
	case ConfidenceUnresolved:
		return "Unresolved"
	}
	return string(c)
}

// Result is the outcome of resolving one event.
//
// BranchID is nil exactly when Confidence is ConfidenceUnresolved.
// DistanceKm is set only for ConfidenceCoordinateMatch.
type Result struct {
	SubmissionID string     `json:"submission_id" yaml:"submission_id"`
	BranchID     *int       `json:"branch_id" yaml:"branch_id"`
	BranchName   string     `json:"branch_name,omitempty" yaml:"branch_name,omitempty"`
	Confidence   Confidence `json:"confidence" yaml:"confidence"`
	DistanceKm   *float64   `json:"distance_km,omitempty" yaml:"distance_km,omitempty"`

	// InspectorMatch is set on date-correlated results when a same-day
	// event of the other category was filed by the same inspector.
	InspectorMatch bool `json:"inspector_match,omitempty" yaml:"inspector_match,omitempty"`
	// CorrelatedWith lists the submissions a date correlation was anchored on.
	CorrelatedWith []string `json:"correlated_with,omitempty" yaml:"correlated_with,omitempty"`
	// MatchedTokens lists the hint tokens shared with the branch name.
	MatchedTokens []string `json:"matched_tokens,omitempty" yaml:"matched_tokens,omitempty"`
	// Note explains why the lower tiers failed, for manual follow-up.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Resolved reports whether a branch was assigned.
func (r Result) Resolved() bool {
	return r.BranchID != nil
}

// Anchor reports whether the result can anchor a date correlation. Only
// label and coordinate matches qualify, which keeps correlation independent
// of the order events are processed in.
func (r Result) Anchor() bool {
	return r.Confidence == ConfidenceExact || r.Confidence == ConfidenceCoordinateMatch
}
