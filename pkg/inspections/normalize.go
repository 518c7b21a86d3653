package inspections

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/geo"
	"github.com/agentstation/branchmap/pkg/textnorm"
)

// dateLayouts are tried in order. Layouts without a zone are read in the
// normalizer's location.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006",
}

// Normalizer converts raw records into events. It holds no per-run state and
// is safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
	location *time.Location
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithLocation sets the zone used for dates that carry none. Default UTC.
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	n := &Normalizer{validate: v, location: time.UTC}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps a raw record into an Event. It fails only when the
// submission id or category is missing or unrecognizable; every other field
// is best-effort and left empty when it cannot be read.
func (n *Normalizer) Normalize(raw RawRecord) (Event, error) {
	ev := Event{
		SubmissionID:  strings.TrimSpace(raw.SubmissionID),
		Inspector:     strings.TrimSpace(raw.Inspector),
		DeclaredLabel: strings.TrimSpace(raw.BranchLabel),
		Hint:          strings.TrimSpace(raw.BranchHint),
		Source:        raw.Source,
		Row:           raw.Row,
	}

	if c, ok := ParseCategory(raw.Category); ok {
		ev.Category = c
	} else {
		ev.Category = Category(textnorm.Fold(raw.Category))
	}

	if err := n.validate.Struct(ev); err != nil {
		return Event{}, toValidationError(err)
	}

	ev.OccurredAt = n.parseDate(raw.SubmittedAt)
	ev.Coordinate = coordinateOf(raw)
	return ev, nil
}

func (n *Normalizer) parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, n.location); err == nil {
			return t.In(n.location)
		}
	}
	return time.Time{}
}

// coordinateOf prefers the structured fields and falls back to the map link.
func coordinateOf(raw RawRecord) *geo.Coordinate {
	if raw.Latitude != nil && raw.Longitude != nil {
		c := geo.Coordinate{Lat: *raw.Latitude, Lon: *raw.Longitude}
		if c.Valid() {
			return &c
		}
	}
	if c, ok := geo.ParseMapLink(raw.MapLink); ok {
		return &c
	}
	return nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.NewValidationError("", nil, err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return errors.NewValidationError(fe.Field(), fe.Value(), "is required")
	case "oneof":
		return errors.NewValidationError(fe.Field(), fe.Value(), fmt.Sprintf("%q is not one of %s", fe.Value(), fe.Param()))
	default:
		return errors.NewValidationError(fe.Field(), fe.Value(), fmt.Sprintf("failed %s check", fe.Tag()))
	}
}
