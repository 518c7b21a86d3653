// Package branches holds the canonical branch catalog, the immutable index every
// inspection is resolved against, and the nearest-neighbor distance index built
// on top of it.
package branches

import (
	"fmt"

	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/geo"
)

// Classification groups branches by how often they must be inspected.
type Classification string

// String returns the string representation of a classification.
func (c Classification) String() string {
	return string(c)
}

const (
	// ClassificationInRegion branches are inside the supervisors' home region.
	ClassificationInRegion Classification = "in_region"
	// ClassificationRemote branches are outside it and get a reduced quota.
	ClassificationRemote Classification = "remote"
	// ClassificationSpecialQuota branches carry a negotiated quota that must be given explicitly.
	ClassificationSpecialQuota Classification = "special_quota"
)

// Valid reports whether c is one of the known classifications.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationInRegion, ClassificationRemote, ClassificationSpecialQuota:
		return true
	}
	return false
}

// Quota is the number of inspections a branch must receive per period.
type Quota struct {
	Operational int `json:"operational" yaml:"operational"`
	Safety      int `json:"safety" yaml:"safety"`
}

// Total returns the combined quota.
func (q Quota) Total() int {
	return q.Operational + q.Safety
}

// String implements fmt.Stringer.
func (q Quota) String() string {
	return fmt.Sprintf("%d+%d", q.Operational, q.Safety)
}

// DefaultQuota returns the standard quota for a classification. Special-quota
// branches have no default.
func DefaultQuota(c Classification) (Quota, bool) {
	switch c {
	case ClassificationInRegion:
		return Quota{Operational: constants.InRegionOperationalQuota, Safety: constants.InRegionSafetyQuota}, true
	case ClassificationRemote:
		return Quota{Operational: constants.RemoteOperationalQuota, Safety: constants.RemoteSafetyQuota}, true
	}
	return Quota{}, false
}

// Branch is one canonical physical location.
type Branch struct {
	ID             int             `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Aliases        []string        `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Coordinate     *geo.Coordinate `json:"coordinate,omitempty" yaml:"coordinate,omitempty"`
	Classification Classification  `json:"classification" yaml:"classification"`
	// Quota is the effective quota: the override when one was given,
	// otherwise the classification default.
	Quota Quota `json:"quota" yaml:"quota"`
	// QuotaOverride is set when the reference data carried an explicit quota.
	// Setting it keeps an explicit zero quota instead of the classification default.
	QuotaOverride bool `json:"quota_override,omitempty" yaml:"quota_override,omitempty"`
}

// Label returns the "35 - Riverside" form used by the spreadsheet exports.
func (b Branch) Label() string {
	return fmt.Sprintf("%d - %s", b.ID, b.Name)
}

// HasCoordinate reports whether the branch can take part in distance matching.
func (b Branch) HasCoordinate() bool {
	return b.Coordinate != nil && b.Coordinate.Valid()
}
