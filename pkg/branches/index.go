package branches

import (
	"fmt"
	"slices"

	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/geo"
)

// Index answers nearest-branch queries over the branches that have a
// coordinate. It is read-only after NewIndex and safe for concurrent use.
type Index struct {
	located []Branch
}

// NewIndex builds a distance index over every located branch in the catalog.
func NewIndex(c *Catalog) *Index {
	idx := &Index{}
	for _, b := range c.branches {
		if b.HasCoordinate() {
			idx.located = append(idx.located, b)
		}
	}
	return idx
}

// Len returns the number of branches that can be matched by distance.
func (x *Index) Len() int {
	return len(x.located)
}

// Nearest returns the closest branch to coord that lies within maxKm.
// Distances within constants.DistanceTieEpsilonKm of each other are
// treated as equal and the lower branch id wins.
func (x *Index) Nearest(coord geo.Coordinate, maxKm float64) (Branch, float64, error) {
	if maxKm < 0 {
		return Branch{}, 0, errors.NewValidationError("max_distance_km", maxKm, "must not be negative")
	}
	if !coord.Valid() {
		return Branch{}, 0, errors.NewNotFoundError("branch near", coord.String())
	}

	var (
		best     Branch
		bestDist float64
		found    bool
	)
	for _, b := range x.located {
		d := geo.DistanceKm(coord, *b.Coordinate)
		if d > maxKm {
			continue
		}
		switch {
		case !found, d < bestDist-constants.DistanceTieEpsilonKm:
			best, bestDist, found = b, d, true
		case d <= bestDist+constants.DistanceTieEpsilonKm && b.ID < best.ID:
			best, bestDist = b, d
		}
	}

	if !found {
		return Branch{}, 0, errors.NewNotFoundError("branch near", fmt.Sprintf("%s within %.3f km", coord, maxKm))
	}
	return best, bestDist, nil
}

// Within returns every located branch within maxKm of coord, nearest first.
func (x *Index) Within(coord geo.Coordinate, maxKm float64) []Match {
	if !coord.Valid() || maxKm < 0 {
		return nil
	}
	var out []Match
	for _, b := range x.located {
		if d := geo.DistanceKm(coord, *b.Coordinate); d <= maxKm {
			out = append(out, Match{Branch: b, DistanceKm: d})
		}
	}
	slices.SortFunc(out, compareMatches)
	return out
}

// Match pairs a branch with its distance from a query point.
type Match struct {
	Branch     Branch  `json:"branch" yaml:"branch"`
	DistanceKm float64 `json:"distance_km" yaml:"distance_km"`
}

func compareMatches(a, b Match) int {
	switch {
	case a.DistanceKm < b.DistanceKm-constants.DistanceTieEpsilonKm:
		return -1
	case a.DistanceKm > b.DistanceKm+constants.DistanceTieEpsilonKm:
		return 1
	}
	return a.Branch.ID - b.Branch.ID
}
