package branches

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/textnorm"
)

// Catalog is an immutable, ordered set of branches. It is safe for concurrent
// reads; nothing mutates it after New returns.
type Catalog struct {
	branches  []Branch
	byID      map[int]int
	byName    map[string][]int // folded name or alias -> positions, catalog order
	stopWords []string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithStopWords sets words ignored by text-hint matching, typically the
// organization name and generic words like "sucursal".
func WithStopWords(words ...string) Option {
	return func(c *Catalog) {
		for _, w := range words {
			if f := textnorm.Fold(w); f != "" {
				c.stopWords = append(c.stopWords, f)
			}
		}
	}
}

// New validates the reference branches and builds the catalog. Any malformed
// entry fails the whole catalog with a *errors.CatalogError.
func New(list []Branch, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		branches: make([]Branch, 0, len(list)),
		byID:     make(map[int]int, len(list)),
		byName:   make(map[string][]int, len(list)),
	}

	for i, b := range list {
		normalized, err := normalizeBranch(i, b)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[normalized.ID]; dup {
			return nil, errors.NewCatalogError(normalized.ID, i, "duplicate id")
		}

		pos := len(c.branches)
		c.branches = append(c.branches, normalized)
		c.byID[normalized.ID] = pos
		c.indexName(normalized.Name, pos)
		for _, alias := range normalized.Aliases {
			c.indexName(alias, pos)
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Catalog) indexName(name string, pos int) {
	key := textnorm.Fold(name)
	if key == "" {
		return
	}
	for _, existing := range c.byName[key] {
		if existing == pos {
			return
		}
	}
	c.byName[key] = append(c.byName[key], pos)
}

// normalizeBranch checks one reference entry and fills in its effective quota.
func normalizeBranch(index int, b Branch) (Branch, error) {
	if b.ID <= 0 {
		return Branch{}, errors.NewCatalogError(0, index, "missing or non-positive id")
	}
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return Branch{}, errors.NewCatalogError(b.ID, index, "missing name")
	}
	if b.Classification == "" {
		b.Classification = ClassificationInRegion
	}
	if !b.Classification.Valid() {
		return Branch{}, errors.NewCatalogError(b.ID, index, fmt.Sprintf("unknown classification %q", b.Classification))
	}

	if b.Coordinate != nil && !b.Coordinate.Valid() {
		if b.Coordinate.Lat != 0 || b.Coordinate.Lon != 0 {
			return Branch{}, errors.NewCatalogError(b.ID, index, fmt.Sprintf("coordinate %s out of range", b.Coordinate))
		}
		// 0,0 is how the exports spell "no GPS".
		b.Coordinate = nil
	}
	if b.Coordinate != nil {
		coord := *b.Coordinate
		b.Coordinate = &coord
	}
	if len(b.Aliases) > 0 {
		b.Aliases = append([]string(nil), b.Aliases...)
	}

	if b.Quota.Operational < 0 || b.Quota.Safety < 0 {
		return Branch{}, errors.NewCatalogError(b.ID, index, "negative quota")
	}
	switch {
	case b.QuotaOverride || b.Quota != (Quota{}):
		b.QuotaOverride = true
	case b.Classification == ClassificationSpecialQuota:
		return Branch{}, errors.NewCatalogError(b.ID, index, "special_quota branch requires an explicit quota")
	default:
		b.Quota, _ = DefaultQuota(b.Classification)
		b.QuotaOverride = false
	}
	return b, nil
}

// Len returns the number of branches.
func (c *Catalog) Len() int {
	return len(c.branches)
}

// All returns the branches in catalog insertion order. The slice is a copy.
func (c *Catalog) All() []Branch {
	out := make([]Branch, len(c.branches))
	copy(out, c.branches)
	return out
}

// StopWords returns the folded stop words configured for text-hint matching.
func (c *Catalog) StopWords() []string {
	return append([]string(nil), c.stopWords...)
}

// Position returns the insertion index of a branch, used for deterministic tie-breaks.
func (c *Catalog) Position(id int) (int, bool) {
	pos, ok := c.byID[id]
	return pos, ok
}

// FindByID returns the branch with the given id.
func (c *Catalog) FindByID(id int) (Branch, error) {
	pos, ok := c.byID[id]
	if !ok {
		return Branch{}, errors.NewNotFoundError("branch", strconv.Itoa(id))
	}
	return c.branches[pos], nil
}

// FindByExactLabel resolves a label as written by an inspection source.
// Comparison ignores case, accents and spacing. A leading numeric code is
// split off: "35 - Riverside" matches only if branch 35 is named (or aliased)
// Riverside, and a bare "35" resolves by id.
func (c *Catalog) FindByExactLabel(label string) (Branch, error) {
	code, name, hasCode := textnorm.SplitCode(label)

	if name == "" {
		if hasCode {
			return c.FindByID(code)
		}
		return Branch{}, errors.NewNotFoundError("branch label", label)
	}

	positions := c.byName[name]
	if hasCode {
		for _, pos := range positions {
			if c.branches[pos].ID == code {
				return c.branches[pos], nil
			}
		}
		// The whole label may itself be a name that starts with digits.
		positions = c.byName[textnorm.Fold(label)]
		if len(positions) == 0 {
			return Branch{}, errors.NewNotFoundError("branch label", label)
		}
	}
	if len(positions) == 0 {
		return Branch{}, errors.NewNotFoundError("branch label", label)
	}
	return c.branches[positions[0]], nil
}
