package branches

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/geo"
)

// dataset is the on-disk shape of the branch reference data.
type dataset struct {
	Branches  []entry  `yaml:"branches"`
	StopWords []string `yaml:"stop_words,omitempty"`
}

// entry is one branch as written in the reference data. Quota is a pointer so
// an explicit zero quota can be told apart from an omitted one.
type entry struct {
	ID             int             `yaml:"id"`
	Name           string          `yaml:"name"`
	Aliases        []string        `yaml:"aliases,omitempty"`
	Coordinate     *geo.Coordinate `yaml:"coordinate,omitempty"`
	Classification Classification  `yaml:"classification,omitempty"`
	Quota          *Quota          `yaml:"quota,omitempty"`
}

func (e entry) branch() Branch {
	b := Branch{
		ID:             e.ID,
		Name:           e.Name,
		Aliases:        e.Aliases,
		Coordinate:     e.Coordinate,
		Classification: e.Classification,
	}
	if e.Quota != nil {
		b.Quota, b.QuotaOverride = *e.Quota, true
	}
	return b
}

// Load reads a YAML reference dataset from path and builds the catalog.
// Extra options are applied after the dataset's own stop words.
func Load(path string, opts ...Option) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, &errors.CatalogError{Index: -1, Message: "reading reference data", Err: errors.WrapIO("read", path, err)}
	}
	return Parse(data, path, opts...)
}

// Parse builds a catalog from YAML bytes. name is only used in error messages.
func Parse(data []byte, name string, opts ...Option) (*Catalog, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, &errors.CatalogError{Index: -1, Message: "decoding reference data", Err: errors.WrapParse("yaml", name, err)}
	}
	if len(ds.Branches) == 0 {
		return nil, &errors.CatalogError{Index: -1, Message: "reference data has no branches"}
	}
	list := make([]Branch, len(ds.Branches))
	for i, e := range ds.Branches {
		list[i] = e.branch()
	}
	return New(list, append([]Option{WithStopWords(ds.StopWords...)}, opts...)...)
}

// Marshal encodes the catalog back into the reference dataset format.
func (c *Catalog) Marshal() ([]byte, error) {
	ds := dataset{StopWords: c.StopWords()}
	for _, b := range c.All() {
		e := entry{
			ID:             b.ID,
			Name:           b.Name,
			Aliases:        b.Aliases,
			Coordinate:     b.Coordinate,
			Classification: b.Classification,
		}
		if b.QuotaOverride {
			q := b.Quota
			e.Quota = &q
		}
		ds.Branches = append(ds.Branches, e)
	}
	return yaml.Marshal(ds)
}
