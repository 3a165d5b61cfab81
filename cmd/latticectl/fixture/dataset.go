package fixture

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/lattice-db/lattice/pkg/lattice"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

// Dataset is a set of nodes and edges to seed a DB with, keyed by a
// caller-chosen ref string rather than a store.NodeId (which doesn't exist
// yet at parse time).
type Dataset struct {
	Nodes []NodeFixture `yaml:"nodes"`
	Edges []EdgeFixture `yaml:"edges,omitempty"`
}

// NodeFixture declares one node: its type and a ref other nodes' edges can
// target it by.
type NodeFixture struct {
	Ref        string                 `yaml:"ref"`
	Type       string                 `yaml:"type"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// EdgeFixture links two refs across a named edge.
type EdgeFixture struct {
	From string `yaml:"from"`
	Edge string `yaml:"edge"`
	To   string `yaml:"to"`
}

// LoadDatasets parses every path concurrently (dataset files are
// independent of each other until they're merged) and returns one merged
// Dataset in path order. Concurrency is confined to this CLI-only parse
// step; Load itself replays the merged result into a DB single-threaded,
// since pkg/store is not safe for concurrent mutation.
func LoadDatasets(paths []string) (Dataset, error) {
	parsed := make([]Dataset, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			raw, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("fixture: reading dataset %s: %w", p, err)
			}
			var d Dataset
			if err := yaml.Unmarshal(raw, &d); err != nil {
				return fmt.Errorf("fixture: parsing dataset %s: %w", p, err)
			}
			parsed[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	var merged Dataset
	for _, d := range parsed {
		merged.Nodes = append(merged.Nodes, d.Nodes...)
		merged.Edges = append(merged.Edges, d.Edges...)
	}
	return merged, nil
}

// Load replays ds into db: every node is inserted and updated with its
// declared properties, then every edge is linked once all nodes exist (an
// edge may reference a node declared later in the file). Returns the
// ref -> NodeId mapping so a caller can anchor a query's RootID.
func Load(db *lattice.DB, ds Dataset) (map[string]store.NodeId, error) {
	refs := make(map[string]store.NodeId, len(ds.Nodes))
	for _, n := range ds.Nodes {
		id, err := db.Insert(n.Type)
		if err != nil {
			return nil, fmt.Errorf("fixture: inserting %q: %w", n.Ref, err)
		}
		refs[n.Ref] = id

		if len(n.Properties) == 0 {
			continue
		}
		props, err := convertProperties(n.Properties)
		if err != nil {
			return nil, fmt.Errorf("fixture: node %q: %w", n.Ref, err)
		}
		if err := db.Update(id, props); err != nil {
			return nil, fmt.Errorf("fixture: updating %q: %w", n.Ref, err)
		}
	}

	for _, e := range ds.Edges {
		src, ok := refs[e.From]
		if !ok {
			return nil, fmt.Errorf("fixture: edge references unknown ref %q", e.From)
		}
		tgt, ok := refs[e.To]
		if !ok {
			return nil, fmt.Errorf("fixture: edge references unknown ref %q", e.To)
		}
		if err := db.Link(src, e.Edge, tgt); err != nil {
			return nil, fmt.Errorf("fixture: linking %q -%s-> %q: %w", e.From, e.Edge, e.To, err)
		}
	}
	return refs, nil
}

func convertProperties(in map[string]interface{}) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(in))
	for k, raw := range in {
		v, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
