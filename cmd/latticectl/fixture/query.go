package fixture

import (
	"fmt"

	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

// Query is query.Query's YAML-facing twin: every field that pkg/query
// keeps as an opaque value.Value or a typed Op/Direction is spelled here as
// a plain string or interface{} so yaml.v3 can decode it without custom
// UnmarshalYAML hooks.
type Query struct {
	RootType   string     `yaml:"root_type"`
	RootID     *uint64    `yaml:"root_id,omitempty"`
	Virtual    bool       `yaml:"virtual,omitempty"`
	Filters    []Filter   `yaml:"filters,omitempty"`
	Sorts      []Sort     `yaml:"sorts,omitempty"`
	Selections []Selection `yaml:"selections,omitempty"`
}

// Filter is one FilterCond in fixture form. Op is one of the literal
// strings query.Op defines ("eq", "neq", "gt", "gte", "lt", "lte", "in").
type Filter struct {
	Field  string        `yaml:"field"`
	Op     string        `yaml:"op"`
	Value  interface{}   `yaml:"value,omitempty"`
	Values []interface{} `yaml:"values,omitempty"`
}

// Sort is one SortSpec in fixture form. Direction is "asc" or "desc",
// defaulting to "asc" per schema.Direction.ToValueDirection.
type Sort struct {
	Field     string `yaml:"field"`
	Direction string `yaml:"direction,omitempty"`
}

// Selection is one EdgeSelection in fixture form.
type Selection struct {
	Name       string      `yaml:"name"`
	Recursive  bool        `yaml:"recursive,omitempty"`
	Virtual    bool        `yaml:"virtual,omitempty"`
	Filters    []Filter    `yaml:"filters,omitempty"`
	Sorts      []Sort      `yaml:"sorts,omitempty"`
	Selections []Selection `yaml:"selections,omitempty"`
}

// Build converts the fixture into a query.Query. It does not validate
// field/edge names against a schema — callers run query.Query.Validate
// themselves once a schema is available.
func (q *Query) Build() (*query.Query, error) {
	filters, err := buildFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	sorts := buildSorts(q.Sorts)
	selections, err := buildSelections(q.Selections)
	if err != nil {
		return nil, err
	}

	out := &query.Query{
		RootType:   q.RootType,
		Virtual:    q.Virtual,
		Filters:    filters,
		Sorts:      sorts,
		Selections: selections,
	}
	if q.RootID != nil {
		id := store.NodeId(*q.RootID)
		out.RootID = &id
	}
	return out, nil
}

func buildFilters(in []Filter) ([]query.FilterCond, error) {
	out := make([]query.FilterCond, 0, len(in))
	for _, f := range in {
		cond := query.FilterCond{Field: f.Field, Op: query.Op(f.Op)}
		if len(f.Values) > 0 {
			vals := make([]value.Value, 0, len(f.Values))
			for _, raw := range f.Values {
				v, err := toValue(raw)
				if err != nil {
					return nil, fmt.Errorf("fixture: filter %q: %w", f.Field, err)
				}
				vals = append(vals, v)
			}
			cond.Values = vals
		} else if f.Value != nil {
			v, err := toValue(f.Value)
			if err != nil {
				return nil, fmt.Errorf("fixture: filter %q: %w", f.Field, err)
			}
			cond.Value = v
		}
		out = append(out, cond)
	}
	return out, nil
}

func buildSorts(in []Sort) []query.SortSpec {
	out := make([]query.SortSpec, 0, len(in))
	for _, s := range in {
		out = append(out, query.SortSpec{
			Field:     s.Field,
			Direction: schema.Direction(s.Direction).ToValueDirection(),
		})
	}
	return out
}

func buildSelections(in []Selection) ([]query.EdgeSelection, error) {
	out := make([]query.EdgeSelection, 0, len(in))
	for _, s := range in {
		filters, err := buildFilters(s.Filters)
		if err != nil {
			return nil, err
		}
		nested, err := buildSelections(s.Selections)
		if err != nil {
			return nil, err
		}
		out = append(out, query.EdgeSelection{
			Name:       s.Name,
			Recursive:  s.Recursive,
			Virtual:    s.Virtual,
			Filters:    filters,
			Sorts:      buildSorts(s.Sorts),
			Selections: nested,
		})
	}
	return out, nil
}
