// Package query defines the immutable query AST spec.md §4.4 describes:
// a root type (optionally anchored to one node), a set of property
// filters, a requested sort order, and a tree of edge selections that can
// recurse into virtual (non-materializing) hops.
//
// The AST shape — small, exported, immutable struct trees with a single
// Validate() entry point — follows the teacher's pkg/cypher/ast_builder.go,
// adapted from Cypher's parsed-pattern nodes to this spec's declarative
// filter/sort/selection tree.
package query

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

// Op is one of the seven comparison operators spec.md §4.4 supports.
// pkg/exec translates Op to index.FilterKind when asking index.Manager to
// plan a scan, keeping pkg/query free of a dependency on pkg/index.
type Op string

const (
	Eq  Op = "eq"
	Neq Op = "neq"
	Gt  Op = "gt"
	Gte Op = "gte"
	Lt  Op = "lt"
	Lte Op = "lte"
	In  Op = "in"
)

// FilterCond is one property (or rollup) comparison.
type FilterCond struct {
	Field  string
	Op     Op
	Value  value.Value   // operand for eq/neq/gt/gte/lt/lte
	Values []value.Value // operand set for in
}

// SortSpec requests one field's ordering; multiple entries compose into a
// multi-key sort, evaluated left to right.
type SortSpec struct {
	Field     string
	Direction value.Direction
}

// EdgeSelection requests a child hop across one named edge. Virtual
// selections don't materialize into view items themselves — spec.md §4.5
// calls these "pass-through" hops — but their own selections still nest
// normally. Recursive is recorded on the AST, but nothing reads it:
// View.ApplySelections applies a recursive selection only at the depth
// where it is declared, and no code repeats the edge or guards cycles.
type EdgeSelection struct {
	Name       string
	Recursive  bool
	Virtual    bool
	Filters    []FilterCond
	Sorts      []SortSpec
	Selections []EdgeSelection
}

// Query is the immutable root of one subscription's shape.
type Query struct {
	RootType   string
	RootID     *store.NodeId
	Virtual    bool
	Filters    []FilterCond
	Sorts      []SortSpec
	Selections []EdgeSelection
}

// Validate checks a Query against a resolved Schema: root type exists,
// every filter/sort field is a known property or rollup, every selection
// names a real edge on the (possibly nested) target type. Every
// independent problem is collected into one multierror rather than
// stopping at the first, matching pkg/schema.Resolve's aggregation style.
func (q *Query) Validate(s *schema.Schema) error {
	var errs *multierror.Error

	root, ok := s.TypeByName(q.RootType)
	if !ok {
		errs = multierror.Append(errs, fmt.Errorf("query: unknown root type %q", q.RootType))
		errs.ErrorFormat = queryErrorFormat
		return errs.ErrorOrNil()
	}

	validateFilters(root, q.Filters, &errs)
	validateSorts(root, q.Sorts, &errs)
	validateSelections(s, root, q.Selections, &errs)

	if errs != nil {
		errs.ErrorFormat = queryErrorFormat
	}
	return errs.ErrorOrNil()
}

func validateFilters(t *schema.TypeDef, filters []FilterCond, errs **multierror.Error) {
	for _, f := range filters {
		if !t.HasField(f.Field) {
			*errs = multierror.Append(*errs, fmt.Errorf("query: type %q has no field %q", t.Name, f.Field))
			continue
		}
		if f.Op == In && len(f.Values) == 0 {
			*errs = multierror.Append(*errs, fmt.Errorf("query: %q: \"in\" filter requires at least one value", f.Field))
		}
	}
}

func validateSorts(t *schema.TypeDef, sorts []SortSpec, errs **multierror.Error) {
	for _, srt := range sorts {
		if !t.HasField(srt.Field) {
			*errs = multierror.Append(*errs, fmt.Errorf("query: type %q has no field %q", t.Name, srt.Field))
		}
	}
}

func validateSelections(s *schema.Schema, t *schema.TypeDef, sels []EdgeSelection, errs **multierror.Error) {
	for _, sel := range sels {
		ed, ok := t.Edge(sel.Name)
		if !ok {
			*errs = multierror.Append(*errs, fmt.Errorf("query: type %q has no edge %q", t.Name, sel.Name))
			continue
		}
		target, ok := s.TypeByID(ed.TargetType)
		if !ok {
			continue
		}
		validateFilters(target, sel.Filters, errs)
		validateSorts(target, sel.Sorts, errs)
		validateSelections(s, target, sel.Selections, errs)
	}
}

func queryErrorFormat(errs []error) string {
	msg := fmt.Sprintf("query validation failed with %d error(s):", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return msg
}
