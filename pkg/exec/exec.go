// Package exec implements Executor: turns a validated query.Query into a
// candidate node id list (preferring an index.Manager scan over a full
// store.Store.NodesOfType walk), filters that list down with
// matchesFilters, and materializes surviving nodes into Items carrying
// their resolved property+rollup fields and ancestor path.
//
// Filter evaluation is grounded on the teacher's pkg/cypher/operators.go
// and comparison.go (eq/neq/gt/gte/lt/lte/in over typed values with NULL
// propagation), adapted from Cypher's runtime interface{} values to this
// spec's typed value.Value union.
package exec

import (
	"github.com/lattice-db/lattice/pkg/index"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

// RollupReader is the narrow rollup lookup Executor needs; satisfied by
// rollup.Cache.
type RollupReader interface {
	Get(id store.NodeId, name string) (value.Value, bool)
}

// Executor evaluates Query ASTs against a live Store/Manager pair.
type Executor struct {
	schema  *schema.Schema
	store   *store.Store
	index   *index.Manager
	rollups RollupReader
}

// New builds an Executor bound to one schema/store/index/rollup set.
func New(s *schema.Schema, st *store.Store, idx *index.Manager, rollups RollupReader) *Executor {
	return &Executor{schema: s, store: st, index: idx, rollups: rollups}
}

// Item is one materialized result: a node's resolved fields plus its
// position in the traversal that produced it.
type Item struct {
	ID         store.NodeId
	Depth      int
	Path       []store.NodeId // ancestor chain from the query root, root first
	Properties map[string]value.Value
}

// Candidates returns every node id of rootType that could possibly match,
// in index order when an index.Manager scan covers the query's filters
// and sorts, or in store order (filtered to type) otherwise.
func (e *Executor) Candidates(rootType schema.TypeId, filters []query.FilterCond, sorts []query.SortSpec) ([]store.NodeId, index.Coverage, error) {
	pf := toPlanFilters(filters)
	ps := toPlanSorts(sorts)

	cov, err := e.index.SelectIndex(rootType, pf, ps)
	if err != nil {
		return nil, index.Coverage{}, err
	}
	if cov.IndexPos >= 0 {
		return e.index.Scan(rootType, cov), cov, nil
	}
	return e.store.NodesOfType(rootType), cov, nil
}

func toPlanFilters(filters []query.FilterCond) []index.PlanFilter {
	out := make([]index.PlanFilter, len(filters))
	for i, f := range filters {
		out[i] = index.PlanFilter{Field: f.Field, Op: index.FilterKind(f.Op)}
	}
	return out
}

func toPlanSorts(sorts []query.SortSpec) []index.PlanSort {
	out := make([]index.PlanSort, len(sorts))
	for i, s := range sorts {
		out[i] = index.PlanSort{Field: s.Field, Direction: s.Direction}
	}
	return out
}

// MatchesFilters reports whether a live node satisfies every filter.
// A filter against a field the node has no value for never matches
// (NULL propagation, per spec.md §4.4 and the teacher's own Cypher
// comparison semantics).
func (e *Executor) MatchesFilters(td *schema.TypeDef, n *store.Node, filters []query.FilterCond) bool {
	for _, f := range filters {
		v, ok := e.fieldValue(n, f.Field)
		if !ok {
			return false
		}
		if !matchOp(v, f) {
			return false
		}
	}
	return true
}

// FieldValue reads a property or rollup value off a live node, the same
// lookup MatchesFilters uses internally; exported for pkg/tracker's
// sort-order comparisons.
func (e *Executor) FieldValue(n *store.Node, field string) (value.Value, bool) {
	return e.fieldValue(n, field)
}

func (e *Executor) fieldValue(n *store.Node, field string) (value.Value, bool) {
	if v, ok := n.GetProperty(field); ok {
		return v, true
	}
	if e.rollups != nil {
		if v, ok := e.rollups.Get(n.ID, field); ok {
			return v, true
		}
	}
	return value.Value{}, false
}

func matchOp(v value.Value, f query.FilterCond) bool {
	switch f.Op {
	case query.Eq:
		return value.Equal(v, f.Value)
	case query.Neq:
		return !value.Equal(v, f.Value)
	case query.Gt:
		return value.Compare(v, f.Value) > 0
	case query.Gte:
		return value.Compare(v, f.Value) >= 0
	case query.Lt:
		return value.Compare(v, f.Value) < 0
	case query.Lte:
		return value.Compare(v, f.Value) <= 0
	case query.In:
		for _, cand := range f.Values {
			if value.Equal(v, cand) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Materialize reads a node's current properties and rollups into an Item.
// Every declared property is present (null if unset); every declared
// rollup is included under its own name, reading live from RollupReader.
func (e *Executor) Materialize(td *schema.TypeDef, id store.NodeId, depth int, path []store.NodeId) (Item, bool) {
	n, err := e.store.Get(id)
	if err != nil {
		return Item{}, false
	}
	props := make(map[string]value.Value, len(td.Properties)+len(td.Rollups))
	for _, pd := range td.Properties {
		if v, ok := n.GetProperty(pd.Name); ok {
			props[pd.Name] = v
		} else {
			props[pd.Name] = value.Null()
		}
	}
	if e.rollups != nil {
		for _, rd := range td.Rollups {
			if v, ok := e.rollups.Get(id, rd.Name); ok {
				props[rd.Name] = v
			}
		}
	}
	return Item{ID: id, Depth: depth, Path: path, Properties: props}, true
}

// TypeDef is a small convenience wrapper so callers building a traversal
// don't need to import pkg/schema solely to look up a TypeDef by id.
func (e *Executor) TypeDef(t schema.TypeId) *schema.TypeDef {
	td, _ := e.schema.TypeByID(t)
	return td
}

// EdgeTargets exposes a node's ordered edge target list, for walking
// query.EdgeSelection hops.
func (e *Executor) EdgeTargets(id store.NodeId, edgeID schema.EdgeId) []store.NodeId {
	n, err := e.store.Get(id)
	if err != nil {
		return nil
	}
	return n.EdgeTargets(edgeID)
}

// Get exposes the underlying node, for callers that need its Type to
// resolve the next hop's TypeDef.
func (e *Executor) Get(id store.NodeId) (*store.Node, error) {
	return e.store.Get(id)
}

// NodesOfType lists every live node of a type with no filtering or
// ordering applied; used by pkg/tracker to seed a brand new subscription.
func (e *Executor) NodesOfType(t schema.TypeId) []store.NodeId {
	return e.store.NodesOfType(t)
}
