package index

import (
	"errors"

	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
)

// ErrNoIndexCovers is returned when a query requests a sort order that no
// declared index can maintain incrementally (spec.md §4.2, §7). Queries
// with no requested sort never hit this: an unordered scan always works.
var ErrNoIndexCovers = errors.New("index: no declared index covers the requested sort")

// SelectIndex picks the index on rootType that best covers filters and
// sorts, following spec.md §4.2's scoring: longest leading run of
// equality filters, then one range filter immediately after, then the
// longest run of the requested sort fields immediately after that. Filters
// not absorbed into the equality/range prefix are returned as
// PostFilters for the executor to apply after the index scan.
func (m *Manager) SelectIndex(rootType schema.TypeId, filters []PlanFilter, sorts []PlanSort) (Coverage, error) {
	var best Coverage
	best.IndexPos = -1

	defs := m.indexes[rootType]
	for pos, oi := range defs {
		c := scoreIndex(oi.def, filters, sorts)
		c.IndexPos = pos
		c.Index = &oi.def
		if better(c, best) {
			best = c
		}
	}

	if len(sorts) > 0 && best.SortSuffix < len(sorts) {
		return Coverage{}, ErrNoIndexCovers
	}
	if best.IndexPos < 0 {
		// No indexes declared at all but also no sort requested: an
		// unordered full scan covers the (empty) requirement trivially.
		best.PostFilters = filterRefs(filters)
	}
	return best, nil
}

func better(a, b Coverage) bool {
	if b.IndexPos < 0 {
		return true
	}
	if a.EqualityPrefix != b.EqualityPrefix {
		return a.EqualityPrefix > b.EqualityPrefix
	}
	if a.RangeField != b.RangeField {
		return a.RangeField
	}
	return a.SortSuffix > b.SortSuffix
}

func scoreIndex(def schema.IndexDef, filters []PlanFilter, sorts []PlanSort) Coverage {
	byName := make(map[string]PlanFilter, len(filters))
	for _, f := range filters {
		byName[f.Field] = f
	}
	consumed := make(map[string]bool, len(filters))

	var c Coverage
	i := 0
	for ; i < len(def.Fields); i++ {
		f := def.Fields[i]
		pf, ok := byName[f.Name]
		if !ok || pf.Op != OpEq {
			break
		}
		consumed[f.Name] = true
		c.EqualityPrefix++
	}
	if i < len(def.Fields) {
		f := def.Fields[i]
		if pf, ok := byName[f.Name]; ok && isRange(pf.Op) {
			consumed[f.Name] = true
			c.RangeField = true
			i++
		}
	}
	for si := 0; i < len(def.Fields) && si < len(sorts); i, si = i+1, si+1 {
		f := def.Fields[i]
		s := sorts[si]
		if f.Name != s.Field || f.Direction != s.Direction {
			break
		}
		c.SortSuffix++
	}
	c.PostFilters = filterRefs(remaining(filters, consumed))
	return c
}

func isRange(op FilterKind) bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	default:
		return false
	}
}

func remaining(filters []PlanFilter, consumed map[string]bool) []PlanFilter {
	var out []PlanFilter
	for _, f := range filters {
		if !consumed[f.Field] {
			out = append(out, f)
		}
	}
	return out
}

func filterRefs(filters []PlanFilter) []FilterRef {
	out := make([]FilterRef, len(filters))
	for i, f := range filters {
		out[i] = FilterRef{Field: f.Field}
	}
	return out
}

// Scan returns every NodeId in the chosen index's order, for callers doing
// a full ordered walk (no equality/range pruning). pkg/exec narrows this
// further with the node's own property filters for PostFilters.
func (m *Manager) Scan(rootType schema.TypeId, c Coverage) []store.NodeId {
	if c.IndexPos < 0 || c.IndexPos >= len(m.indexes[rootType]) {
		return nil
	}
	oi := m.indexes[rootType][c.IndexPos]
	out := make([]store.NodeId, len(oi.entries))
	for i, e := range oi.entries {
		out[i] = e.id
	}
	return out
}

// ScanChildren returns, in index order, every target node linked under a
// cross-entity index for a specific parent (spec.md §4.2's "all Stacks of
// Thread X sorted by timestamp" example).
func (m *Manager) ScanChildren(rootType schema.TypeId, indexPos int, parent store.NodeId) []store.NodeId {
	if indexPos < 0 || indexPos >= len(m.indexes[rootType]) {
		return nil
	}
	oi := m.indexes[rootType][indexPos]
	if !oi.crossRef {
		return nil
	}
	var out []store.NodeId
	for _, e := range oi.entries {
		if _, ok := oi.byNodeParent[e.id][parent]; ok {
			out = append(out, e.id)
		}
	}
	return out
}
