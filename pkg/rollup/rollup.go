// Package rollup implements Cache: write-time recomputation of the
// derived per-node fields spec.md §4.3 calls rollups — count, traverse,
// first, last — kept current as edges link/unlink and target properties
// change, so a read never triggers computation on the hot path.
//
// The recompute-on-write discipline mirrors pkg/storage/schema.go's
// constraint/index invalidation in the teacher (indexes there are kept
// current as data changes, never rebuilt lazily on read) and pkg/decay's
// pattern of a derived numeric field (DecayScore) maintained alongside
// the record it describes.
package rollup

import (
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

// Cache owns every node's resolved rollup values, recomputed incrementally
// as the bound Store mutates.
type Cache struct {
	schema *schema.Schema
	store  *store.Store
	values map[store.NodeId]map[string]value.Value
}

// New builds an empty Cache bound to a Store; wire it as one of the
// Store's fan-out Tracker observers (alongside index.Manager and
// tracker.ChangeTracker) so it sees every mutation.
func New(s *schema.Schema, st *store.Store) *Cache {
	return &Cache{schema: s, store: st, values: make(map[store.NodeId]map[string]value.Value)}
}

var _ store.Tracker = (*Cache)(nil)

// Get reads a resolved rollup value; satisfies index.RollupReader so
// rollups participate in indexes like any stored property.
func (c *Cache) Get(id store.NodeId, name string) (value.Value, bool) {
	m, ok := c.values[id]
	if !ok {
		return value.Value{}, false
	}
	v, ok := m[name]
	return v, ok
}

func (c *Cache) typeDef(t schema.TypeId) *schema.TypeDef {
	td, _ := c.schema.TypeByID(t)
	return td
}

// NodeInserted seeds every declared rollup on the new node's type with its
// empty-edge-list value (0 for count, null for traverse/first/last).
func (c *Cache) NodeInserted(id store.NodeId, typ schema.TypeId) {
	td := c.typeDef(typ)
	if td == nil || len(td.Rollups) == 0 {
		return
	}
	c.recomputeAll(id, td)
}

// NodeDeleted drops the cache entry; the cascade unlink that Store runs
// before deleting has already recomputed every parent rollup that
// referenced this node (see Unlinked).
func (c *Cache) NodeDeleted(id store.NodeId, _ schema.TypeId) {
	delete(c.values, id)
}

// NodeUpdated recomputes every rollup, on every node that reaches this
// node through an edge, whose Property was just changed. This mirrors
// store.Store.reorderEdgesAfterUpdate: walk the updated node's own edge
// lists to find parents, then check each parent's rollups defined over
// the reverse edge.
func (c *Cache) NodeUpdated(id store.NodeId, _, after map[string]value.Value) {
	n, err := c.store.Get(id)
	if err != nil {
		return
	}
	td := c.typeDef(n.Type)
	if td == nil {
		return
	}
	for _, ed := range td.Edges {
		for _, parent := range n.EdgeTargets(ed.ID) {
			c.maybeRecomputeParent(parent, ed.ReverseID, after)
		}
	}
}

func (c *Cache) maybeRecomputeParent(parent store.NodeId, viaEdge schema.EdgeId, changed map[string]value.Value) {
	pn, err := c.store.Get(parent)
	if err != nil {
		return
	}
	ptd := c.typeDef(pn.Type)
	if ptd == nil {
		return
	}
	for _, rd := range ptd.Rollups {
		if rd.Edge != viaEdge {
			continue
		}
		if rd.Kind == schema.RollupCount {
			continue // count never depends on a target's properties
		}
		if _, touched := changed[rd.Property]; !touched {
			continue
		}
		c.recomputeOne(parent, ptd, rd)
	}
}

// Linked recomputes every rollup on src defined over the edge just
// created, and every rollup on tgt defined over its reverse.
func (c *Cache) Linked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	c.recomputeEdgeRollups(src, edge)
	if rev, ok := c.reverseOf(src, edge); ok {
		c.recomputeEdgeRollups(tgt, rev)
	}
}

// Unlinked recomputes the same rollups Linked populated.
func (c *Cache) Unlinked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	c.recomputeEdgeRollups(src, edge)
	if rev, ok := c.reverseOf(src, edge); ok {
		c.recomputeEdgeRollups(tgt, rev)
	}
}

func (c *Cache) reverseOf(src store.NodeId, edge schema.EdgeId) (schema.EdgeId, bool) {
	n, err := c.store.Get(src)
	if err != nil {
		return 0, false
	}
	td := c.typeDef(n.Type)
	if td == nil || int(edge) >= len(td.Edges) {
		return 0, false
	}
	return td.Edges[edge].ReverseID, true
}

func (c *Cache) recomputeEdgeRollups(id store.NodeId, viaEdge schema.EdgeId) {
	n, err := c.store.Get(id)
	if err != nil {
		return
	}
	td := c.typeDef(n.Type)
	if td == nil {
		return
	}
	for _, rd := range td.Rollups {
		if rd.Edge == viaEdge {
			c.recomputeOne(id, td, rd)
		}
	}
}

func (c *Cache) recomputeAll(id store.NodeId, td *schema.TypeDef) {
	for _, rd := range td.Rollups {
		c.recomputeOne(id, td, rd)
	}
}

func (c *Cache) recomputeOne(id store.NodeId, td *schema.TypeDef, rd schema.RollupDef) {
	n, err := c.store.Get(id)
	if err != nil {
		return
	}
	targets := n.EdgeTargets(rd.Edge)

	var result value.Value
	switch rd.Kind {
	case schema.RollupCount:
		result = value.Int(int64(len(targets)))
	case schema.RollupTraverse:
		result = c.endpointProperty(targets, rd.Property, true)
	case schema.RollupFirst:
		result = c.endpointProperty(targets, rd.Property, true)
	case schema.RollupLast:
		result = c.endpointProperty(targets, rd.Property, false)
	default:
		return
	}

	if c.values[id] == nil {
		c.values[id] = make(map[string]value.Value)
	}
	c.values[id][rd.Name] = result
}

func (c *Cache) sumProperty(targets []store.NodeId, property string) float64 {
	var sum float64
	for _, t := range targets {
		n, err := c.store.Get(t)
		if err != nil {
			continue
		}
		v, ok := n.GetProperty(property)
		if !ok {
			continue
		}
		switch v.Kind() {
		case value.KindInt:
			sum += float64(v.Int())
		case value.KindNumber:
			sum += v.Number()
		}
	}
	return sum
}

// endpointProperty reads the named property off the edge list's first or
// last target. The list's order is whatever the Store maintains for that
// edge — a declared EdgeSort, or insertion order otherwise — so first/last
// are always well-defined, never an error (spec.md §9 Open Question).
func (c *Cache) endpointProperty(targets []store.NodeId, property string, first bool) value.Value {
	if len(targets) == 0 {
		return value.Null()
	}
	var id store.NodeId
	if first {
		id = targets[0]
	} else {
		id = targets[len(targets)-1]
	}
	n, err := c.store.Get(id)
	if err != nil {
		return value.Null()
	}
	v, ok := n.GetProperty(property)
	if !ok {
		return value.Null()
	}
	return v
}
