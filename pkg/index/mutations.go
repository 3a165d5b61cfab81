package index

import (
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

// Manager implements store.Tracker so it can be wired directly as (one of)
// the Store's observers; pkg/lattice fans mutation notifications out to
// Manager, pkg/rollup.Cache, and pkg/tracker.ChangeTracker together.
var _ store.Tracker = (*Manager)(nil)

// NodeInserted creates entries in every scalar (non-cross-entity) index
// declared on the node's type. Cross-entity indexes gain no entry yet —
// they key off a parent that doesn't exist until Linked fires.
func (m *Manager) NodeInserted(id store.NodeId, typ schema.TypeId) {
	td := m.typeDef(typ)
	if td == nil {
		return
	}
	for _, oi := range m.indexes[typ] {
		if oi.crossRef {
			continue
		}
		key := m.buildScalarKey(td, id, oi.def.Fields)
		oi.insert(key, id)
		oi.byNode[id] = key
	}
}

// NodeUpdated moves every index entry whose fields include a changed
// property: the scalar index entry for the node itself, and (if the node
// is currently a linked target of some cross-entity index) each of its
// per-parent cross-entity entries.
func (m *Manager) NodeUpdated(id store.NodeId, before, after map[string]value.Value) {
	n, err := m.store.Get(id)
	if err != nil {
		return
	}
	td := m.typeDef(n.Type)
	if td == nil {
		return
	}

	for _, oi := range m.indexes[n.Type] {
		if !touchesAny(oi.def.Fields, after) {
			continue
		}
		if oi.crossRef {
			for parent, oldKey := range oi.byNodeParent[id] {
				oi.remove(oldKey, id)
				newKey := m.buildCrossKey(td, parent, id, oi.def.Fields)
				oi.insert(newKey, id)
				oi.byNodeParent[id][parent] = newKey
			}
			continue
		}
		oldKey, ok := oi.byNode[id]
		if !ok {
			continue
		}
		oi.remove(oldKey, id)
		newKey := m.buildScalarKey(td, id, oi.def.Fields)
		oi.insert(newKey, id)
		oi.byNode[id] = newKey
	}

	_ = before // retained for symmetry with store.Tracker and future diffing needs
}

func touchesAny(fields []schema.IndexField, changed map[string]value.Value) bool {
	for _, f := range fields {
		if f.Kind != schema.FieldProperty {
			continue
		}
		if _, ok := changed[f.Name]; ok {
			return true
		}
	}
	return false
}

// NodeDeleted drops every index entry that still references id. Store
// already cascades Unlink for every incident edge before calling this, so
// only the node's own scalar entry can remain.
func (m *Manager) NodeDeleted(id store.NodeId, typ schema.TypeId) {
	for _, oi := range m.indexes[typ] {
		if oi.crossRef {
			continue
		}
		if key, ok := oi.byNode[id]; ok {
			oi.remove(key, id)
			delete(oi.byNode, id)
		}
	}
}

// Linked populates cross-entity index entries that key off the reverse of
// the newly-created forward edge.
func (m *Manager) Linked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	srcNode, err := m.store.Get(src)
	if err != nil {
		return
	}
	srcTd := m.typeDef(srcNode.Type)
	if srcTd == nil || int(edge) >= len(srcTd.Edges) {
		return
	}
	revEdgeID := srcTd.Edges[edge].ReverseID

	tgtNode, err := m.store.Get(tgt)
	if err != nil {
		return
	}
	tgtTd := m.typeDef(tgtNode.Type)
	if tgtTd == nil {
		return
	}

	for _, pos := range m.crossByEdge[tgtNode.Type][revEdgeID] {
		oi := m.indexes[tgtNode.Type][pos]
		key := m.buildCrossKey(tgtTd, src, tgt, oi.def.Fields)
		oi.insert(key, tgt)
		if oi.byNodeParent[tgt] == nil {
			oi.byNodeParent[tgt] = make(map[store.NodeId]value.CompoundKey)
		}
		oi.byNodeParent[tgt][src] = key
	}
}

// Unlinked removes the cross-entity index entries created by the matching
// Linked call.
func (m *Manager) Unlinked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	srcNode, err := m.store.Get(src)
	var srcType schema.TypeId
	if err == nil {
		srcType = srcNode.Type
	}
	td := m.typeDef(srcType)
	var revEdgeID schema.EdgeId
	if td != nil && int(edge) < len(td.Edges) {
		revEdgeID = td.Edges[edge].ReverseID
	}

	tgtNode, err := m.store.Get(tgt)
	if err != nil {
		// Node already gone (delete cascade); still try to scrub entries by
		// scanning every cross-entity index for this parent/target pair.
		for _, ois := range m.indexes {
			for _, oi := range ois {
				if !oi.crossRef {
					continue
				}
				if key, ok := oi.byNodeParent[tgt][src]; ok {
					oi.remove(key, tgt)
					delete(oi.byNodeParent[tgt], src)
				}
			}
		}
		return
	}

	for _, pos := range m.crossByEdge[tgtNode.Type][revEdgeID] {
		oi := m.indexes[tgtNode.Type][pos]
		if key, ok := oi.byNodeParent[tgt][src]; ok {
			oi.remove(key, tgt)
			delete(oi.byNodeParent[tgt], src)
		}
	}
}

// buildCrossKey encodes a cross-entity index's key: the parent's NodeId
// (standing in for "the edge field") followed by the target's own
// remaining fields (spec.md §4.2: "the key contains the parent reference
// followed by the target's own sort fields").
func (m *Manager) buildCrossKey(td *schema.TypeDef, parent, tgt store.NodeId, fields []schema.IndexField) value.CompoundKey {
	n, err := m.store.Get(tgt)
	if err != nil {
		return nil
	}
	b := value.NewBuilder()
	for i, f := range fields {
		if i == 0 && f.Kind == schema.FieldEdge {
			b.AppendValue(value.Int(int64(parent)), f.Direction)
			continue
		}
		b.AppendValue(m.fieldValue(td, n, f.Name), f.Direction)
	}
	b.AppendID(uint64(tgt))
	return b.Build()
}
