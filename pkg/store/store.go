// Package store implements NodeStore: the owner of nodes, their typed
// properties, and bidirectional edge tables (spec.md §4.1).
//
// Mutations pre-validate before touching any state, so a failed operation
// never leaves the store, its indexes, its rollups, or any subscription
// partially updated (spec.md §4.1, §7 tier 2). Each successful mutation
// notifies the Tracker once, after the change is applied; Update passes
// the previous values of the changed properties alongside the new ones so
// observers can diff old vs. new. No notification is sent before a
// mutation is applied.
package store

import (
	"fmt"
	"sync"

	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/value"
)

// NodeId is an opaque, monotonically increasing positive integer assigned
// by the store; ids are never reused, even after deletion (spec.md §3).
type NodeId uint64

// Sentinel operation errors (spec.md §4.1, §6 NodeStoreError).
var (
	ErrUnknownType      = fmt.Errorf("store: unknown type")
	ErrUnknownEdge      = fmt.Errorf("store: unknown edge")
	ErrNodeNotFound     = fmt.Errorf("store: node not found")
	ErrEdgeTargetNotFound = fmt.Errorf("store: edge target not found")
)

// Node owns a TypeId, a NodeId, a property map, and a per-edge-id ordered
// target list.
type Node struct {
	ID         NodeId
	Type       schema.TypeId
	Properties map[string]value.Value
	// edges[edgeID] holds this node's ordered target list for that edge.
	edges map[schema.EdgeId][]NodeId
}

// GetProperty reads a stored property (not a rollup — rollups live in
// pkg/rollup; pkg/exec's field lookup merges the two).
func (n *Node) GetProperty(name string) (value.Value, bool) {
	v, ok := n.Properties[name]
	return v, ok
}

// EdgeTargets returns the ordered target list for edgeID, or nil.
func (n *Node) EdgeTargets(edgeID schema.EdgeId) []NodeId {
	return n.edges[edgeID]
}

// Tracker receives one notification per mutation, after the mutation is
// applied (NodeUpdated also carries the prior property values); there is
// no notification before a mutation is applied. Implemented by
// pkg/tracker.ChangeTracker, pkg/index.Manager and pkg/rollup.Cache; store
// only depends on this narrow interface so pkg/store never imports them.
type Tracker interface {
	NodeInserted(id NodeId, typ schema.TypeId)
	NodeUpdated(id NodeId, before, after map[string]value.Value)
	NodeDeleted(id NodeId, typ schema.TypeId)
	Linked(src NodeId, edge schema.EdgeId, tgt NodeId)
	Unlinked(src NodeId, edge schema.EdgeId, tgt NodeId)
}

// noopTracker discards every notification; used when Store is opened
// without a Tracker (e.g. in isolated pkg/store tests).
type noopTracker struct{}

func (noopTracker) NodeInserted(NodeId, schema.TypeId)                       {}
func (noopTracker) NodeUpdated(NodeId, map[string]value.Value, map[string]value.Value) {}
func (noopTracker) NodeDeleted(NodeId, schema.TypeId)                        {}
func (noopTracker) Linked(NodeId, schema.EdgeId, NodeId)                     {}
func (noopTracker) Unlinked(NodeId, schema.EdgeId, NodeId)                   {}

// Store owns all nodes for one Schema. It is guarded by a mutex following
// the teacher's MemoryEngine convention, even though spec.md §5 describes
// the core as single-threaded cooperative — the lock is cheap insurance
// matching the teacher's own pattern, not a concurrency mechanism the
// reactive layer depends on.
type Store struct {
	mu      sync.RWMutex
	schema  *schema.Schema
	nodes   map[NodeId]*Node
	nextID  NodeId
	tracker Tracker
}

// New creates an empty Store bound to a resolved Schema.
func New(s *schema.Schema) *Store {
	return &Store{
		schema: s,
		nodes:  make(map[NodeId]*Node),
		tracker: noopTracker{},
	}
}

// SetTracker binds the Tracker that receives mutation notifications. Must
// be called before any mutation to guarantee no missed events.
func (s *Store) SetTracker(t Tracker) {
	if t == nil {
		t = noopTracker{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker = t
}

// Count returns the number of live (non-deleted) nodes.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// NodesOfType lists every live node id of the given type, in no
// particular order. Used as the full-scan fallback when a query has no
// index covering its filters; pkg/exec prefers an index.Manager scan
// whenever one is available.
func (s *Store) NodesOfType(t schema.TypeId) []NodeId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []NodeId
	for id, n := range s.nodes {
		if n.Type == t {
			out = append(out, id)
		}
	}
	return out
}

// Schema returns the schema this store was opened with.
func (s *Store) Schema() *schema.Schema { return s.schema }

// Insert creates a new node of the given type with empty properties and
// edges, returning its freshly-assigned NodeId.
func (s *Store) Insert(typeName string) (NodeId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.schema.TypeByName(typeName)
	if !ok {
		return 0, ErrUnknownType
	}

	s.nextID++
	id := s.nextID
	s.nodes[id] = &Node{
		ID:         id,
		Type:       t.ID,
		Properties: make(map[string]value.Value),
		edges:      make(map[schema.EdgeId][]NodeId),
	}
	s.tracker.NodeInserted(id, t.ID)
	return id, nil
}

// Get returns the live node for id.
func (s *Store) Get(id NodeId) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

// TypeDef resolves a node's TypeDef via the schema.
func (s *Store) TypeDef(id NodeId) (*schema.TypeDef, error) {
	s.mu.RLock()
	n, ok := s.nodes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNodeNotFound
	}
	td, _ := s.schema.TypeByID(n.Type)
	return td, nil
}

// Update merges the given property values onto the node, validating every
// property name and type against the schema before mutating anything
// (pre-check, then commit — spec.md §4.1 partial-success prohibition).
func (s *Store) Update(id NodeId, props map[string]value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	td, _ := s.schema.TypeByID(n.Type)

	for name, v := range props {
		pd, ok := td.Property(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
		}
		if v.Kind() != pd.Kind {
			return fmt.Errorf("store: property %q expects %s, got %s", name, pd.Kind, v.Kind())
		}
	}

	before := make(map[string]value.Value, len(props))
	for name := range props {
		before[name] = n.Properties[name]
	}
	for name, v := range props {
		n.Properties[name] = v
	}

	s.reorderEdgesAfterUpdate(n, props)
	s.tracker.NodeUpdated(id, before, props)
	return nil
}

// ErrUnknownProperty is wrapped by Update when a property name is not
// declared on the node's type.
var ErrUnknownProperty = fmt.Errorf("store: unknown property")

// Link appends tgt to src's forward edge list and src to tgt's reverse
// edge list, maintaining sort order if the edge declares one (spec.md
// §4.1 linking semantics). Both pre-checks (edge exists, target exists)
// happen before either list is mutated.
func (s *Store) Link(src NodeId, edgeName string, tgt NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link(src, edgeName, tgt)
}

func (s *Store) link(src NodeId, edgeName string, tgt NodeId) error {
	srcNode, ok := s.nodes[src]
	if !ok {
		return ErrNodeNotFound
	}
	tgtNode, ok := s.nodes[tgt]
	if !ok {
		return ErrEdgeTargetNotFound
	}
	td, _ := s.schema.TypeByID(srcNode.Type)
	ed, ok := td.Edge(edgeName)
	if !ok {
		return ErrUnknownEdge
	}
	tgtTd, _ := s.schema.TypeByID(tgtNode.Type)
	revEd := &tgtTd.Edges[ed.ReverseID]

	s.insertIntoEdgeList(srcNode, ed.ID, tgt, s.sortKeyFunc(ed), edgeDirection(ed))
	s.insertIntoEdgeList(tgtNode, ed.ReverseID, src, s.sortKeyFunc(revEd), edgeDirection(revEd))

	s.tracker.Linked(src, ed.ID, tgt)
	return nil
}

// sortKeyFunc returns a function that reads the property named by ed's
// sort directive off an arbitrary node, or nil if the edge is unsorted.
func (s *Store) sortKeyFunc(ed *schema.EdgeDef) func(NodeId) (value.Value, bool) {
	if ed.Sort == nil {
		return func(NodeId) (value.Value, bool) { return value.Value{}, false }
	}
	return func(id NodeId) (value.Value, bool) {
		n, ok := s.nodes[id]
		if !ok {
			return value.Value{}, false
		}
		return n.GetProperty(ed.Sort.Property)
	}
}

// edgeDirection returns the edge's declared sort direction, or Asc if the
// edge is unsorted (direction is then irrelevant).
func edgeDirection(ed *schema.EdgeDef) value.Direction {
	if ed.Sort == nil {
		return value.Asc
	}
	return ed.Sort.Direction
}

// insertIntoEdgeList inserts tgt into node's edge list for edgeID, either
// at its sorted position (sortKeyOf returns the target's sort-relevant
// property, ordered per dir) or at the end (insertion order, when the
// edge is unsorted).
func (s *Store) insertIntoEdgeList(n *Node, edgeID schema.EdgeId, tgt NodeId, sortKeyOf func(NodeId) (value.Value, bool), dir value.Direction) {
	list := n.edges[edgeID]
	sortVal, hasSort := sortKeyOf(tgt)
	if !hasSort {
		n.edges[edgeID] = append(list, tgt)
		return
	}
	pos := len(list)
	for i, existing := range list {
		ev, ok := sortKeyOf(existing)
		if !ok {
			continue
		}
		cmp := value.Compare(sortVal, ev)
		if dir == value.Desc {
			cmp = -cmp
		}
		if cmp < 0 {
			pos = i
			break
		}
	}
	list = append(list, 0)
	copy(list[pos+1:], list[pos:])
	list[pos] = tgt
	n.edges[edgeID] = list
}

// reorderEdgesAfterUpdate re-sorts every edge list (on any node) whose
// sort directive references one of the just-changed properties on n. This
// realizes spec.md §4.1: "a later property change on that target reorders
// the owning edge's list."
func (s *Store) reorderEdgesAfterUpdate(n *Node, changed map[string]value.Value) {
	td, _ := s.schema.TypeByID(n.Type)
	// Nodes referencing n as a target under a sorted edge are found via
	// n's own reverse edges: for each of n's outgoing edges, its targets
	// are the parents that reached n along that edge's reverse, so we
	// resort each such parent's forward list.
	for _, ed := range td.Edges {
		for _, parent := range n.edges[ed.ID] {
			parentNode, ok := s.nodes[parent]
			if !ok {
				continue
			}
			parentTd, _ := s.schema.TypeByID(parentNode.Type)
			fwd := &parentTd.Edges[ed.ReverseID]
			if fwd.Sort == nil {
				continue
			}
			if _, touched := changed[fwd.Sort.Property]; !touched {
				continue
			}
			s.resortEdgeList(parentNode, fwd.ID)
		}
	}
}

func (s *Store) resortEdgeList(n *Node, edgeID schema.EdgeId) {
	td, _ := s.schema.TypeByID(n.Type)
	ed := &td.Edges[edgeID]
	list := n.edges[edgeID]
	if ed.Sort == nil || len(list) < 2 {
		return
	}
	sortVals := make([]value.Value, len(list))
	for i, id := range list {
		if node, ok := s.nodes[id]; ok {
			sortVals[i], _ = node.GetProperty(ed.Sort.Property)
		}
	}
	// simple insertion sort: edge lists are expected small (fan-out, not
	// the whole graph), matching the teacher's preference for direct
	// index maintenance over a general-purpose sort in the hot path.
	for i := 1; i < len(list); i++ {
		j := i
		for j > 0 && outOfOrder(sortVals[j-1], sortVals[j], ed.Sort.Direction) {
			list[j-1], list[j] = list[j], list[j-1]
			sortVals[j-1], sortVals[j] = sortVals[j], sortVals[j-1]
			j--
		}
	}
	n.edges[edgeID] = list
}

// outOfOrder reports whether prev should come after cur under dir.
func outOfOrder(prev, cur value.Value, dir value.Direction) bool {
	cmp := value.Compare(prev, cur)
	if dir == value.Desc {
		cmp = -cmp
	}
	return cmp > 0
}

// Unlink removes tgt from src's forward edge list and src from tgt's
// reverse edge list.
func (s *Store) Unlink(src NodeId, edgeName string, tgt NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlink(src, edgeName, tgt)
}

func (s *Store) unlink(src NodeId, edgeName string, tgt NodeId) error {
	srcNode, ok := s.nodes[src]
	if !ok {
		return ErrNodeNotFound
	}
	tgtNode, ok := s.nodes[tgt]
	if !ok {
		return ErrEdgeTargetNotFound
	}
	td, _ := s.schema.TypeByID(srcNode.Type)
	ed, ok := td.Edge(edgeName)
	if !ok {
		return ErrUnknownEdge
	}

	removeFromList(srcNode, ed.ID, tgt)
	removeFromList(tgtNode, ed.ReverseID, src)

	s.tracker.Unlinked(src, ed.ID, tgt)
	return nil
}

func removeFromList(n *Node, edgeID schema.EdgeId, target NodeId) {
	list := n.edges[edgeID]
	for i, id := range list {
		if id == target {
			n.edges[edgeID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// GetEdgeTargets returns the ordered target list for a named edge.
func (s *Store) GetEdgeTargets(id NodeId, edgeName string) ([]NodeId, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	td, _ := s.schema.TypeByID(n.Type)
	ed, ok := td.Edge(edgeName)
	if !ok {
		return nil, ErrUnknownEdge
	}
	out := make([]NodeId, len(n.edges[ed.ID]))
	copy(out, n.edges[ed.ID])
	return out, nil
}

// Delete removes a node, first cascading an Unlink over every outgoing and
// incoming edge (emitting per-edge unlink notifications), then emitting
// the node delete (spec.md §4.1 delete cascade).
func (s *Store) Delete(id NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	td, _ := s.schema.TypeByID(n.Type)

	for _, ed := range td.Edges {
		for _, tgt := range append([]NodeId(nil), n.edges[ed.ID]...) {
			_ = s.unlink(id, ed.Name, tgt)
		}
	}
	// Incoming edges: any other node whose forward list still contains id
	// after the above (edges not declared on td but pointing at this node
	// are impossible under the schema's reverse-edge invariant, so the
	// loop above already covers every edge incident to id).

	delete(s.nodes, id)
	s.tracker.NodeDeleted(id, n.Type)
	return nil
}
