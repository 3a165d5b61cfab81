// Package tree implements Tree and Viewport: the DFS-flattened, per-edge
// expansion-aware presentation layer over a subscription's result set
// (spec.md §4.7 and §9's "single owning arena of TreeNodes indexed by
// NodeId" mandate).
//
// ResultSet ordering (pkg/tracker) and per-edge expansion here are kept
// deliberately separate: a Tree never queries the store directly, only
// the ids/keys its owner (pkg/view) hands it via SetChildren/InsertChild.
//
// Every structural edit here recomputes the whole visible chain in one
// DFS pass rather than splicing incrementally (the O(1)/O(Δ) ambition of
// spec.md §4.7). A view's materialized window is small — a handful of
// expanded subtrees, not the whole graph — so a full recompute per edit
// is the simpler, harder-to-get-wrong choice; see DESIGN.md. Visible
// counts, prev/next chain pointers, and the flat-index cache are all
// derived fresh on every rebuild, so the three invariants of spec.md §3
// hold by construction rather than by careful incremental bookkeeping.
package tree

import (
	"errors"
	"sort"

	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

var (
	// ErrNodeExists is returned when inserting an id already present in the arena.
	ErrNodeExists = errors.New("tree: node already present")
	// ErrNodeNotFound is returned when an operation targets an unknown id.
	ErrNodeNotFound = errors.New("tree: node not found")
)

type edgeKey struct {
	parent store.NodeId
	edge   schema.EdgeId
}

// TreeNode is one entry in the tree's owning arena. Sibling and
// visible-chain links are NodeId handles into that same arena, never raw
// pointers — callers outside this package only ever see NodeIds.
type TreeNode struct {
	ID      store.NodeId
	SortKey value.CompoundKey
	Depth   int

	hasParent  bool
	Parent     store.NodeId
	ParentEdge schema.EdgeId

	expanded map[schema.EdgeId]bool

	VisibleCount int
	FlatIndex    int

	hasPrevVisible bool
	PrevVisible    store.NodeId
	hasNextVisible bool
	NextVisible    store.NodeId
}

// HasParent reports whether n is a child node (false for roots).
func (n *TreeNode) HasParent() bool { return n.hasParent }

// IsExpanded reports whether edge is expanded on this node.
func (n *TreeNode) IsExpanded(edge schema.EdgeId) bool { return n.expanded[edge] }

// ExpandedEdges lists every edge currently expanded on this node, in no
// particular order (callers needing a stable order should sort).
func (n *TreeNode) ExpandedEdges() []schema.EdgeId {
	out := make([]schema.EdgeId, 0, len(n.expanded))
	for e := range n.expanded {
		out = append(out, e)
	}
	return out
}

// OnVisibleChain reports whether n currently has a position in the
// flattened visible chain (its path to root is fully expanded, or it is
// a root).
func (n *TreeNode) OnVisibleChain() bool { return n.FlatIndex >= 0 }

// ChildSpec names one child to install under a parent/edge pair via
// SetChildren or InsertChild.
type ChildSpec struct {
	ID  store.NodeId
	Key value.CompoundKey
}

// Observer bundles the four structural-edit callbacks spec.md §4.7
// defines. A View converts these into client-visible events filtered by
// its Viewport window.
type Observer struct {
	OnWillRemove func(first store.NodeId, startIndex, count int)
	OnDidRemove  func(index, count, newTotal int)
	OnDidInsert  func(first store.NodeId, startIndex, count, newTotal int)
	OnDidMove    func(node store.NodeId, oldIndex, newIndex int)
}

// Tree is the presentation layer over a subscription's result set.
type Tree struct {
	nodes       map[store.NodeId]*TreeNode
	children    map[edgeKey][]store.NodeId      // sorted by SortKey then id
	parentEdges map[store.NodeId][]schema.EdgeId // edges a parent currently has any children under
	roots       []store.NodeId                  // sorted by SortKey then id

	order []store.NodeId // cached DFS flatten of the visible chain
	dirty bool
	total int

	obs Observer
}

// New builds an empty Tree that reports structural edits through obs.
func New(obs Observer) *Tree {
	return &Tree{
		nodes:       make(map[store.NodeId]*TreeNode),
		children:    make(map[edgeKey][]store.NodeId),
		parentEdges: make(map[store.NodeId][]schema.EdgeId),
		obs:         obs,
	}
}

// TotalVisible is the sum of visible_count over roots (spec.md §3).
func (t *Tree) TotalVisible() int {
	t.ensureFlat()
	return t.total
}

// Node exposes a node's arena entry. Used internally by pkg/view; never
// forward a *TreeNode past a View's own public surface.
func (t *Tree) Node(id store.NodeId) (*TreeNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Roots lists the current root ids in sort-key order.
func (t *Tree) Roots() []store.NodeId {
	return append([]store.NodeId(nil), t.roots...)
}

// Children lists the current children of parent under edge, in sort-key order.
func (t *Tree) Children(parent store.NodeId, edge schema.EdgeId) []store.NodeId {
	return append([]store.NodeId(nil), t.children[edgeKey{parent: parent, edge: edge}]...)
}

// HasChildren reports whether parent currently has any children under edge.
func (t *Tree) HasChildren(parent store.NodeId, edge schema.EdgeId) bool {
	return len(t.children[edgeKey{parent: parent, edge: edge}]) > 0
}

// IndexOf returns id's position in the visible chain.
func (t *Tree) IndexOf(id store.NodeId) (int, bool) {
	t.ensureFlat()
	n, ok := t.nodes[id]
	if !ok || n.FlatIndex < 0 {
		return 0, false
	}
	return n.FlatIndex, true
}

// NodeAtIndex returns the id at a visible-chain position.
func (t *Tree) NodeAtIndex(index int) (store.NodeId, bool) {
	t.ensureFlat()
	if index < 0 || index >= len(t.order) {
		return 0, false
	}
	return t.order[index], true
}

// InsertRoot adds a new root node in sort-key order.
func (t *Tree) InsertRoot(id store.NodeId, key value.CompoundKey) error {
	if _, ok := t.nodes[id]; ok {
		return ErrNodeExists
	}
	t.nodes[id] = &TreeNode{ID: id, SortKey: key, expanded: make(map[schema.EdgeId]bool)}
	t.roots, _ = insertSorted(t.roots, t.nodeOf, id)
	t.rebuild()
	return nil
}

// InsertRootAt adds a new root node at an explicit root-level position,
// overriding sort-key placement (used by unsorted subscriptions, where
// root order tracks insertion order instead).
func (t *Tree) InsertRootAt(id store.NodeId, key value.CompoundKey, index int) error {
	if _, ok := t.nodes[id]; ok {
		return ErrNodeExists
	}
	t.nodes[id] = &TreeNode{ID: id, SortKey: key, expanded: make(map[schema.EdgeId]bool)}
	t.roots = insertAt(t.roots, id, index)
	t.rebuild()
	return nil
}

// RemoveRoot removes a root and its entire subtree.
func (t *Tree) RemoveRoot(id store.NodeId) error {
	if _, ok := t.nodes[id]; !ok {
		return ErrNodeNotFound
	}
	pos := findID(t.roots, id)
	if pos < 0 {
		return ErrNodeNotFound
	}
	t.roots = removeAt(t.roots, pos)
	t.removeSubtree(id)
	t.rebuild()
	return nil
}

// MoveRoot repositions an existing root to an explicit index without
// changing its sort key, emitting OnDidMove rather than the generic
// remove/insert pair (spec.md §4.7's moveRoot).
func (t *Tree) MoveRoot(id store.NodeId, newIndex int) error {
	pos := findID(t.roots, id)
	if pos < 0 {
		return ErrNodeNotFound
	}
	t.roots = removeAt(t.roots, pos)
	t.roots = insertAt(t.roots, id, newIndex)
	t.rebuildForMove(id)
	return nil
}

// UpdateRootKey changes a root's sort key and re-sorts it into place,
// emitting OnDidMove if its position changed.
func (t *Tree) UpdateRootKey(id store.NodeId, newKey value.CompoundKey) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	pos := findID(t.roots, id)
	if pos < 0 {
		return ErrNodeNotFound
	}
	t.roots = removeAt(t.roots, pos)
	n.SortKey = newKey
	t.roots, _ = insertSorted(t.roots, t.nodeOf, id)
	t.rebuildForMove(id)
	return nil
}

// SetChildren replaces parent's entire child list under edge.
func (t *Tree) SetChildren(parent store.NodeId, edge schema.EdgeId, items []ChildSpec) error {
	pn, ok := t.nodes[parent]
	if !ok {
		return ErrNodeNotFound
	}
	k := edgeKey{parent: parent, edge: edge}
	for _, old := range t.children[k] {
		t.removeSubtree(old)
	}
	ids := make([]store.NodeId, 0, len(items))
	for _, it := range items {
		if _, exists := t.nodes[it.ID]; exists {
			continue
		}
		t.nodes[it.ID] = &TreeNode{
			ID: it.ID, SortKey: it.Key, Depth: pn.Depth + 1,
			hasParent: true, Parent: parent, ParentEdge: edge,
			expanded: make(map[schema.EdgeId]bool),
		}
		ids = append(ids, it.ID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return value.Compare(t.nodes[ids[i]].SortKey, t.nodes[ids[j]].SortKey) < 0
	})
	t.children[k] = ids
	t.ensureEdgeTracked(parent, edge)
	t.rebuild()
	return nil
}

// InsertChild adds a single child under parent/edge in sort-key order.
func (t *Tree) InsertChild(parent store.NodeId, edge schema.EdgeId, id store.NodeId, key value.CompoundKey) error {
	if _, ok := t.nodes[id]; ok {
		return ErrNodeExists
	}
	pn, ok := t.nodes[parent]
	if !ok {
		return ErrNodeNotFound
	}
	t.nodes[id] = &TreeNode{
		ID: id, SortKey: key, Depth: pn.Depth + 1,
		hasParent: true, Parent: parent, ParentEdge: edge,
		expanded: make(map[schema.EdgeId]bool),
	}
	k := edgeKey{parent: parent, edge: edge}
	t.children[k], _ = insertSorted(t.children[k], t.nodeOf, id)
	t.ensureEdgeTracked(parent, edge)
	t.rebuild()
	return nil
}

// RemoveChild removes a single child (and its own subtree) from its parent.
func (t *Tree) RemoveChild(id store.NodeId) error {
	n, ok := t.nodes[id]
	if !ok || !n.hasParent {
		return ErrNodeNotFound
	}
	k := edgeKey{parent: n.Parent, edge: n.ParentEdge}
	if pos := findID(t.children[k], id); pos >= 0 {
		t.children[k] = removeAt(t.children[k], pos)
	}
	t.removeSubtree(id)
	t.rebuild()
	return nil
}

// Expand marks edge expanded on id, pulling its children (if any) into
// the visible chain provided id's own ancestor path is fully expanded.
func (t *Tree) Expand(id store.NodeId, edge schema.EdgeId) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if n.expanded[edge] {
		return nil
	}
	n.expanded[edge] = true
	t.rebuild()
	return nil
}

// Collapse marks edge collapsed on id.
func (t *Tree) Collapse(id store.NodeId, edge schema.EdgeId) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if !n.expanded[edge] {
		return nil
	}
	delete(n.expanded, edge)
	t.rebuild()
	return nil
}

// ToggleExpand flips edge's expansion state on id.
func (t *Tree) ToggleExpand(id store.NodeId, edge schema.EdgeId) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if n.expanded[edge] {
		return t.Collapse(id, edge)
	}
	return t.Expand(id, edge)
}

func (t *Tree) ensureEdgeTracked(parent store.NodeId, edge schema.EdgeId) {
	for _, e := range t.parentEdges[parent] {
		if e == edge {
			return
		}
	}
	t.parentEdges[parent] = append(t.parentEdges[parent], edge)
}

// removeSubtree deletes id and every descendant from the arena, across
// every edge it currently has children under.
func (t *Tree) removeSubtree(id store.NodeId) {
	if _, ok := t.nodes[id]; !ok {
		return
	}
	for _, edge := range t.parentEdges[id] {
		k := edgeKey{parent: id, edge: edge}
		for _, c := range t.children[k] {
			t.removeSubtree(c)
		}
		delete(t.children, k)
	}
	delete(t.parentEdges, id)
	delete(t.nodes, id)
}

func (t *Tree) nodeOf(id store.NodeId) *TreeNode { return t.nodes[id] }

func (t *Tree) ensureFlat() {
	if t.dirty {
		t.order = t.computeOrder()
		t.dirty = false
	}
}

// computeOrder walks the owned tree honoring expansion state, computing
// visible_count bottom-up and the DFS visible order in one pass, then
// refreshes every node's flat index and chain pointers from it.
func (t *Tree) computeOrder() []store.NodeId {
	// Pass 1: visible_count for every node, bottom-up over the FULL
	// hierarchy (every edge, expanded or not). A node's own count is
	// well-defined independent of whether its ancestors currently expose
	// it on the chain (spec.md §4.7, "expanding while invisible updates
	// only local visible_count"), so this must reach every node in the
	// arena, not just the ones the second pass will surface.
	var countWalk func(id store.NodeId) int
	countWalk = func(id store.NodeId) int {
		n := t.nodes[id]
		count := 1
		for _, edge := range t.parentEdges[id] {
			children := t.children[edgeKey{parent: id, edge: edge}]
			if !n.expanded[edge] {
				for _, c := range children {
					countWalk(c)
				}
				continue
			}
			for _, c := range children {
				count += countWalk(c)
			}
		}
		n.VisibleCount = count
		return count
	}
	for _, r := range t.roots {
		countWalk(r)
	}

	// Pass 2: the DFS visible order, following only expanded edges.
	var order []store.NodeId
	var orderWalk func(id store.NodeId)
	orderWalk = func(id store.NodeId) {
		n := t.nodes[id]
		order = append(order, id)
		for _, edge := range t.parentEdges[id] {
			if !n.expanded[edge] {
				continue
			}
			for _, c := range t.children[edgeKey{parent: id, edge: edge}] {
				orderWalk(c)
			}
		}
	}
	for _, r := range t.roots {
		orderWalk(r)
	}

	onChain := make(map[store.NodeId]bool, len(order))
	for i, id := range order {
		onChain[id] = true
		n := t.nodes[id]
		n.FlatIndex = i
		n.hasPrevVisible = i > 0
		if n.hasPrevVisible {
			n.PrevVisible = order[i-1]
		}
		n.hasNextVisible = i < len(order)-1
		if n.hasNextVisible {
			n.NextVisible = order[i+1]
		}
	}
	for id, n := range t.nodes {
		if !onChain[id] {
			n.hasPrevVisible = false
			n.hasNextVisible = false
			n.FlatIndex = -1
		}
	}
	t.total = len(order)
	return order
}

func (t *Tree) rebuild() {
	old := t.order
	t.order = t.computeOrder()
	t.dirty = false
	t.notifyDiff(old, t.order)
}

// rebuildForMove recomputes the chain and reports the single named node's
// position change as a Move rather than the generic remove/insert diff.
func (t *Tree) rebuildForMove(id store.NodeId) {
	oldIdx, hadOld := -1, false
	if n, ok := t.nodes[id]; ok && n.FlatIndex >= 0 {
		oldIdx, hadOld = n.FlatIndex, true
	}
	t.order = t.computeOrder()
	t.dirty = false
	if n, ok := t.nodes[id]; ok && hadOld && n.FlatIndex != oldIdx && t.obs.OnDidMove != nil {
		t.obs.OnDidMove(id, oldIdx, n.FlatIndex)
	}
}

// notifyDiff reports the contiguous changed region between two chain
// snapshots as a remove (old region) followed by an insert (new region),
// via common-prefix/common-suffix reduction. Every mutating operation in
// this package touches exactly one contiguous subtree or position, so
// this always yields the operation's own edit rather than a spurious
// whole-chain diff.
func (t *Tree) notifyDiff(old, updated []store.NodeId) {
	n := len(old)
	if len(updated) < n {
		n = len(updated)
	}
	prefix := 0
	for prefix < n && old[prefix] == updated[prefix] {
		prefix++
	}
	oldEnd, newEnd := len(old), len(updated)
	suffix := 0
	for suffix < n-prefix && old[oldEnd-1-suffix] == updated[newEnd-1-suffix] {
		suffix++
	}
	oldMidEnd := oldEnd - suffix
	newMidEnd := newEnd - suffix

	removedCount := oldMidEnd - prefix
	insertedCount := newMidEnd - prefix

	if removedCount > 0 {
		if t.obs.OnWillRemove != nil {
			t.obs.OnWillRemove(old[prefix], prefix, removedCount)
		}
		if t.obs.OnDidRemove != nil {
			t.obs.OnDidRemove(prefix, removedCount, prefix+suffix)
		}
	}
	if insertedCount > 0 && t.obs.OnDidInsert != nil {
		t.obs.OnDidInsert(updated[prefix], prefix, insertedCount, len(updated))
	}
}

func insertSorted(ids []store.NodeId, nodeOf func(store.NodeId) *TreeNode, id store.NodeId) ([]store.NodeId, int) {
	key := nodeOf(id).SortKey
	pos := sort.Search(len(ids), func(i int) bool {
		return value.Compare(nodeOf(ids[i]).SortKey, key) >= 0
	})
	return insertAt(ids, id, pos), pos
}

func insertAt(ids []store.NodeId, id store.NodeId, index int) []store.NodeId {
	if index < 0 {
		index = 0
	}
	if index > len(ids) {
		index = len(ids)
	}
	ids = append(ids, 0)
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	return ids
}

func removeAt(ids []store.NodeId, pos int) []store.NodeId {
	return append(ids[:pos], ids[pos+1:]...)
}

func findID(ids []store.NodeId, id store.NodeId) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}
