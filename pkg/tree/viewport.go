package tree

import "github.com/lattice-db/lattice/pkg/store"

// Viewport is a sliding window of height rows over a Tree's visible
// chain. first is a handle into the chain (spec.md §4.7); scrolling by
// one row is an O(1) pointer hop rather than an index recomputation.
type Viewport struct {
	tree     *Tree
	first    store.NodeId
	hasFirst bool
	offset   int
	height   int
}

// NewViewport builds a Viewport of the given height over tree, positioned
// at the top of the current visible chain.
func NewViewport(t *Tree, height int) *Viewport {
	v := &Viewport{tree: t, height: height}
	v.ScrollTo(0)
	return v
}

func clampOffset(offset, total, height int) int {
	max := total - height
	if max < 0 {
		max = 0
	}
	if offset < 0 {
		return 0
	}
	if offset > max {
		return max
	}
	return offset
}

// Offset is the current scroll position (index of the first visible row).
func (v *Viewport) Offset() int { return v.offset }

// Height is the current window size.
func (v *Viewport) Height() int { return v.height }

// ScrollDown advances the window by one row via an O(1) chain hop.
// Reports false if already at the bottom bound.
func (v *Viewport) ScrollDown() bool {
	v.tree.ensureFlat()
	next := clampOffset(v.offset+1, v.tree.total, v.height)
	if next == v.offset {
		return false
	}
	if v.hasFirst {
		if n, ok := v.tree.nodes[v.first]; ok && n.hasNextVisible {
			v.first = n.NextVisible
		}
	}
	v.offset = next
	return true
}

// ScrollUp retreats the window by one row via an O(1) chain hop. Reports
// false if already at the top bound.
func (v *Viewport) ScrollUp() bool {
	v.tree.ensureFlat()
	if v.offset == 0 {
		return false
	}
	if v.hasFirst {
		if n, ok := v.tree.nodes[v.first]; ok && n.hasPrevVisible {
			v.first = n.PrevVisible
		}
	}
	v.offset--
	return true
}

// ScrollBy moves the window by delta rows, O(|delta|).
func (v *Viewport) ScrollBy(delta int) {
	if delta > 0 {
		for i := 0; i < delta; i++ {
			if !v.ScrollDown() {
				break
			}
		}
		return
	}
	for i := 0; i < -delta; i++ {
		if !v.ScrollUp() {
			break
		}
	}
}

// ScrollTo jumps the window so its first row is index n, walking from the
// chain head for determinism (O(n), per spec.md §4.7).
func (v *Viewport) ScrollTo(n int) {
	v.tree.ensureFlat()
	v.offset = clampOffset(n, v.tree.total, v.height)
	id, ok := v.tree.NodeAtIndex(v.offset)
	v.hasFirst = ok
	if ok {
		v.first = id
	}
}

// SetHeight resizes the window, re-clamping the offset.
func (v *Viewport) SetHeight(h int) {
	v.height = h
	v.tree.ensureFlat()
	v.offset = clampOffset(v.offset, v.tree.total, v.height)
	id, ok := v.tree.NodeAtIndex(v.offset)
	v.hasFirst = ok
	if ok {
		v.first = id
	}
}

// Reconcile re-derives offset/first after a structural tree mutation: if
// first is still on the visible chain the window scrolls to its current
// flat index (absorbing any shift from insertions/removals before it;
// when that index is past the bound, the offset is clamped and first
// re-pointed at the row now at the offset); otherwise offset is recovered
// via ScrollTo (spec.md §4.7).
func (v *Viewport) Reconcile() {
	v.tree.ensureFlat()
	if v.hasFirst {
		if n, ok := v.tree.nodes[v.first]; ok && n.FlatIndex >= 0 {
			v.ScrollTo(n.FlatIndex)
			return
		}
	}
	v.ScrollTo(v.offset)
}

// Items returns up to height node ids starting at the current window.
func (v *Viewport) Items() []store.NodeId {
	v.tree.ensureFlat()
	out := make([]store.NodeId, 0, v.height)
	cur, ok := v.first, v.hasFirst
	for i := 0; i < v.height && ok; i++ {
		out = append(out, cur)
		n, found := v.tree.nodes[cur]
		if !found || !n.hasNextVisible {
			break
		}
		cur = n.NextVisible
	}
	return out
}
