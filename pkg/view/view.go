// Package view implements View: binds a tracker.Subscription to a
// tree.Tree and tree.Viewport, translating the subscription's flat
// enter/leave/change/move stream into root-level tree edits and
// (separately) expanding individual nodes' edges on demand into nested
// tree children — filtering every resulting client callback down to
// whatever the current viewport window actually shows (spec.md §4.8).
//
// Doc-comment density and the Options-free constructor style here follow
// the teacher's own top-level facade, pkg/nornicdb/db.go.
package view

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/lattice-db/lattice/pkg/exec"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/tracker"
	"github.com/lattice-db/lattice/pkg/tree"
	"github.com/lattice-db/lattice/pkg/value"
)

// Event is a client-visible notification: a tracker event that survived
// the viewport's visibility filter.
type Event struct {
	Kind tracker.EventKind
	ID   store.NodeId
	Item *exec.Item
}

// Row is one line of View.Items()'s output.
type Row struct {
	ID            store.NodeId
	Depth         int
	ExpandedEdges []schema.EdgeId
}

// View wraps one subscription's reactive result set in a windowed,
// expandable tree. Nested edges are not kept live-reactive by
// tracker.ChangeTracker (whose own scope is the flat root-level result
// set, see DESIGN.md's pkg/tracker entry) — expanding an edge loads a
// point-in-time snapshot of its current targets; re-expanding after a
// mutation refreshes it. This is a deliberate scope reduction recorded
// as an Open Question resolution in DESIGN.md, not an oversight.
type View struct {
	ID     string
	query  *query.Query
	ex     *exec.Executor
	schema *schema.Schema
	ct     *tracker.ChangeTracker
	sub    *tracker.Subscription

	tr *tree.Tree
	vp *tree.Viewport

	// expansion survives tree-internal clears (e.g. a future viewport
	// reload) because it lives outside the Tree arena entirely.
	expansion map[store.NodeId]map[schema.EdgeId]bool

	onEvent func(Event)
	inItems bool
}

// New subscribes q against ct and returns a View over the live result,
// windowed to height rows. onEvent receives every enter/leave/change/move
// whose node currently falls inside the viewport.
func New(ct *tracker.ChangeTracker, ex *exec.Executor, s *schema.Schema, q *query.Query, height int, onEvent func(Event)) (*View, error) {
	v := &View{
		query:     q,
		ex:        ex,
		schema:    s,
		ct:        ct,
		expansion: make(map[store.NodeId]map[schema.EdgeId]bool),
		onEvent:   onEvent,
	}
	v.tr = tree.New(tree.Observer{
		OnDidInsert: v.onNestedInsert,
		OnDidRemove: v.onNestedRemove,
		OnDidMove:   v.onNestedMove,
	})
	v.vp = tree.NewViewport(v.tr, height)

	sub, err := ct.Subscribe(q, v.handleTrackerEvent)
	if err != nil {
		return nil, err
	}
	v.sub = sub
	v.ID = uuid.NewString()
	return v, nil
}

// Close unsubscribes the bound tracker subscription; the View must not be
// used afterward.
func (v *View) Close() {
	v.ct.Unsubscribe(v.sub.ID)
}

func (v *View) emit(e Event) {
	if v.onEvent != nil {
		v.onEvent(e)
	}
}

func (v *View) isVisible(id store.NodeId) bool {
	idx, onChain := v.tr.IndexOf(id)
	if !onChain {
		return false
	}
	return idx >= v.vp.Offset() && idx < v.vp.Offset()+v.vp.Height()
}

// handleTrackerEvent is the Subscription's callback: it keeps the tree's
// root list in sync with the subscription's result set and re-emits a
// client Event only when the affected node is currently inside the
// viewport window.
func (v *View) handleTrackerEvent(e tracker.Event) {
	switch e.Kind {
	case tracker.Enter:
		_ = v.tr.InsertRoot(e.ID, v.rootSortKey(e.ID))
		v.vp.Reconcile()
		if v.isVisible(e.ID) {
			v.emit(Event{Kind: e.Kind, ID: e.ID, Item: e.Item})
		}
	case tracker.Leave:
		wasVisible := v.isVisible(e.ID)
		_ = v.tr.RemoveRoot(e.ID)
		delete(v.expansion, e.ID)
		v.vp.Reconcile()
		if wasVisible {
			v.emit(Event{Kind: e.Kind, ID: e.ID, Item: e.Item})
		}
	case tracker.Change:
		if v.isVisible(e.ID) {
			v.emit(Event{Kind: e.Kind, ID: e.ID, Item: e.Item})
		}
	case tracker.Move:
		_ = v.tr.UpdateRootKey(e.ID, v.rootSortKey(e.ID))
		v.vp.Reconcile()
		if v.isVisible(e.ID) {
			v.emit(Event{Kind: e.Kind, ID: e.ID, Item: e.Item})
		}
	}
}

// onNestedInsert/onNestedRemove/onNestedMove translate tree.Observer
// callbacks fired by Expand/Collapse into client events, filtered the
// same way as the root-level path. The tree doesn't hand us ids for a
// remove, only a count, so leave events for a collapsed range are
// reported with Item nil — the client already has the Enter-time Item
// for those nodes from when they were first expanded into view.
func (v *View) onNestedInsert(first store.NodeId, startIndex, count, newTotal int) {
	for i := startIndex; i < startIndex+count; i++ {
		id, ok := v.tr.NodeAtIndex(i)
		if !ok || !v.isVisible(id) {
			continue
		}
		item, ok := v.materialize(id)
		if ok {
			v.emit(Event{Kind: tracker.Enter, ID: id, Item: &item})
		}
	}
}

func (v *View) onNestedRemove(index, count, newTotal int) {
	if count == 0 {
		return
	}
	if index >= v.vp.Offset()+v.vp.Height() || index+count <= v.vp.Offset() {
		return
	}
	v.emit(Event{Kind: tracker.Leave})
}

func (v *View) onNestedMove(node store.NodeId, oldIndex, newIndex int) {
	if v.isVisible(node) {
		v.emit(Event{Kind: tracker.Move, ID: node})
	}
}

func (v *View) materialize(id store.NodeId) (exec.Item, bool) {
	n, err := v.ex.Get(id)
	if err != nil {
		return exec.Item{}, false
	}
	td := v.ex.TypeDef(n.Type)
	return v.ex.Materialize(td, id, 0, nil)
}

func (v *View) rootSortKey(id store.NodeId) value.CompoundKey {
	n, err := v.ex.Get(id)
	if err != nil {
		return nil
	}
	b := value.NewBuilder()
	for _, s := range v.query.Sorts {
		val, _ := v.ex.FieldValue(n, s.Field)
		b.AppendValue(val, s.Direction)
	}
	b.AppendID(uint64(id))
	return b.Build()
}

func (v *View) childSortKey(id store.NodeId, ed *schema.EdgeDef) value.CompoundKey {
	b := value.NewBuilder()
	if ed.Sort != nil {
		if n, err := v.ex.Get(id); err == nil {
			val, _ := v.ex.FieldValue(n, ed.Sort.Property)
			b.AppendValue(val, ed.Sort.Direction)
		}
	}
	b.AppendID(uint64(id))
	return b.Build()
}

func (v *View) markExpanded(id store.NodeId, edge schema.EdgeId) {
	m, ok := v.expansion[id]
	if !ok {
		m = make(map[schema.EdgeId]bool)
		v.expansion[id] = m
	}
	m[edge] = true
}

// Expand loads edgeName's current targets on id into the tree and
// expands it, filling visible rows lazily (only the expanded subtree is
// ever materialized).
func (v *View) Expand(id store.NodeId, edgeName string) error {
	n, err := v.ex.Get(id)
	if err != nil {
		return err
	}
	td := v.ex.TypeDef(n.Type)
	ed, ok := td.Edge(edgeName)
	if !ok {
		return fmt.Errorf("view: unknown edge %q on type %q", edgeName, td.Name)
	}
	targets := v.ex.EdgeTargets(id, ed.ID)
	specs := make([]tree.ChildSpec, 0, len(targets))
	for _, tid := range targets {
		specs = append(specs, tree.ChildSpec{ID: tid, Key: v.childSortKey(tid, ed)})
	}
	if err := v.tr.SetChildren(id, ed.ID, specs); err != nil {
		return err
	}
	if err := v.tr.Expand(id, ed.ID); err != nil {
		return err
	}
	v.markExpanded(id, ed.ID)
	v.vp.Reconcile()
	return nil
}

// Collapse folds edgeName on id back up, clearing its descendants from
// the visible chain (they remain cached in the tree arena until the next
// Expand, which reloads them fresh from the store).
func (v *View) Collapse(id store.NodeId, edgeName string) error {
	n, err := v.ex.Get(id)
	if err != nil {
		return err
	}
	td := v.ex.TypeDef(n.Type)
	ed, ok := td.Edge(edgeName)
	if !ok {
		return fmt.Errorf("view: unknown edge %q on type %q", edgeName, td.Name)
	}
	if err := v.tr.Collapse(id, ed.ID); err != nil {
		return err
	}
	if m, ok := v.expansion[id]; ok {
		delete(m, ed.ID)
	}
	v.vp.Reconcile()
	return nil
}

// ExpandAll expands edgeName on every root and, recursively, on every
// node it reveals, down to maxDepth levels (maxDepth < 0 means
// unbounded).
func (v *View) ExpandAll(edgeName string, maxDepth int) error {
	var walk func(id store.NodeId, depth int) error
	walk = func(id store.NodeId, depth int) error {
		if maxDepth >= 0 && depth > maxDepth {
			return nil
		}
		if err := v.Expand(id, edgeName); err != nil {
			return err
		}
		n, err := v.ex.Get(id)
		if err != nil {
			return nil
		}
		td := v.ex.TypeDef(n.Type)
		ed, ok := td.Edge(edgeName)
		if !ok {
			return nil
		}
		for _, c := range v.tr.Children(id, ed.ID) {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range v.tr.Roots() {
		if err := walk(r, 0); err != nil {
			return err
		}
	}
	return nil
}

// CollapseAll clears all expansion state under edgeName, wherever in the
// tree a node of a type that declares that edge has it expanded.
func (v *View) CollapseAll(edgeName string) {
	for id, edges := range v.expansion {
		n, err := v.ex.Get(id)
		if err != nil {
			continue
		}
		td := v.ex.TypeDef(n.Type)
		ed, ok := td.Edge(edgeName)
		if !ok || !edges[ed.ID] {
			continue
		}
		_ = v.tr.Collapse(id, ed.ID)
		delete(edges, ed.ID)
	}
	v.vp.Reconcile()
}

// ApplySelections materializes a query.EdgeSelection tree onto id as a
// one-shot snapshot, the declarative counterpart to hand-driving
// Expand/Collapse: every non-virtual selection becomes a real tree level;
// a virtual selection (spec.md §4.5's "pass-through" hop) is never
// inserted into the tree itself — its own selections attach directly to
// the nearest real ancestor, merged across every instance of the virtual
// edge's targets, so a Thread -> frames -> scopes(virtual) -> variables
// selection shows variables as direct children of frames with scopes
// elided. Like Expand, this is a snapshot: a later Link/Unlink under an
// elided virtual hop is not picked up until ApplySelections is called
// again for that subtree (recorded in DESIGN.md as a scope decision, not
// an oversight — tracker.ChangeTracker's own reactive scope is the flat
// root-level result set, and giving every virtual branch its own live
// subscription is out of scope here).
func (v *View) ApplySelections(id store.NodeId, sels []query.EdgeSelection) error {
	for _, sel := range sels {
		if err := v.applySelection(id, []store.NodeId{id}, sel); err != nil {
			return err
		}
	}
	v.vp.Reconcile()
	return nil
}

// applySelection reads sel's edge off every node in sources (more than
// one only when sel is reached through one or more virtual hops) and, for
// a real edge, attaches the merged, de-duplicated target set to attachTo
// as one tree level; for a virtual edge, recurses sel.Selections with the
// same attachTo and the merged targets as the new sources, eliding this
// level entirely.
func (v *View) applySelection(attachTo store.NodeId, sources []store.NodeId, sel query.EdgeSelection) error {
	var ed *schema.EdgeDef
	var targets []store.NodeId
	seen := make(map[store.NodeId]bool)
	for _, src := range sources {
		n, err := v.ex.Get(src)
		if err != nil {
			continue
		}
		td := v.ex.TypeDef(n.Type)
		e, ok := td.Edge(sel.Name)
		if !ok {
			return fmt.Errorf("view: unknown edge %q on type %q", sel.Name, td.Name)
		}
		ed = e
		for _, tgt := range v.ex.EdgeTargets(src, e.ID) {
			if !seen[tgt] {
				seen[tgt] = true
				targets = append(targets, tgt)
			}
		}
	}
	if ed == nil {
		return nil
	}

	if sel.Virtual {
		for _, nested := range sel.Selections {
			if err := v.applySelection(attachTo, targets, nested); err != nil {
				return err
			}
		}
		return nil
	}

	specs := make([]tree.ChildSpec, 0, len(targets))
	for _, tgt := range targets {
		specs = append(specs, tree.ChildSpec{ID: tgt, Key: v.childSortKey(tgt, ed)})
	}
	if err := v.tr.SetChildren(attachTo, ed.ID, specs); err != nil {
		return err
	}
	if err := v.tr.Expand(attachTo, ed.ID); err != nil {
		return err
	}
	v.markExpanded(attachTo, ed.ID)

	for _, tgt := range targets {
		for _, nested := range sel.Selections {
			if err := v.applySelection(tgt, []store.NodeId{tgt}, nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScrollTo, Move, and SetHeight delegate directly to the bound Viewport.
func (v *View) ScrollTo(n int)  { v.vp.ScrollTo(n) }
func (v *View) Move(delta int)  { v.vp.ScrollBy(delta) }
func (v *View) SetHeight(h int) { v.vp.SetHeight(h) }

// Items returns the current window's rows. It emits no events, so calling
// it from an event callback cannot regenerate events (the footgun
// spec.md §5 calls out); a nested call made while Items is already
// running returns nil.
func (v *View) Items() []Row {
	if v.inItems {
		return nil
	}
	v.inItems = true
	defer func() { v.inItems = false }()

	ids := v.vp.Items()
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		n, ok := v.tr.Node(id)
		if !ok {
			continue
		}
		rows = append(rows, Row{
			ID:            id,
			Depth:         n.Depth,
			ExpandedEdges: n.ExpandedEdges(),
		})
	}
	return rows
}
