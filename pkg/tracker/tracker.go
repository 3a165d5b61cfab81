// Package tracker implements ChangeTracker and ResultSet: the reactive
// layer that keeps a subscription's sorted match set current as the bound
// Store mutates, emitting enter/leave/change/move events (spec.md §4.6).
//
// ResultSet pairs a container/list doubly-linked list (display order) with
// a map for O(1) membership lookup (a position lookup walks the list), the same combination the
// teacher's pkg/cache/query_cache.go uses for its LRU list. Event-kind
// naming (enter/leave/change/move rather than created/updated/deleted)
// is this spec's own reactive vocabulary, but the create/update/delete ->
// typed-event-struct shape is grounded on the pack's only other reactive
// precedent, other_examples' graphdb pubsub NodeEvent/EdgeEvent design.
package tracker

import (
	"container/list"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattice-db/lattice/pkg/exec"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

// ErrUnknownRootType is returned by Subscribe when the query's root type
// name isn't declared in the bound schema.
var ErrUnknownRootType = fmt.Errorf("tracker: unknown root type")

// EventKind names the four reactive transitions spec.md §4.6 defines.
type EventKind string

const (
	Enter  EventKind = "enter"
	Leave  EventKind = "leave"
	Change EventKind = "change"
	Move   EventKind = "move"
)

// Event is delivered to a Subscription's callback. Item is populated for
// Enter and Change. For Move, FromIndex/ToIndex are the old and new
// positions; for Leave, FromIndex is the old position and ToIndex is -1;
// Enter and Change leave both at 0.
type Event struct {
	Kind      EventKind
	ID        store.NodeId
	Item      *exec.Item
	FromIndex int
	ToIndex   int
}

// ResultSet is a sorted doubly-linked list of matching node ids (the
// display order) plus a map from id to its list element, giving O(1)
// membership tests and O(1) removal alongside ordered iteration.
type ResultSet struct {
	order    *list.List
	elements map[store.NodeId]*list.Element
}

func newResultSet() *ResultSet {
	return &ResultSet{order: list.New(), elements: make(map[store.NodeId]*list.Element)}
}

func (r *ResultSet) has(id store.NodeId) bool {
	_, ok := r.elements[id]
	return ok
}

func (r *ResultSet) indexOf(id store.NodeId) int {
	i := 0
	for e := r.order.Front(); e != nil; e = e.Next() {
		if e.Value.(store.NodeId) == id {
			return i
		}
		i++
	}
	return -1
}

func (r *ResultSet) remove(id store.NodeId) {
	e, ok := r.elements[id]
	if !ok {
		return
	}
	r.order.Remove(e)
	delete(r.elements, id)
}

// insertSorted inserts id before the first entry less() reports as
// "should come after id", maintaining a total order defined by less.
func (r *ResultSet) insertSorted(id store.NodeId, less func(a, b store.NodeId) bool) {
	for e := r.order.Front(); e != nil; e = e.Next() {
		if less(id, e.Value.(store.NodeId)) {
			r.elements[id] = r.order.InsertBefore(id, e)
			return
		}
	}
	r.elements[id] = r.order.PushBack(id)
}

// Ids returns the current display order.
func (r *ResultSet) Ids() []store.NodeId {
	out := make([]store.NodeId, 0, r.order.Len())
	for e := r.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(store.NodeId))
	}
	return out
}

// Subscription tracks one query's live match set.
type Subscription struct {
	ID       string
	Query    *query.Query
	rootType schema.TypeId
	results  *ResultSet
	onEvent  func(Event)
}

// Results exposes the subscription's current sorted match set.
func (s *Subscription) Results() []store.NodeId { return s.results.Ids() }

// ChangeTracker fans mutation notifications out to every live
// Subscription whose root type could be affected, recomputing each
// affected subscription's match/position and emitting the resulting
// enter/leave/change/move events.
type ChangeTracker struct {
	schema     *schema.Schema
	executor   *exec.Executor
	subsByType map[schema.TypeId][]*Subscription
	subsByID   map[string]*Subscription
	log        *zap.Logger
}

// New builds a ChangeTracker bound to one schema/executor pair. A nil
// logger falls back to zap.NewNop(), matching the teacher's own
// "logger is optional" Options convention (pkg/nornicdb/db.go).
func New(s *schema.Schema, ex *exec.Executor, log *zap.Logger) *ChangeTracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChangeTracker{
		schema:     s,
		executor:   ex,
		subsByType: make(map[schema.TypeId][]*Subscription),
		subsByID:   make(map[string]*Subscription),
		log:        log,
	}
}

var _ store.Tracker = (*ChangeTracker)(nil)

// Subscribe registers a validated query and returns its live Subscription.
// onEvent is called synchronously, in mutation order, for every event the
// subscription's match set produces; it must not block.
func (t *ChangeTracker) Subscribe(q *query.Query, onEvent func(Event)) (*Subscription, error) {
	root, ok := t.schema.TypeByName(q.RootType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRootType, q.RootType)
	}
	sub := &Subscription{
		ID:       uuid.NewString(),
		Query:    q,
		rootType: root.ID,
		results:  newResultSet(),
		onEvent:  onEvent,
	}
	t.subsByType[root.ID] = append(t.subsByType[root.ID], sub)
	t.subsByID[sub.ID] = sub

	td := t.executor.TypeDef(root.ID)
	for _, id := range t.executor.NodesOfType(root.ID) {
		n, err := t.executor.Get(id)
		if err != nil {
			continue
		}
		if !t.executor.MatchesFilters(td, n, q.Filters) {
			continue
		}
		sub.results.insertSorted(id, t.lessFunc(sub))
		item, ok := t.executor.Materialize(td, id, 0, nil)
		if ok {
			sub.emit(Event{Kind: Enter, ID: id, Item: &item})
		}
	}
	return sub, nil
}

// Unsubscribe removes a subscription; it receives no further events.
func (t *ChangeTracker) Unsubscribe(id string) {
	sub, ok := t.subsByID[id]
	if !ok {
		return
	}
	delete(t.subsByID, id)
	list := t.subsByType[sub.rootType]
	for i, s := range list {
		if s == sub {
			t.subsByType[sub.rootType] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

func (s *Subscription) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

func (t *ChangeTracker) lessFunc(sub *Subscription) func(a, b store.NodeId) bool {
	return func(a, b store.NodeId) bool {
		na, errA := t.executor.Get(a)
		nb, errB := t.executor.Get(b)
		if errA != nil || errB != nil {
			return a < b
		}
		for _, s := range sub.Query.Sorts {
			va, _ := t.executor.FieldValue(na, s.Field)
			vb, _ := t.executor.FieldValue(nb, s.Field)
			cmp := value.Compare(va, vb)
			if s.Direction == value.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return a < b
	}
}

// NodeInserted re-evaluates every subscription on typ against the new
// node (it will only match if the subscription has no required filters,
// since a fresh node carries no properties yet).
func (t *ChangeTracker) NodeInserted(id store.NodeId, typ schema.TypeId) {
	for _, sub := range t.subsByType[typ] {
		t.reevaluate(sub, id)
	}
}

// NodeDeleted removes id from every subscription that currently lists it.
func (t *ChangeTracker) NodeDeleted(id store.NodeId, typ schema.TypeId) {
	for _, sub := range t.subsByType[typ] {
		if sub.results.has(id) {
			idx := sub.results.indexOf(id)
			sub.results.remove(id)
			sub.emit(Event{Kind: Leave, ID: id, FromIndex: idx, ToIndex: -1})
		}
	}
}

// NodeUpdated re-evaluates every subscription on the node's type.
func (t *ChangeTracker) NodeUpdated(id store.NodeId, before, after map[string]value.Value) {
	n, err := t.executor.Get(id)
	if err != nil {
		return
	}
	for _, sub := range t.subsByType[n.Type] {
		t.reevaluate(sub, id)
	}
}

// Linked re-evaluates subscriptions on both src's and tgt's type, since a
// rollup on either side may read through this edge (mirrors
// rollup.Cache.Linked's dual-direction recompute).
func (t *ChangeTracker) Linked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	t.reevaluateNode(src)
	t.reevaluateNode(tgt)
}

// Unlinked mirrors Linked.
func (t *ChangeTracker) Unlinked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	t.reevaluateNode(src)
	t.reevaluateNode(tgt)
}

func (t *ChangeTracker) reevaluateNode(id store.NodeId) {
	n, err := t.executor.Get(id)
	if err != nil {
		return
	}
	for _, sub := range t.subsByType[n.Type] {
		t.reevaluate(sub, id)
	}
}

func (t *ChangeTracker) reevaluate(sub *Subscription, id store.NodeId) {
	td := t.executor.TypeDef(sub.rootType)
	n, err := t.executor.Get(id)
	wasPresent := sub.results.has(id)

	if err != nil {
		if wasPresent {
			idx := sub.results.indexOf(id)
			sub.results.remove(id)
			sub.emit(Event{Kind: Leave, ID: id, FromIndex: idx, ToIndex: -1})
		}
		return
	}

	matches := t.executor.MatchesFilters(td, n, sub.Query.Filters)

	switch {
	case matches && !wasPresent:
		sub.results.insertSorted(id, t.lessFunc(sub))
		item, ok := t.executor.Materialize(td, id, 0, nil)
		if ok {
			sub.emit(Event{Kind: Enter, ID: id, Item: &item})
		}
	case !matches && wasPresent:
		idx := sub.results.indexOf(id)
		sub.results.remove(id)
		sub.emit(Event{Kind: Leave, ID: id, FromIndex: idx, ToIndex: -1})
	case matches && wasPresent:
		fromIdx := sub.results.indexOf(id)
		sub.results.remove(id)
		sub.results.insertSorted(id, t.lessFunc(sub))
		toIdx := sub.results.indexOf(id)
		item, ok := t.executor.Materialize(td, id, 0, nil)
		if ok {
			sub.emit(Event{Kind: Change, ID: id, Item: &item})
		}
		if fromIdx != toIdx {
			sub.emit(Event{Kind: Move, ID: id, FromIndex: fromIdx, ToIndex: toIdx})
		}
	}
}
