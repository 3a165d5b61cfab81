package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-db/lattice/pkg/exec"
	"github.com/lattice-db/lattice/pkg/index"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/rollup"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/tracker"
	"github.com/lattice-db/lattice/pkg/value"
)

func userPostSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Resolve(schema.Input{Types: []schema.TypeDefInput{
		{
			Name:       "User",
			Properties: []schema.PropertyDefInput{{Name: "name", Type: schema.PropString}},
			Edges:      []schema.EdgeDefInput{{Name: "posts", Target: "Post", Reverse: "author"}},
		},
		{
			Name: "Post",
			Properties: []schema.PropertyDefInput{
				{Name: "views", Type: schema.PropInt},
			},
			Edges: []schema.EdgeDefInput{{Name: "author", Target: "User", Reverse: "posts"}},
		},
	}})
	require.NoError(t, err)
	return s
}

func threadFrameSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Resolve(schema.Input{Types: []schema.TypeDefInput{
		{
			Name:  "Thread",
			Edges: []schema.EdgeDefInput{{Name: "frames", Target: "Frame", Reverse: "thread"}},
		},
		{
			Name: "Frame",
			Edges: []schema.EdgeDefInput{
				{Name: "thread", Target: "Thread", Reverse: "frames"},
				{Name: "scopes", Target: "Scope", Reverse: "frame"},
			},
		},
		{
			Name: "Scope",
			Edges: []schema.EdgeDefInput{
				{Name: "frame", Target: "Frame", Reverse: "scopes"},
				{Name: "variables", Target: "Variable", Reverse: "scope"},
			},
		},
		{
			Name:  "Variable",
			Edges: []schema.EdgeDefInput{{Name: "scope", Target: "Scope", Reverse: "variables"}},
		},
	}})
	require.NoError(t, err)
	return s
}

type fanout struct {
	idx *index.Manager
	rc  *rollup.Cache
	ct  *tracker.ChangeTracker
}

func (f fanout) NodeInserted(id store.NodeId, typ schema.TypeId) {
	f.idx.NodeInserted(id, typ)
	f.rc.NodeInserted(id, typ)
	f.ct.NodeInserted(id, typ)
}
func (f fanout) NodeUpdated(id store.NodeId, before, after map[string]value.Value) {
	f.idx.NodeUpdated(id, before, after)
	f.rc.NodeUpdated(id, before, after)
	f.ct.NodeUpdated(id, before, after)
}
func (f fanout) NodeDeleted(id store.NodeId, typ schema.TypeId) {
	f.idx.NodeDeleted(id, typ)
	f.rc.NodeDeleted(id, typ)
	f.ct.NodeDeleted(id, typ)
}
func (f fanout) Linked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	f.idx.Linked(src, edge, tgt)
	f.rc.Linked(src, edge, tgt)
	f.ct.Linked(src, edge, tgt)
}
func (f fanout) Unlinked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	f.idx.Unlinked(src, edge, tgt)
	f.rc.Unlinked(src, edge, tgt)
	f.ct.Unlinked(src, edge, tgt)
}

func wireAll(t *testing.T, s *schema.Schema) (*store.Store, *exec.Executor, *tracker.ChangeTracker) {
	t.Helper()
	st := store.New(s)
	idx := index.New(s, st)
	rc := rollup.New(s, st)
	idx.SetRollups(rc)
	ex := exec.New(s, st, idx, rc)
	ct := tracker.New(s, ex, nil)
	st.SetTracker(fanout{idx: idx, rc: rc, ct: ct})
	return st, ex, ct
}

func insertPost(t *testing.T, st *store.Store, views int64) store.NodeId {
	t.Helper()
	id, err := st.Insert("Post")
	require.NoError(t, err)
	require.NoError(t, st.Update(id, map[string]value.Value{"views": value.Int(views)}))
	return id
}

func insertUser(t *testing.T, st *store.Store, name string) store.NodeId {
	t.Helper()
	id, err := st.Insert("User")
	require.NoError(t, err)
	require.NoError(t, st.Update(id, map[string]value.Value{"name": value.String(name)}))
	return id
}

func postQuery() *query.Query {
	return &query.Query{
		RootType: "Post",
		Sorts:    []query.SortSpec{{Field: "views", Direction: value.Asc}},
	}
}

func TestNewSeedsTreeFromPreExistingMatches(t *testing.T) {
	s := userPostSchema(t)
	st, ex, ct := wireAll(t, s)
	insertPost(t, st, 30)
	insertPost(t, st, 10)
	insertPost(t, st, 20)

	var events []Event
	v, err := New(ct, ex, s, postQuery(), 10, func(e Event) { events = append(events, e) })
	require.NoError(t, err)

	rows := v.Items()
	require.Len(t, rows, 3)
	assert.Len(t, events, 3, "Subscribe's synchronous seed Enters should all be forwarded (window covers all 3)")
}

func TestViewportWindowFiltersEvents(t *testing.T) {
	s := userPostSchema(t)
	st, ex, ct := wireAll(t, s)
	insertPost(t, st, 10)
	insertPost(t, st, 20)

	var events []Event
	v, err := New(ct, ex, s, postQuery(), 1, func(e Event) { events = append(events, e) })
	require.NoError(t, err)

	assert.Len(t, events, 1, "height 1 only shows the first row")
	rows := v.Items()
	require.Len(t, rows, 1)

	events = nil
	insertPost(t, st, 5)
	assert.Len(t, events, 1, "new lowest-views post enters the single visible slot")
	assert.Equal(t, tracker.Enter, events[0].Kind)
}

func TestMoveOutOfWindowEmitsLeave(t *testing.T) {
	s := userPostSchema(t)
	st, ex, ct := wireAll(t, s)
	a := insertPost(t, st, 10)
	insertPost(t, st, 20)
	insertPost(t, st, 30)

	var events []Event
	v, err := New(ct, ex, s, postQuery(), 2, func(e Event) { events = append(events, e) })
	require.NoError(t, err)
	require.Len(t, events, 2)

	events = nil
	require.NoError(t, st.Update(a, map[string]value.Value{"views": value.Int(100)}))
	require.NotEmpty(t, events, "node a leaving the top-2 window must surface a leave")
	assert.Equal(t, tracker.Leave, events[0].Kind)
}

func TestExpandMaterializesChildrenAndRespectsWindow(t *testing.T) {
	s := userPostSchema(t)
	st, ex, ct := wireAll(t, s)
	u := insertUser(t, st, "ada")
	p1 := insertPost(t, st, 10)
	p2 := insertPost(t, st, 20)
	require.NoError(t, st.Link(u, "posts", p1))
	require.NoError(t, st.Link(u, "posts", p2))

	q := &query.Query{RootType: "User"}
	var events []Event
	v, err := New(ct, ex, s, q, 10, func(e Event) { events = append(events, e) })
	require.NoError(t, err)
	require.Len(t, events, 1)

	events = nil
	require.NoError(t, v.Expand(u, "posts"))
	rows := v.Items()
	require.Len(t, rows, 3, "root plus both posts now visible")
	assert.Equal(t, 1, rows[1].Depth)
	assert.Len(t, events, 2, "both newly visible posts enter")
}

func TestCollapseHidesChildrenWithoutDeletingThem(t *testing.T) {
	s := userPostSchema(t)
	st, ex, ct := wireAll(t, s)
	u := insertUser(t, st, "ada")
	p1 := insertPost(t, st, 10)
	require.NoError(t, st.Link(u, "posts", p1))

	q := &query.Query{RootType: "User"}
	v, err := New(ct, ex, s, q, 10, func(Event) {})
	require.NoError(t, err)
	require.NoError(t, v.Expand(u, "posts"))
	require.Len(t, v.Items(), 2)

	require.NoError(t, v.Collapse(u, "posts"))
	assert.Len(t, v.Items(), 1)
}

func TestApplySelectionsElidesVirtualHops(t *testing.T) {
	s := threadFrameSchema(t)
	st, ex, ct := wireAll(t, s)

	thread, err := st.Insert("Thread")
	require.NoError(t, err)
	frame, err := st.Insert("Frame")
	require.NoError(t, err)
	scope, err := st.Insert("Scope")
	require.NoError(t, err)
	va, err := st.Insert("Variable")
	require.NoError(t, err)
	vb, err := st.Insert("Variable")
	require.NoError(t, err)
	require.NoError(t, st.Link(thread, "frames", frame))
	require.NoError(t, st.Link(frame, "scopes", scope))
	require.NoError(t, st.Link(scope, "variables", va))
	require.NoError(t, st.Link(scope, "variables", vb))

	q := &query.Query{RootType: "Thread"}
	v, err := New(ct, ex, s, q, 10, func(Event) {})
	require.NoError(t, err)

	sels := []query.EdgeSelection{
		{
			Name: "frames",
			Selections: []query.EdgeSelection{
				{Name: "scopes", Virtual: true, Selections: []query.EdgeSelection{{Name: "variables"}}},
			},
		},
	}
	require.NoError(t, v.ApplySelections(thread, sels))

	depthOf := map[store.NodeId]int{}
	for _, r := range v.Items() {
		depthOf[r.ID] = r.Depth
	}
	_, sawScope := depthOf[scope]
	assert.False(t, sawScope, "the virtual scope hop never materializes its own row")
	assert.Equal(t, depthOf[frame]+1, depthOf[va])
	assert.Equal(t, depthOf[frame]+1, depthOf[vb])
}

func TestItemsGuardsAgainstReentrantCalls(t *testing.T) {
	s := userPostSchema(t)
	st, ex, ct := wireAll(t, s)
	insertPost(t, st, 1)

	v, err := New(ct, ex, s, postQuery(), 10, func(Event) {})
	require.NoError(t, err)

	// Simulate a nested Items() call made while Items is already running:
	// the guard must return nil instead of recursing.
	v.inItems = true
	assert.Nil(t, v.Items())
	v.inItems = false

	assert.NotNil(t, v.Items(), "a later, non-reentrant call behaves normally")
}

func TestNewRejectsUnknownRootType(t *testing.T) {
	s := userPostSchema(t)
	_, ex, ct := wireAll(t, s)
	q := &query.Query{RootType: "Nope"}
	_, err := New(ct, ex, s, q, 10, func(Event) {})
	assert.Error(t, err)
}
