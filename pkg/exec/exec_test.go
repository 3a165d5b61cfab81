package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-db/lattice/pkg/index"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/rollup"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

func userPostSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Resolve(schema.Input{Types: []schema.TypeDefInput{
		{
			Name:       "User",
			Properties: []schema.PropertyDefInput{{Name: "name", Type: schema.PropString}},
			Edges:      []schema.EdgeDefInput{{Name: "posts", Target: "Post", Reverse: "author"}},
			Rollups:    []schema.RollupDefInput{{Name: "postCount", Kind: schema.RollupCount, Edge: "posts"}},
		},
		{
			Name: "Post",
			Properties: []schema.PropertyDefInput{
				{Name: "views", Type: schema.PropInt},
				{Name: "published", Type: schema.PropBool},
			},
			Edges: []schema.EdgeDefInput{{Name: "author", Target: "User", Reverse: "posts"}},
			Indexes: []schema.IndexDefInput{
				{Fields: []schema.IndexFieldInput{
					{Field: "published", Direction: schema.Asc},
					{Field: "views", Direction: schema.Desc},
				}},
			},
		},
	}})
	require.NoError(t, err)
	return s
}

func wireAll(t *testing.T, s *schema.Schema) (*store.Store, *index.Manager, *rollup.Cache, *Executor) {
	t.Helper()
	st := store.New(s)
	idx := index.New(s, st)
	rc := rollup.New(s, st)
	idx.SetRollups(rc)

	// Fan out mutation notifications to both observers; store only holds
	// one Tracker, so Executor's own tests drive a tiny composite.
	st.SetTracker(fanout{idx, rc})

	ex := New(s, st, idx, rc)
	return st, idx, rc, ex
}

type fanout struct {
	idx *index.Manager
	rc  *rollup.Cache
}

func (f fanout) NodeInserted(id store.NodeId, typ schema.TypeId) {
	f.idx.NodeInserted(id, typ)
	f.rc.NodeInserted(id, typ)
}
func (f fanout) NodeUpdated(id store.NodeId, before, after map[string]value.Value) {
	f.idx.NodeUpdated(id, before, after)
	f.rc.NodeUpdated(id, before, after)
}
func (f fanout) NodeDeleted(id store.NodeId, typ schema.TypeId) {
	f.idx.NodeDeleted(id, typ)
	f.rc.NodeDeleted(id, typ)
}
func (f fanout) Linked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	f.idx.Linked(src, edge, tgt)
	f.rc.Linked(src, edge, tgt)
}
func (f fanout) Unlinked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	f.idx.Unlinked(src, edge, tgt)
	f.rc.Unlinked(src, edge, tgt)
}

func TestCandidatesUsesIndexWhenSortRequested(t *testing.T) {
	s := userPostSchema(t)
	st, _, _, ex := wireAll(t, s)
	postType, _ := s.TypeByName("Post")

	p1, _ := st.Insert("Post")
	p2, _ := st.Insert("Post")
	require.NoError(t, st.Update(p1, map[string]value.Value{"views": value.Int(10), "published": value.Bool(true)}))
	require.NoError(t, st.Update(p2, map[string]value.Value{"views": value.Int(50), "published": value.Bool(true)}))

	filters := []query.FilterCond{{Field: "published", Op: query.Eq, Value: value.Bool(true)}}
	sorts := []query.SortSpec{{Field: "views", Direction: value.Desc}}
	ids, cov, err := ex.Candidates(postType.ID, filters, sorts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cov.IndexPos, 0)
	assert.Equal(t, []store.NodeId{p2, p1}, ids)
}

func TestMatchesFiltersAppliesNullPropagation(t *testing.T) {
	s := userPostSchema(t)
	st, _, _, ex := wireAll(t, s)
	postType, _ := s.TypeByName("Post")

	p, _ := st.Insert("Post")
	n, _ := st.Get(p)

	ok := ex.MatchesFilters(ex.TypeDef(postType.ID), n, []query.FilterCond{
		{Field: "views", Op: query.Gt, Value: value.Int(0)},
	})
	assert.False(t, ok, "unset property should never satisfy a comparison filter")
}

func TestMaterializeIncludesRollups(t *testing.T) {
	s := userPostSchema(t)
	st, _, _, ex := wireAll(t, s)
	userType, _ := s.TypeByName("User")
	postType, _ := s.TypeByName("Post")

	u, _ := st.Insert("User")
	p, _ := st.Insert("Post")
	require.NoError(t, st.Link(p, "author", u))

	item, ok := ex.Materialize(ex.TypeDef(userType.ID), u, 0, nil)
	require.True(t, ok)
	assert.Equal(t, int64(1), item.Properties["postCount"].Int())

	_ = postType
}
