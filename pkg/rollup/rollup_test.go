package rollup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

func userPostSchemaWithRollups(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Resolve(schema.Input{Types: []schema.TypeDefInput{
		{
			Name: "User",
			Edges: []schema.EdgeDefInput{
				{Name: "posts", Target: "Post", Reverse: "author",
					Sort: &schema.SortSpec{Property: "views", Direction: schema.Desc}},
			},
			Rollups: []schema.RollupDefInput{
				{Name: "postCount", Kind: schema.RollupCount, Edge: "posts"},
				{Name: "leadViews", Kind: schema.RollupTraverse, Edge: "posts", Property: "views"},
				{Name: "topViews", Kind: schema.RollupFirst, Edge: "posts", Property: "views"},
			},
		},
		{
			Name: "Post",
			Properties: []schema.PropertyDefInput{
				{Name: "views", Type: schema.PropInt},
			},
			Edges: []schema.EdgeDefInput{
				{Name: "author", Target: "User", Reverse: "posts"},
			},
		},
	}})
	require.NoError(t, err)
	return s
}

func wireStore(t *testing.T, s *schema.Schema) (*store.Store, *Cache) {
	t.Helper()
	st := store.New(s)
	c := New(s, st)
	st.SetTracker(c)
	return st, c
}

func TestCountRollupTracksLinkAndUnlink(t *testing.T) {
	s := userPostSchemaWithRollups(t)
	st, c := wireStore(t, s)

	u, _ := st.Insert("User")
	v, ok := c.Get(u, "postCount")
	require.True(t, ok)
	assert.Equal(t, int64(0), v.Int())

	p, _ := st.Insert("Post")
	require.NoError(t, st.Link(p, "author", u))
	v, _ = c.Get(u, "postCount")
	assert.Equal(t, int64(1), v.Int())

	require.NoError(t, st.Unlink(p, "author", u))
	v, _ = c.Get(u, "postCount")
	assert.Equal(t, int64(0), v.Int())
}

func TestTraverseRollupReadsFirstTargetAndUpdatesOnChange(t *testing.T) {
	s := userPostSchemaWithRollups(t)
	st, c := wireStore(t, s)

	u, _ := st.Insert("User")
	p1, _ := st.Insert("Post")
	p2, _ := st.Insert("Post")
	require.NoError(t, st.Update(p1, map[string]value.Value{"views": value.Int(10)}))
	require.NoError(t, st.Update(p2, map[string]value.Value{"views": value.Int(20)}))
	require.NoError(t, st.Link(p1, "author", u))
	require.NoError(t, st.Link(p2, "author", u))

	// posts is sorted by views desc, so p2 (20) is the first target.
	v, _ := c.Get(u, "leadViews")
	assert.Equal(t, int64(20), v.Int())

	// Raising p1 to 100 re-sorts the edge list, making p1 the first target.
	require.NoError(t, st.Update(p1, map[string]value.Value{"views": value.Int(100)}))
	v, _ = c.Get(u, "leadViews")
	assert.Equal(t, int64(100), v.Int())
}

func TestFirstRollupFollowsEdgeSortOrder(t *testing.T) {
	s := userPostSchemaWithRollups(t)
	st, c := wireStore(t, s)

	u, _ := st.Insert("User")
	p1, _ := st.Insert("Post")
	p2, _ := st.Insert("Post")
	require.NoError(t, st.Update(p1, map[string]value.Value{"views": value.Int(10)}))
	require.NoError(t, st.Update(p2, map[string]value.Value{"views": value.Int(200)}))
	require.NoError(t, st.Link(p1, "author", u))
	require.NoError(t, st.Link(p2, "author", u))

	v, ok := c.Get(u, "topViews")
	require.True(t, ok)
	assert.Equal(t, int64(200), v.Int())
}

func TestRollupClearedOnDelete(t *testing.T) {
	s := userPostSchemaWithRollups(t)
	st, c := wireStore(t, s)

	u, _ := st.Insert("User")
	require.NoError(t, st.Delete(u))
	_, ok := c.Get(u, "postCount")
	assert.False(t, ok)
}
