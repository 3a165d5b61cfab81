package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/value"
)

const childEdge schema.EdgeId = 1

func key(n int64) value.CompoundKey {
	return value.NewBuilder().AppendValue(value.Int(n), value.Asc).AppendID(uint64(n)).Build()
}

type recorder struct {
	willRemove []string
	didRemove  []string
	didInsert  []string
	didMove    []string
}

func (r *recorder) observer() Observer {
	return Observer{
		OnWillRemove: func(first store.NodeId, startIndex, count int) {
			r.willRemove = append(r.willRemove, "will-remove")
		},
		OnDidRemove: func(index, count, newTotal int) {
			r.didRemove = append(r.didRemove, "did-remove")
		},
		OnDidInsert: func(first store.NodeId, startIndex, count, newTotal int) {
			r.didInsert = append(r.didInsert, "did-insert")
		},
		OnDidMove: func(node store.NodeId, oldIndex, newIndex int) {
			r.didMove = append(r.didMove, "did-move")
		},
	}
}

func TestInsertRootOrdersBySortKey(t *testing.T) {
	rec := &recorder{}
	tr := New(rec.observer())

	require.NoError(t, tr.InsertRoot(store.NodeId(2), key(20)))
	require.NoError(t, tr.InsertRoot(store.NodeId(1), key(10)))
	require.NoError(t, tr.InsertRoot(store.NodeId(3), key(30)))

	assert.Equal(t, 3, tr.TotalVisible())
	assert.Equal(t, []store.NodeId{1, 2, 3}, tr.Roots())
	idx, ok := tr.IndexOf(2)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Len(t, rec.didInsert, 3)
}

func TestInsertRootDuplicateFails(t *testing.T) {
	tr := New(Observer{})
	require.NoError(t, tr.InsertRoot(1, key(1)))
	assert.ErrorIs(t, tr.InsertRoot(1, key(2)), ErrNodeExists)
}

func TestExpandPullsChildrenIntoVisibleChain(t *testing.T) {
	tr := New(Observer{})
	require.NoError(t, tr.InsertRoot(1, key(1)))
	require.NoError(t, tr.SetChildren(1, childEdge, []ChildSpec{
		{ID: 10, Key: key(10)},
		{ID: 11, Key: key(11)},
	}))

	// Children exist in the arena but aren't visible until expanded.
	assert.Equal(t, 1, tr.TotalVisible())
	_, onChain := tr.IndexOf(10)
	assert.False(t, onChain)

	require.NoError(t, tr.Expand(1, childEdge))
	assert.Equal(t, 3, tr.TotalVisible())
	idx, ok := tr.IndexOf(10)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	idx, ok = tr.IndexOf(11)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	n, ok := tr.Node(1)
	require.True(t, ok)
	assert.Equal(t, 3, n.VisibleCount)
}

func TestCollapseRemovesSubtreeFromVisibleChainWithoutDeletingIt(t *testing.T) {
	tr := New(Observer{})
	require.NoError(t, tr.InsertRoot(1, key(1)))
	require.NoError(t, tr.SetChildren(1, childEdge, []ChildSpec{{ID: 10, Key: key(10)}}))
	require.NoError(t, tr.Expand(1, childEdge))
	require.Equal(t, 2, tr.TotalVisible())

	require.NoError(t, tr.Collapse(1, childEdge))
	assert.Equal(t, 1, tr.TotalVisible())
	_, onChain := tr.IndexOf(10)
	assert.False(t, onChain)

	n, ok := tr.Node(10)
	require.True(t, ok, "collapsed child stays in the arena")
	assert.False(t, n.OnVisibleChain())
}

func TestRemoveRootDeletesSubtreeEntirely(t *testing.T) {
	tr := New(Observer{})
	require.NoError(t, tr.InsertRoot(1, key(1)))
	require.NoError(t, tr.SetChildren(1, childEdge, []ChildSpec{{ID: 10, Key: key(10)}}))
	require.NoError(t, tr.Expand(1, childEdge))

	require.NoError(t, tr.RemoveRoot(1))
	assert.Equal(t, 0, tr.TotalVisible())
	_, ok := tr.Node(1)
	assert.False(t, ok)
	_, ok = tr.Node(10)
	assert.False(t, ok, "removing a root must delete its whole subtree from the arena")
}

func TestUnlinkingSubtreeNullsVisibleChainPointers(t *testing.T) {
	tr := New(Observer{})
	require.NoError(t, tr.InsertRoot(1, key(1)))
	require.NoError(t, tr.InsertRoot(2, key(2)))
	require.NoError(t, tr.SetChildren(1, childEdge, []ChildSpec{{ID: 10, Key: key(10)}}))
	require.NoError(t, tr.Expand(1, childEdge))
	require.Equal(t, 3, tr.TotalVisible())

	require.NoError(t, tr.RemoveChild(10))
	assert.Equal(t, 2, tr.TotalVisible())
	n, ok := tr.Node(1)
	require.True(t, ok)
	idx, onChain := tr.IndexOf(n.ID)
	require.True(t, onChain)
	assert.Equal(t, 0, idx)
}

func TestUpdateRootKeyRepositionsAndEmitsMove(t *testing.T) {
	rec := &recorder{}
	tr := New(rec.observer())
	require.NoError(t, tr.InsertRoot(1, key(10)))
	require.NoError(t, tr.InsertRoot(2, key(20)))
	rec.didMove, rec.didInsert, rec.didRemove = nil, nil, nil

	require.NoError(t, tr.UpdateRootKey(1, key(30)))
	assert.Equal(t, []store.NodeId{2, 1}, tr.Roots())
	assert.NotEmpty(t, rec.didMove)
	assert.Empty(t, rec.didInsert)
	assert.Empty(t, rec.didRemove)
}

func TestMoveRootToSameIndexEmitsNoMove(t *testing.T) {
	rec := &recorder{}
	tr := New(rec.observer())
	require.NoError(t, tr.InsertRoot(1, key(10)))
	rec.didMove = nil

	require.NoError(t, tr.MoveRoot(1, 0))
	assert.Empty(t, rec.didMove)
}

func TestExpandingWhileAncestorPathCollapsedOnlyUpdatesLocalCount(t *testing.T) {
	tr := New(Observer{})
	require.NoError(t, tr.InsertRoot(1, key(1)))
	require.NoError(t, tr.SetChildren(1, childEdge, []ChildSpec{{ID: 10, Key: key(10)}}))
	// Don't expand node 1's edge; give node 10 a child and expand node 10's
	// own edge anyway to exercise "local count only, no chain linking".
	require.NoError(t, tr.SetChildren(10, childEdge, []ChildSpec{{ID: 100, Key: key(100)}}))
	require.NoError(t, tr.Expand(10, childEdge))

	n10, ok := tr.Node(10)
	require.True(t, ok)
	assert.Equal(t, 2, n10.VisibleCount)
	assert.False(t, n10.OnVisibleChain(), "10's own subtree isn't visible until 1's edge is expanded")
	assert.Equal(t, 1, tr.TotalVisible())

	require.NoError(t, tr.Expand(1, childEdge))
	assert.Equal(t, 3, tr.TotalVisible())
	idx100, ok := tr.IndexOf(100)
	require.True(t, ok)
	assert.Equal(t, 2, idx100)
}
