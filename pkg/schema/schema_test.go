package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userPostInput() Input {
	return Input{Types: []TypeDefInput{
		{
			Name: "User",
			Properties: []PropertyDefInput{
				{Name: "name", Type: PropString},
			},
			Edges: []EdgeDefInput{
				{Name: "posts", Target: "Post", Reverse: "author"},
			},
		},
		{
			Name: "Post",
			Properties: []PropertyDefInput{
				{Name: "views", Type: PropInt},
				{Name: "published", Type: PropBool},
			},
			Edges: []EdgeDefInput{
				{Name: "author", Target: "User", Reverse: "posts"},
			},
			Indexes: []IndexDefInput{
				{Fields: []IndexFieldInput{
					{Field: "published", Direction: Asc},
					{Field: "views", Direction: Desc},
				}},
			},
		},
	}}
}

func TestResolveValidSchema(t *testing.T) {
	s, err := Resolve(userPostInput())
	require.NoError(t, err)

	user, ok := s.TypeByName("User")
	require.True(t, ok)
	post, ok := s.TypeByName("Post")
	require.True(t, ok)

	postsEdge, ok := user.Edge("posts")
	require.True(t, ok)
	authorEdge, ok := post.Edge("author")
	require.True(t, ok)

	assert.Equal(t, authorEdge.ID, postsEdge.ReverseID)
	assert.Equal(t, postsEdge.ID, authorEdge.ReverseID)
	assert.Equal(t, post.ID, postsEdge.TargetType)
	assert.Equal(t, user.ID, authorEdge.TargetType)
}

func TestResolveMissingReverseEdge(t *testing.T) {
	in := Input{Types: []TypeDefInput{
		{Name: "User", Edges: []EdgeDefInput{
			{Name: "posts", Target: "Post", Reverse: "author"},
		}},
		{Name: "Post"}, // no "author" edge back to User
	}}
	_, err := Resolve(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MissingReverseEdge")
}

func TestResolveCollectsMultipleErrors(t *testing.T) {
	in := Input{Types: []TypeDefInput{
		{
			Name: "A",
			Properties: []PropertyDefInput{
				{Name: "x", Type: "not-a-type"},
			},
			Edges: []EdgeDefInput{
				{Name: "toB", Target: "Missing", Reverse: "back"},
			},
		},
	}}
	_, err := Resolve(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidPropertyType")
	assert.Contains(t, err.Error(), "UnknownEdge")
}

func TestRollupRequiresEdge(t *testing.T) {
	in := Input{Types: []TypeDefInput{
		{
			Name: "User",
			Rollups: []RollupDefInput{
				{Name: "postCount", Kind: RollupCount, Edge: "posts"},
			},
		},
	}}
	_, err := Resolve(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnknownEdge")
}

func TestIndexOnUnknownPropertyFails(t *testing.T) {
	in := Input{Types: []TypeDefInput{
		{
			Name: "User",
			Indexes: []IndexDefInput{
				{Fields: []IndexFieldInput{{Field: "nope"}}},
			},
		},
	}}
	_, err := Resolve(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnknownProperty")
}

func TestHasFieldIncludesRollups(t *testing.T) {
	in := Input{Types: []TypeDefInput{
		{
			Name: "User",
			Edges: []EdgeDefInput{
				{Name: "posts", Target: "User", Reverse: "posts"},
			},
			Rollups: []RollupDefInput{
				{Name: "postCount", Kind: RollupCount, Edge: "posts"},
			},
		},
	}}
	s, err := Resolve(in)
	require.NoError(t, err)
	u, _ := s.TypeByName("User")
	assert.True(t, u.HasField("postCount"))
	assert.False(t, u.HasField("nonexistent"))
}
