package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-db/lattice/pkg/lattice"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/value"
)

const schemaYAML = `
types:
  - name: User
    properties:
      - name: name
        type: string
    edges:
      - name: posts
        target: Post
        reverse: author
    rollups:
      - name: post_count
        kind: count
        edge: posts
  - name: Post
    properties:
      - name: title
        type: string
      - name: views
        type: int
    edges:
      - name: author
        target: User
        reverse: posts
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadSchemaResolvesValidFixture(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "schema.yaml", schemaYAML)

	in, err := LoadSchema(p)
	require.NoError(t, err)

	s, err := schema.Resolve(in)
	require.NoError(t, err)
	_, ok := s.TypeByName("User")
	assert.True(t, ok)
	_, ok = s.TypeByName("Post")
	assert.True(t, ok)
}

func TestLoadSchemaReportsReadError(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadQueryBuildsFilterSortAndSelection(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "query.yaml", `
root_type: User
filters:
  - field: name
    op: eq
    value: alice
sorts:
  - field: name
    direction: desc
selections:
  - name: posts
    sorts:
      - field: views
        direction: desc
`)

	q, err := LoadQuery(p)
	require.NoError(t, err)
	assert.Equal(t, "User", q.RootType)
	require.Len(t, q.Filters, 1)
	assert.Equal(t, query.Eq, q.Filters[0].Op)
	assert.Equal(t, "alice", q.Filters[0].Value.String())
	require.Len(t, q.Sorts, 1)
	assert.Equal(t, "name", q.Sorts[0].Field)
	assert.Equal(t, value.Desc, q.Sorts[0].Direction)
	require.Len(t, q.Selections, 1)
	assert.Equal(t, "posts", q.Selections[0].Name)
}

func TestLoadQueryRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bad.yaml", "root_type: [this is not a string]\n  bad indent:")
	_, err := LoadQuery(p)
	assert.Error(t, err)
}

func TestLoadDatasetsMergesMultipleFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", `
nodes:
  - ref: u1
    type: User
    properties:
      name: alice
`)
	b := writeFile(t, dir, "b.yaml", `
nodes:
  - ref: p1
    type: Post
    properties:
      title: hello
      views: 3
edges:
  - from: u1
    edge: posts
    to: p1
`)

	ds, err := LoadDatasets([]string{a, b})
	require.NoError(t, err)
	require.Len(t, ds.Nodes, 2)
	require.Len(t, ds.Edges, 1)
	assert.Equal(t, "u1", ds.Nodes[0].Ref)
	assert.Equal(t, "p1", ds.Nodes[1].Ref)
}

func TestLoadReplaysDatasetIntoDB(t *testing.T) {
	dir := t.TempDir()
	sp := writeFile(t, dir, "schema.yaml", schemaYAML)
	in, err := LoadSchema(sp)
	require.NoError(t, err)
	db, err := lattice.Open(in, nil)
	require.NoError(t, err)

	ds := Dataset{
		Nodes: []NodeFixture{
			{Ref: "u1", Type: "User", Properties: map[string]interface{}{"name": "alice"}},
			{Ref: "p1", Type: "Post", Properties: map[string]interface{}{"title": "hello", "views": 3}},
		},
		Edges: []EdgeFixture{{From: "u1", Edge: "posts", To: "p1"}},
	}

	refs, err := Load(db, ds)
	require.NoError(t, err)
	require.Contains(t, refs, "u1")
	require.Contains(t, refs, "p1")

	u, err := db.Get(refs["u1"])
	require.NoError(t, err)
	name, ok := u.GetProperty("name")
	require.True(t, ok)
	assert.Equal(t, "alice", name.String())
}

func TestLoadReportsUnknownEdgeRef(t *testing.T) {
	dir := t.TempDir()
	sp := writeFile(t, dir, "schema.yaml", schemaYAML)
	in, err := LoadSchema(sp)
	require.NoError(t, err)
	db, err := lattice.Open(in, nil)
	require.NoError(t, err)

	ds := Dataset{
		Nodes: []NodeFixture{{Ref: "u1", Type: "User"}},
		Edges: []EdgeFixture{{From: "u1", Edge: "posts", To: "nope"}},
	}
	_, err = Load(db, ds)
	assert.Error(t, err)
}
