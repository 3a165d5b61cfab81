package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSchemaValidateAcceptsWellFormedFixture(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
types:
  - name: User
    properties:
      - name: name
        type: string
`), 0o644))

	cmd := newSchemaCmd()
	cmd.SetArgs([]string{"validate", p})
	assert.NoError(t, cmd.Execute())
}

func TestRunSchemaValidateRejectsDanglingEdge(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
types:
  - name: User
    edges:
      - name: posts
        target: Post
        reverse: author
`), 0o644))

	cmd := newSchemaCmd()
	cmd.SetArgs([]string{"validate", p})
	assert.Error(t, cmd.Execute())
}

func TestRunSchemaValidateReportsMissingFile(t *testing.T) {
	cmd := newSchemaCmd()
	cmd.SetArgs([]string{"validate", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, cmd.Execute())
}
