// Package latticetest provides small schema-building helpers for tests
// across lattice's packages, mirroring the teacher's own fixture-builder
// convention in pkg/cypher/testutil (canned graphs assembled through a
// fluent builder rather than hand-written literal schema.Input values
// repeated in every test file).
package latticetest

import "github.com/lattice-db/lattice/pkg/schema"

// SchemaBuilder accumulates TypeDefInputs for schema.Resolve.
type SchemaBuilder struct {
	types []schema.TypeDefInput
}

// NewSchemaBuilder starts an empty builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{}
}

// Type appends one type declaration and returns the builder for chaining.
func (b *SchemaBuilder) Type(t schema.TypeDefInput) *SchemaBuilder {
	b.types = append(b.types, t)
	return b
}

// Build returns the accumulated Input.
func (b *SchemaBuilder) Build() schema.Input {
	return schema.Input{Types: b.types}
}

// Resolve builds and resolves the schema in one call.
func (b *SchemaBuilder) Resolve() (*schema.Schema, error) {
	return schema.Resolve(b.Build())
}

// UserPostSchema is the canned two-type fixture (User —posts→ Post,
// Post —author→ User) most of this module's tests are built around: a
// property on each side, a reverse-paired edge, and a count rollup, which
// is enough surface to exercise filters, sorts, rollups, and nested
// expansion without every test re-declaring it.
func UserPostSchema() schema.Input {
	return NewSchemaBuilder().
		Type(schema.TypeDefInput{
			Name: "User",
			Properties: []schema.PropertyDefInput{
				{Name: "name", Type: schema.PropString},
			},
			Edges: []schema.EdgeDefInput{
				{Name: "posts", Target: "Post", Reverse: "author"},
			},
			Rollups: []schema.RollupDefInput{
				{Name: "post_count", Kind: schema.RollupCount, Edge: "posts"},
			},
		}).
		Type(schema.TypeDefInput{
			Name: "Post",
			Properties: []schema.PropertyDefInput{
				{Name: "title", Type: schema.PropString},
				{Name: "views", Type: schema.PropInt},
				{Name: "published", Type: schema.PropBool},
			},
			Edges: []schema.EdgeDefInput{
				{Name: "author", Target: "User", Reverse: "posts"},
			},
		}).
		Build()
}
