// Package schema resolves a declarative, already-parsed schema description
// into dense integer ids (TypeId, EdgeId) and validated type/edge/rollup/
// index definitions. Per spec.md §1, JSON/YAML parsing of schema input is
// an external collaborator's job — this package only ever sees Go
// structs, never text.
package schema

import "github.com/lattice-db/lattice/pkg/value"

// PropertyType names the scalar kind of a declared property, mirroring
// value.Kind but expressed as the external-interface vocabulary from
// spec.md §6 (string/int/number/bool).
type PropertyType string

const (
	PropString PropertyType = "string"
	PropInt    PropertyType = "int"
	PropNumber PropertyType = "number"
	PropBool   PropertyType = "bool"
)

// ToKind maps the external PropertyType vocabulary to value.Kind.
func (p PropertyType) ToKind() (value.Kind, bool) {
	switch p {
	case PropString:
		return value.KindString, true
	case PropInt:
		return value.KindInt, true
	case PropNumber:
		return value.KindNumber, true
	case PropBool:
		return value.KindBool, true
	default:
		return value.KindNull, false
	}
}

// Direction mirrors value.Direction at the external-interface boundary.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ToValueDirection converts the external vocabulary, defaulting to Asc.
func (d Direction) ToValueDirection() value.Direction {
	if d == Desc {
		return value.Desc
	}
	return value.Asc
}

// FieldKind distinguishes an index field sourced from a node property from
// one sourced from a reverse edge (the cross-entity indexing mechanism,
// spec.md §3 IndexDef).
type FieldKind string

const (
	FieldProperty FieldKind = "property"
	FieldEdge     FieldKind = "edge"
)

// Input is the root schema description, a record of TypeDefs, exactly the
// shape spec.md §6 describes as the external schema input.
type Input struct {
	Types []TypeDefInput
}

// TypeDefInput is one node type's declaration as received from the
// (external) parser.
type TypeDefInput struct {
	Name       string
	Properties []PropertyDefInput
	Edges      []EdgeDefInput
	Rollups    []RollupDefInput
	Indexes    []IndexDefInput
}

// PropertyDefInput declares one typed property.
type PropertyDefInput struct {
	Name string
	Type PropertyType
}

// SortSpec is the optional edge-sort directive on an EdgeDefInput.
type SortSpec struct {
	Property  string
	Direction Direction
}

// EdgeDefInput declares one forward edge and its required reverse.
type EdgeDefInput struct {
	Name    string
	Target  string
	Reverse string
	Sort    *SortSpec
}

// RollupKind names the four supported rollup computations (spec.md §4.3).
type RollupKind string

const (
	RollupCount    RollupKind = "count"
	RollupTraverse RollupKind = "traverse"
	RollupFirst    RollupKind = "first"
	RollupLast     RollupKind = "last"
)

// RollupDefInput declares one derived field.
type RollupDefInput struct {
	Name     string
	Kind     RollupKind
	Edge     string
	Property string // required for traverse/first/last
}

// IndexFieldInput is one component of a composite IndexDef.
type IndexFieldInput struct {
	Field     string
	Direction Direction
	Kind      FieldKind // defaults to FieldProperty
}

// IndexDefInput declares one composite index.
type IndexDefInput struct {
	Fields []IndexFieldInput
}
