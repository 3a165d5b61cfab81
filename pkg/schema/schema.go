package schema

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/lattice-db/lattice/pkg/value"
)

// TypeId is a small dense integer assigned during schema resolution,
// stable for the schema's lifetime (spec.md §3).
type TypeId uint16

// EdgeId is a small dense integer assigned during schema resolution,
// stable for the schema's lifetime.
type EdgeId uint16

// PropertyDef is a resolved property declaration.
type PropertyDef struct {
	Name string
	Kind value.Kind
}

// EdgeDef is a resolved forward edge: name, the target type, the id of its
// mandatory reverse edge, and an optional ordering directive.
type EdgeDef struct {
	ID         EdgeId
	Name       string
	TargetType TypeId
	ReverseID  EdgeId
	Sort       *EdgeSort
}

// EdgeSort orders an edge's target list by a property on the target (or,
// for the reverse direction, on the source) node.
type EdgeSort struct {
	Property  string
	Direction value.Direction
}

// RollupDef is a resolved derived-field declaration.
type RollupDef struct {
	Name     string
	Kind     RollupKind
	Edge     EdgeId
	EdgeName string
	Property string
}

// IndexField is one resolved component of a composite index.
type IndexField struct {
	Kind      FieldKind
	Name      string // property name, or edge name when Kind == FieldEdge
	Direction value.Direction
}

// IndexDef is a resolved composite index: an ordered list of fields.
type IndexDef struct {
	Fields []IndexField
}

// TypeDef is one resolved node type: its stored properties, edges,
// rollups (kept in Rollups, separate from Properties, though they read
// like properties per spec.md §4.3), and indexes.
type TypeDef struct {
	ID         TypeId
	Name       string
	Properties []PropertyDef
	propByName map[string]*PropertyDef
	Edges      []EdgeDef
	edgeByName map[string]*EdgeDef
	Rollups    []RollupDef
	rollupByName map[string]*RollupDef
	Indexes    []IndexDef
}

// Property looks up a declared (non-rollup) property by name.
func (t *TypeDef) Property(name string) (*PropertyDef, bool) {
	p, ok := t.propByName[name]
	return p, ok
}

// Edge looks up a declared edge by name.
func (t *TypeDef) Edge(name string) (*EdgeDef, bool) {
	e, ok := t.edgeByName[name]
	return e, ok
}

// Rollup looks up a declared rollup by name.
func (t *TypeDef) Rollup(name string) (*RollupDef, bool) {
	r, ok := t.rollupByName[name]
	return r, ok
}

// HasField reports whether name refers to either a stored property or a
// rollup — rollups behave as readable properties per spec.md §4.3.
func (t *TypeDef) HasField(name string) bool {
	if _, ok := t.propByName[name]; ok {
		return true
	}
	_, ok := t.rollupByName[name]
	return ok
}

// Schema is the fully resolved set of TypeDefs, indexable by name or id.
type Schema struct {
	types      []*TypeDef
	typeByName map[string]*TypeDef
}

// TypeByName looks up a resolved type.
func (s *Schema) TypeByName(name string) (*TypeDef, bool) {
	t, ok := s.typeByName[name]
	return t, ok
}

// TypeByID looks up a resolved type by its dense id.
func (s *Schema) TypeByID(id TypeId) (*TypeDef, bool) {
	if int(id) < 0 || int(id) >= len(s.types) {
		return nil, false
	}
	return s.types[id], true
}

// Types returns all resolved types in declaration order.
func (s *Schema) Types() []*TypeDef { return s.types }

// Resolve validates a parsed Input and assigns dense TypeIds/EdgeIds.
// Every MissingReverseEdge, UnknownEdge, DuplicateFieldName, and
// InvalidPropertyType problem across the whole Input is collected into one
// multierror rather than stopping at the first (see DESIGN.md §pkg/schema).
func Resolve(in Input) (*Schema, error) {
	s := &Schema{typeByName: make(map[string]*TypeDef, len(in.Types))}

	var errs *multierror.Error

	// Pass 1: assign TypeIds and build name lookup so forward references
	// (an edge naming a target type declared later in the Input) resolve.
	for i, td := range in.Types {
		if _, dup := s.typeByName[td.Name]; dup {
			errs = multierror.Append(errs, &ValidationError{Kind: ErrDuplicateFieldName, Type: td.Name})
			continue
		}
		t := &TypeDef{
			ID:           TypeId(i),
			Name:         td.Name,
			propByName:   make(map[string]*PropertyDef),
			edgeByName:   make(map[string]*EdgeDef),
			rollupByName: make(map[string]*RollupDef),
		}
		s.types = append(s.types, t)
		s.typeByName[td.Name] = t
	}

	// Pass 2: resolve properties (no cross-type dependency).
	for i, td := range in.Types {
		t := s.types[i]
		for _, pd := range td.Properties {
			if _, dup := t.propByName[pd.Name]; dup {
				errs = multierror.Append(errs, &ValidationError{Kind: ErrDuplicateFieldName, Type: t.Name, Name: pd.Name})
				continue
			}
			kind, ok := pd.Type.ToKind()
			if !ok {
				errs = multierror.Append(errs, &ValidationError{Kind: ErrInvalidPropertyType, Type: t.Name, Name: pd.Name})
				continue
			}
			prop := PropertyDef{Name: pd.Name, Kind: kind}
			t.Properties = append(t.Properties, prop)
			t.propByName[pd.Name] = &t.Properties[len(t.Properties)-1]
		}
	}

	// Pass 3: resolve edges, assigning dense EdgeIds per-type and checking
	// reverse-edge pairing (spec.md §3 invariant: every edge has a matching
	// reverse edge on the target type).
	for i, td := range in.Types {
		t := s.types[i]
		for _, ed := range td.Edges {
			if _, dup := t.edgeByName[ed.Name]; dup {
				errs = multierror.Append(errs, &ValidationError{Kind: ErrDuplicateFieldName, Type: t.Name, Edge: ed.Name})
				continue
			}
			target, ok := s.typeByName[ed.Target]
			if !ok {
				errs = multierror.Append(errs, &ValidationError{Kind: ErrUnknownEdge, Type: t.Name, Edge: ed.Name})
				continue
			}
			def := EdgeDef{
				ID:         EdgeId(len(t.Edges)),
				Name:       ed.Name,
				TargetType: target.ID,
			}
			if ed.Sort != nil {
				def.Sort = &EdgeSort{Property: ed.Sort.Property, Direction: ed.Sort.Direction.ToValueDirection()}
			}
			t.Edges = append(t.Edges, def)
			t.edgeByName[ed.Name] = &t.Edges[len(t.Edges)-1]
		}
	}

	// Pass 4: verify every edge's declared reverse exists by name on the
	// target type and wire ReverseID. The reverse edge's own target and
	// reverse name are not cross-checked.
	for i, td := range in.Types {
		t := s.types[i]
		for j, ed := range td.Edges {
			if j >= len(t.Edges) {
				continue // resolution of this edge failed in pass 3
			}
			target, ok := s.typeByName[ed.Target]
			if !ok {
				continue
			}
			rev, ok := target.edgeByName[ed.Reverse]
			if !ok {
				errs = multierror.Append(errs, &ValidationError{Kind: ErrMissingReverseEdge, Type: t.Name, Edge: ed.Name})
				continue
			}
			t.Edges[j].ReverseID = rev.ID
		}
	}

	// Pass 5: resolve rollups; traverse/first/last require a property
	// name. first/last are accepted on any edge, sorted or not: they read
	// the edge list's own order (see pkg/rollup), so no Sort directive or
	// covering index is checked here.
	for i, td := range in.Types {
		t := s.types[i]
		for _, rd := range td.Rollups {
			edge, ok := t.edgeByName[rd.Edge]
			if !ok {
				errs = multierror.Append(errs, &ValidationError{Kind: ErrUnknownEdge, Type: t.Name, Edge: rd.Edge, Name: rd.Name})
				continue
			}
			if (rd.Kind == RollupTraverse || rd.Kind == RollupFirst || rd.Kind == RollupLast) && rd.Property == "" {
				errs = multierror.Append(errs, &ValidationError{Kind: ErrUnknownProperty, Type: t.Name, Name: rd.Name})
				continue
			}
			def := RollupDef{Name: rd.Name, Kind: rd.Kind, Edge: edge.ID, EdgeName: rd.Edge, Property: rd.Property}
			t.Rollups = append(t.Rollups, def)
			t.rollupByName[rd.Name] = &t.Rollups[len(t.Rollups)-1]
		}
	}

	// Pass 6: resolve indexes; each field is either a property/rollup on
	// this type, or an edge name (the cross-entity indexing mechanism).
	for i, td := range in.Types {
		t := s.types[i]
		for _, idx := range td.Indexes {
			var def IndexDef
			for _, f := range idx.Fields {
				kind := f.Kind
				if kind == "" {
					kind = FieldProperty
				}
				if kind == FieldProperty && !t.HasField(f.Field) {
					errs = multierror.Append(errs, &ValidationError{Kind: ErrUnknownProperty, Type: t.Name, Name: f.Field})
					continue
				}
				if kind == FieldEdge {
					if _, ok := t.edgeByName[f.Field]; !ok {
						errs = multierror.Append(errs, &ValidationError{Kind: ErrUnknownEdge, Type: t.Name, Edge: f.Field})
						continue
					}
				}
				def.Fields = append(def.Fields, IndexField{Kind: kind, Name: f.Field, Direction: f.Direction.ToValueDirection()})
			}
			t.Indexes = append(t.Indexes, def)
		}
	}

	if errs != nil {
		errs.ErrorFormat = schemaErrorFormat
		return nil, errs.ErrorOrNil()
	}
	return s, nil
}

func schemaErrorFormat(errs []error) string {
	msg := fmt.Sprintf("schema resolution failed with %d error(s):", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return msg
}
