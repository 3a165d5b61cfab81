package schema

import "fmt"

// ErrorKind enumerates the ParseError taxonomy from spec.md §6. InvalidJson
// is listed for completeness — this package never parses text, so only an
// external collaborator would ever construct that variant.
type ErrorKind string

const (
	ErrInvalidJSON          ErrorKind = "InvalidJson"
	ErrMissingReverseEdge   ErrorKind = "MissingReverseEdge"
	ErrUnknownProperty      ErrorKind = "UnknownProperty"
	ErrUnknownEdge          ErrorKind = "UnknownEdge"
	ErrInvalidPropertyType  ErrorKind = "InvalidPropertyType"
	ErrDuplicateFieldName   ErrorKind = "DuplicateFieldName"
	ErrRollupRequiresSort   ErrorKind = "RollupRequiresSort"
)

// ValidationError is one failure found while resolving a schema Input. A
// single Resolve call can surface many of these at once (see DESIGN.md:
// multierror aggregation), so each carries enough context to locate the
// offending declaration without a caller needing to re-scan the schema.
type ValidationError struct {
	Kind ErrorKind
	Type string
	Edge string
	Name string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Edge != "" && e.Name != "":
		return fmt.Sprintf("schema: %s: type %q edge %q field %q", e.Kind, e.Type, e.Edge, e.Name)
	case e.Edge != "":
		return fmt.Sprintf("schema: %s: type %q edge %q", e.Kind, e.Type, e.Edge)
	case e.Name != "":
		return fmt.Sprintf("schema: %s: type %q field %q", e.Kind, e.Type, e.Name)
	default:
		return fmt.Sprintf("schema: %s: type %q", e.Kind, e.Type)
	}
}
