// Package fixture is the external collaborator pkg/schema and pkg/query's
// own doc comments point to: the YAML-to-struct boundary those packages
// deliberately stay on the far side of. It parses the fixture files
// latticectl's subcommands take on the command line into schema.Input,
// query.Query, and a plain node/edge dataset, then replays the dataset
// through pkg/lattice's mutation API so a loaded DB looks exactly like one
// built by a live caller.
package fixture

import (
	"fmt"

	"github.com/lattice-db/lattice/pkg/value"
)

// toValue converts a YAML-decoded scalar (string, int, float64, bool, or
// nil) into a value.Value. yaml.v3 decodes untyped interface{} fields into
// exactly these five Go kinds, so no further coercion is needed.
func toValue(raw interface{}) (value.Value, error) {
	switch v := raw.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(v), nil
	case string:
		return value.String(v), nil
	case int:
		return value.Int(int64(v)), nil
	case int64:
		return value.Int(v), nil
	case float64:
		return value.Number(v), nil
	default:
		return value.Value{}, fmt.Errorf("fixture: unsupported scalar type %T", raw)
	}
}
