package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/schema"
)

// LoadSchema reads a YAML file directly into a schema.Input. schema.Input
// and everything it's built from (TypeDefInput, PropertyDefInput,
// EdgeDefInput, ...) are already plain exported strings and slices — the
// external-collaborator shape pkg/schema's own package doc asks for — so no
// intermediate fixture type is needed here, unlike fixture.Query.
func LoadSchema(path string) (schema.Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schema.Input{}, fmt.Errorf("fixture: reading schema %s: %w", path, err)
	}
	var in schema.Input
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return schema.Input{}, fmt.Errorf("fixture: parsing schema %s: %w", path, err)
	}
	return in, nil
}

// LoadQuery reads a YAML file into a fixture.Query and builds it into a
// query.Query.
func LoadQuery(path string) (*query.Query, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: reading query %s: %w", path, err)
	}
	var q Query
	if err := yaml.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("fixture: parsing query %s: %w", path, err)
	}
	built, err := q.Build()
	if err != nil {
		return nil, fmt.Errorf("fixture: building query %s: %w", path, err)
	}
	return built, nil
}
