package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lattice-db/lattice/cmd/latticectl/fixture"
	"github.com/lattice-db/lattice/pkg/schema"
)

func newSchemaCmd() *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Schema fixture operations",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Resolve a YAML schema fixture and report errors",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchemaValidate,
	}
	schemaCmd.AddCommand(validateCmd)

	return schemaCmd
}

func runSchemaValidate(cmd *cobra.Command, args []string) error {
	in, err := fixture.LoadSchema(args[0])
	if err != nil {
		return err
	}

	s, err := schema.Resolve(in)
	if err != nil {
		return fmt.Errorf("schema invalid: %w", err)
	}

	fmt.Printf("schema OK: %d type(s)\n", len(s.Types()))
	for _, t := range s.Types() {
		fmt.Printf("  %s: %d propert(y/ies), %d edge(s), %d rollup(s)\n",
			t.Name, len(t.Properties), len(t.Edges), len(t.Rollups))
	}
	return nil
}
