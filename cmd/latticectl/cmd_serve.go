package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lattice-db/lattice/cmd/latticectl/fixture"
	"github.com/lattice-db/lattice/pkg/lattice"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/view"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Open an interactive, reactive view over a dataset",
		Long: `serve opens one query fixture as a live, windowed View and drops
into a line-oriented REPL to drive it: items, scroll, move, expand,
collapse, apply (re-run the query's edge selections), help and quit.
Events print as "[kind] #id". No REPL command edits the dataset; it is
loaded once from the --dataset fixtures.`,
		RunE: runServe,
	}
	serveCmd.Flags().String("schema", "", "path to a YAML schema fixture (required)")
	serveCmd.Flags().StringSlice("dataset", nil, "path(s) to YAML dataset fixtures")
	serveCmd.Flags().String("query", "", "path to a YAML query fixture (required)")
	serveCmd.Flags().Int("height", 20, "viewport height, in rows")
	_ = serveCmd.MarkFlagRequired("schema")
	_ = serveCmd.MarkFlagRequired("query")
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	schemaPath, _ := cmd.Flags().GetString("schema")
	datasetPaths, _ := cmd.Flags().GetStringSlice("dataset")
	queryPath, _ := cmd.Flags().GetString("query")
	height, _ := cmd.Flags().GetInt("height")

	in, err := fixture.LoadSchema(schemaPath)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := lattice.Open(in, &lattice.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("serve: opening db: %w", err)
	}

	if len(datasetPaths) > 0 {
		ds, err := fixture.LoadDatasets(datasetPaths)
		if err != nil {
			return err
		}
		if _, err := fixture.Load(db, ds); err != nil {
			return fmt.Errorf("serve: loading dataset: %w", err)
		}
	}

	q, err := fixture.LoadQuery(queryPath)
	if err != nil {
		return err
	}

	v, err := db.Subscribe(q, height, func(e view.Event) {
		fmt.Printf("[%s] #%d\n", e.Kind, e.ID)
	})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer v.Close()

	if len(q.Selections) > 0 {
		if err := applySelectionsToRoots(v, q.Selections); err != nil {
			return fmt.Errorf("serve: applying selections: %w", err)
		}
	}

	fmt.Println("latticectl serve: type 'help' for commands, 'quit' to exit")
	printRows(db, v.Items())
	return runRepl(db, v, q.Selections)
}

// applySelectionsToRoots re-runs the query fixture's declarative edge
// selections (Selections/Virtual) against every current root row. It's a
// one-shot snapshot like Expand, so the REPL's "apply" command exists to
// re-issue it by hand after an edit adds nodes under a selected edge.
func applySelectionsToRoots(v *view.View, sels []query.EdgeSelection) error {
	for _, row := range v.Items() {
		if row.Depth != 0 {
			continue
		}
		if err := v.ApplySelections(row.ID, sels); err != nil {
			return err
		}
	}
	return nil
}

func runRepl(db *lattice.DB, v *view.View, sels []query.EdgeSelection) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Println("commands: items | scroll <n> | move <delta> | expand <id> <edge> | collapse <id> <edge> | apply | quit")
		case "apply":
			if len(sels) == 0 {
				fmt.Println("query fixture declared no selections")
				continue
			}
			if err := applySelectionsToRoots(v, sels); err != nil {
				fmt.Println("error:", err)
				continue
			}
			printRows(db, v.Items())
		case "items":
			printRows(db, v.Items())
		case "scroll":
			if n, ok := parseIntArg(fields, 1); ok {
				v.ScrollTo(n)
				printRows(db, v.Items())
			}
		case "move":
			if n, ok := parseIntArg(fields, 1); ok {
				v.Move(n)
				printRows(db, v.Items())
			}
		case "expand":
			if len(fields) != 3 {
				fmt.Println("usage: expand <id> <edge>")
				continue
			}
			id, ok := parseNodeID(fields[1])
			if !ok {
				continue
			}
			if err := v.Expand(id, fields[2]); err != nil {
				fmt.Println("error:", err)
				continue
			}
			printRows(db, v.Items())
		case "collapse":
			if len(fields) != 3 {
				fmt.Println("usage: collapse <id> <edge>")
				continue
			}
			id, ok := parseNodeID(fields[1])
			if !ok {
				continue
			}
			if err := v.Collapse(id, fields[2]); err != nil {
				fmt.Println("error:", err)
				continue
			}
			printRows(db, v.Items())
		default:
			fmt.Printf("unknown command %q, type 'help'\n", fields[0])
		}
	}
}

func parseIntArg(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		fmt.Println("missing argument")
		return 0, false
	}
	n, err := strconv.Atoi(fields[i])
	if err != nil {
		fmt.Println("not a number:", fields[i])
		return 0, false
	}
	return n, true
}

func parseNodeID(s string) (store.NodeId, bool) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		fmt.Println("not a node id:", s)
		return 0, false
	}
	return store.NodeId(n), true
}
