// Package main provides the latticectl CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// cfg is the process-wide RunConfig, populated by initConfig once cobra has
// parsed flags (PersistentPreRunE runs after flag parsing, before any
// subcommand's own RunE).
var cfg RunConfig

func main() {
	rootCmd := &cobra.Command{
		Use:   "latticectl",
		Short: "latticectl - reactive graph query tool",
		Long: `latticectl drives an in-memory, schema-driven reactive graph
database: resolve a schema fixture, load a dataset, and run or subscribe
to queries against it.

Commands:
  • schema validate  - resolve and check a YAML schema fixture
  • query run        - run a query fixture once against a dataset and print results
  • serve            - open an interactive, reactive view over a dataset`,
	}

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("latticectl v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RunConfig is the merged view of flags, LATTICE_*-prefixed environment
// variables, and an optional YAML config file, in that order of
// precedence (flags win). Only the log level is merged this way: the
// --log-level flag is bound to the log_level key, which LATTICE_LOG_LEVEL
// or the config file can also set. Subcommand flags are read from cobra
// directly and have no environment-variable override.
type RunConfig struct {
	LogLevel string
}

func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("LATTICE")
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("latticectl: reading config %s: %w", path, err)
		}
	}

	if err := v.BindPFlag("log_level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	v.SetDefault("log_level", "info")

	cfg = RunConfig{LogLevel: v.GetString("log_level")}
	return nil
}

// newLogger builds a production zap.Logger at cfg.LogLevel, parsed with
// zap.ParseAtomicLevel; an unknown level is an error.
func newLogger() (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("latticectl: invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}
