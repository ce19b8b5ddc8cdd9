// Package cmd defines the CLI commands for the deepresearch executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepresearch",
		Short: "A deep research crawler that turns a query into a sourced report.",
		Long: `deepresearch performs a breadth-first, two-level web exploration rooted
at a search-engine result set, scores each fetched page for relevance,
and distills a summary plus key findings into structured reports.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; defaults apply without one)")

	cmd.AddCommand(newResearchCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
