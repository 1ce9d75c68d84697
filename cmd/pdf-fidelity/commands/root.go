// Package commands implements the pdf-fidelity command tree.
package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrRegression is returned when a run recorded a failure that was not
// expected. The summary has already been printed.
var ErrRegression = errors.New("fidelity regression")

var (
	cfgFile  string
	verbose  bool
	noColor  bool
	jsonOut  bool
	queryArg string
)

var rootCmd = &cobra.Command{
	Use:   "pdf-fidelity",
	Short: "Regression tests for PDF extraction fidelity",
	Long: `pdf-fidelity extracts text, character metadata and page rasters from a
registered PDF corpus in parallel and compares them against versioned baselines
produced by a single sequential reference run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func addQueryFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&queryArg, "query", "q", "", "tag query selecting documents, e.g. 'category:forms AND NOT expected-failure'")
}
