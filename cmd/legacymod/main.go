// Package main implements the legacymod CLI: the stable external
// surface over the analysis pipeline and migration engine. Command
// registration uses a root command in this file, one file per
// subcommand group.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"legacymod/internal/config"
	"legacymod/internal/logging"
)

// Exit codes returned by run().
const (
	exitSuccess      = 0
	exitGeneralError = 1
	exitInvalidArgs  = 2
)

var (
	flagVerbose    bool
	flagConfigPath string
)

var rootCmd = &cobra.Command{
	Use:           "legacymod",
	Short:         "Legacy-modernization workbench: Java analysis and migration pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose := flagVerbose
		if cfg, err := config.Load(flagConfigPath); err == nil && cfg.Logging.Verbose {
			verbose = true
		}
		return logging.Init(verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "reveal underlying stack/trace on failure")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a workbench config file (optional)")

	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(exportCSVCmd)
	rootCmd.AddCommand(exportJSONCmd)
	rootCmd.AddCommand(planInfoCmd)
	rootCmd.AddCommand(migrationHistoryCmd)
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if isUsageError(err) {
			return exitInvalidArgs
		}
		return exitGeneralError
	}
	return exitSuccess
}

// usageError marks an error as an invalid-arguments failure (exit code
// 2) rather than a general one (exit code 1).
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func invalidArgs(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func isUsageError(err error) bool {
	_, ok := err.(*usageError)
	return ok
}

// resolveUnderRoot anchors a relative config path under the project
// root; an absolute override is used as-is.
func resolveUnderRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
