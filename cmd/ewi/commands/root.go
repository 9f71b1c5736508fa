package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ewi",
	Short: "Equal-weighted index engine",
	Long: `ewindex - equal-weighted top-N index engine

Builds and serves a daily-rebalanced, equal-weighted stock index with
divisor continuity across membership changes.

Usage:
  go run ./cmd/ewi [command]

Examples:
  go run ./cmd/ewi ingest --from 2024-06-03 --to 2024-06-28
  go run ./cmd/ewi build --from 2024-06-03 --to 2024-06-28
  go run ./cmd/ewi returns --from 2024-06-03 --to 2024-06-28
  go run ./cmd/ewi api
  go run ./cmd/ewi scheduler
  go run ./cmd/ewi status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
