package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the index over a date range",
	Long: `Folds the index forward over every trading day in the range using
the collected market data, persisting each day's state, membership,
and composition changes.

The range must start at the index base date or directly after
already-built history.

Example:
  go run ./cmd/ewi build --from 2024-06-03 --to 2024-06-28`,
	RunE: runBuild,
}

var (
	buildFrom string
	buildTo   string
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildFrom, "from", "", "range start (YYYY-MM-DD), required")
	buildCmd.Flags().StringVar(&buildTo, "to", "", "range end (YYYY-MM-DD), default --from")
}

func runBuild(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag(buildFrom, "from")
	if err != nil {
		return err
	}
	to := from
	if buildTo != "" {
		if to, err = parseDateFlag(buildTo, "to"); err != nil {
			return err
		}
	}

	// 1. Wire config, database, service
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	// 2. Build the range
	start := time.Now()
	result, err := a.service.BuildRange(context.Background(), from, to)
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Built %d day(s) in %.2fs\n", result.DaysBuilt, time.Since(start).Seconds())
	fmt.Printf("   Changes     : %d\n", result.Changes)
	fmt.Printf("   Final level : %.4f\n", result.FinalLevel)
	return nil
}
