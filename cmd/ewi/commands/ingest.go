package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect market data for a date range",
	Long: `Fetches closing prices and market caps from Financial Modeling Prep
for every trading day in the range and stores the snapshots.

Tickers missing from the provider's profile data are recovered by
scraping shares outstanding where possible.

Example:
  go run ./cmd/ewi ingest --from 2024-06-03 --to 2024-06-28
  go run ./cmd/ewi ingest --from 2024-06-03`,
	RunE: runIngest,
}

var (
	ingestFrom string
	ingestTo   string
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "range start (YYYY-MM-DD), required")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "range end (YYYY-MM-DD), default --from")
}

func runIngest(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag(ingestFrom, "from")
	if err != nil {
		return err
	}
	to := from
	if ingestTo != "" {
		if to, err = parseDateFlag(ingestTo, "to"); err != nil {
			return err
		}
	}

	// 1. Wire config, database, service
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.cfg.Index.Universe) == 0 {
		return fmt.Errorf("INDEX_UNIVERSE is empty; nothing to collect")
	}

	// 2. Wire the ingestion pipeline
	collector := a.newCollector()

	// 3. Collect the range
	start := time.Now()
	days, err := collector.CollectRange(context.Background(), from, to)
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Collected %d trading day(s) in %.2fs\n", days, time.Since(start).Seconds())
	return nil
}
