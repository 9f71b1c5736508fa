package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// returnsCmd represents the returns command
var returnsCmd = &cobra.Command{
	Use:   "returns",
	Short: "Show index returns for a date range",
	Long: `Derives daily and cumulative returns from the built index levels
and prints a per-day table with a summary report.

Example:
  go run ./cmd/ewi returns --from 2024-06-03 --to 2024-06-28`,
	RunE: runReturns,
}

var (
	returnsFrom string
	returnsTo   string
)

func init() {
	rootCmd.AddCommand(returnsCmd)

	returnsCmd.Flags().StringVar(&returnsFrom, "from", "", "range start (YYYY-MM-DD), required")
	returnsCmd.Flags().StringVar(&returnsTo, "to", "", "range end (YYYY-MM-DD), required")
}

func runReturns(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag(returnsFrom, "from")
	if err != nil {
		return err
	}
	to, err := parseDateFlag(returnsTo, "to")
	if err != nil {
		return err
	}

	// 1. Wire config, database, service
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	// 2. Compute the return series
	result, err := a.service.Performance(context.Background(), from, to)
	if err != nil {
		return err
	}

	fmt.Printf("\n%-12s %12s %12s\n", "Date", "Daily", "Cumulative")
	for _, p := range result.Points {
		fmt.Printf("%-12s %11.4f%% %11.4f%%\n",
			p.Date.Format("2006-01-02"), p.Daily*100, p.Cumulative*100)
	}

	r := result.Report
	fmt.Printf("\nPeriod %s ~ %s\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Printf("  Total return  : %8.4f%%\n", r.TotalReturn*100)
	fmt.Printf("  Annual return : %8.4f%%\n", r.AnnualReturn*100)
	fmt.Printf("  Volatility    : %8.4f%%\n", r.Volatility*100)
	fmt.Printf("  Sharpe        : %8.4f\n", r.Sharpe)
	fmt.Printf("  Max drawdown  : %8.4f%%\n", r.MaxDrawdown*100)
	return nil
}
