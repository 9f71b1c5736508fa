package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ingest and build progress",
	Long: `Prints how far ingestion and the index build have progressed, plus
database and cache connectivity.

Example:
  go run ./cmd/ewi status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	// 1. Wire config, database, service
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 2. Check connectivity
	dbOK := a.db.Ping(ctx) == nil

	// 3. Load progress
	status, err := a.service.CurrentStatus(ctx)
	if err != nil {
		return err
	}

	settings := a.service.Settings()
	fmt.Println("=== ewindex Status ===")
	fmt.Printf("  Database      : %s\n", okString(dbOK))
	fmt.Printf("  Cache         : %s\n", okString(a.cache.Enabled()))
	fmt.Printf("  Base date     : %s\n", settings.BaseDate.Format("2006-01-02"))
	fmt.Printf("  Index size    : %d\n", settings.Size)
	fmt.Printf("  Latest data   : %s\n", dateString(status.LatestMarketDate))
	fmt.Printf("  Latest build  : %s\n", dateString(status.LatestStateDate))
	if status.LatestLevel > 0 {
		fmt.Printf("  Latest level  : %.4f\n", status.LatestLevel)
	}
	return nil
}

func okString(ok bool) string {
	if ok {
		return "connected"
	}
	return "unavailable"
}

func dateString(d time.Time) string {
	if d.IsZero() {
		return "none"
	}
	return d.Format("2006-01-02")
}
