package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/ewindex/internal/scheduler"
	"github.com/wonny/ewindex/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the nightly ingest and build jobs",
	Long: `Starts the job scheduler:

  market_data_ingest  - weekday evenings, collects the day's snapshots
  index_compose       - 30 minutes later, advances the index over any
                        collected days not yet built

Example:
  go run ./cmd/ewi scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ewindex Scheduler ===")

	// 1. Wire config, database, service, ingestion
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	collector := a.newCollector()

	// 2. Register jobs
	sched := scheduler.New(a.logger)
	if err := sched.AddJob(jobs.NewIngestJob(collector, a.logger)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewComposeJob(a.service, a.logger)); err != nil {
		return err
	}

	// 3. Run until interrupted
	sched.Start()
	defer sched.Stop()

	fmt.Println("\n✅ Scheduler running")
	for _, name := range sched.JobNames() {
		fmt.Printf("   - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}
