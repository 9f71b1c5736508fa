package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/ewindex/internal/api"
	"github.com/wonny/ewindex/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the index API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                  - Health check
  POST /api/index/build         - Build the index over a date range
  GET  /api/index/composition   - Membership and weights for a date
  GET  /api/index/changes       - Composition changes in a range
  GET  /api/index/performance   - Daily and cumulative returns
  GET  /api/index/export        - History report as a zip of CSVs
  GET  /api/index/status        - Ingest and build progress

Example:
  go run ./cmd/ewi api
  go run ./cmd/ewi api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT env)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ewindex API Server ===")

	// 1. Wire config, database, cache, service
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 2. Create handler and router
	indexHandler := handlers.NewIndexHandler(a.service, a.logger)
	router := api.NewRouter(indexHandler, a.logger)

	// 3. Create server
	server := api.New(a.cfg, a.logger, router)

	// 4. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			a.logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.logger.Info("Server stopped")
	return nil
}
