package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/ewindex/internal/calendar"
	"github.com/wonny/ewindex/internal/service"
	"github.com/wonny/ewindex/pkg/logger"
)

// ComposeJob advances the index over any days with collected data that
// have not been built yet. Runs after the ingest job.
type ComposeJob struct {
	service *service.Service
	logger  *logger.Logger
}

// NewComposeJob creates a new compose job.
func NewComposeJob(svc *service.Service, log *logger.Logger) *ComposeJob {
	return &ComposeJob{service: svc, logger: log}
}

// Name returns the job name.
func (j *ComposeJob) Name() string {
	return "index_compose"
}

// Schedule runs half an hour after the ingest job.
func (j *ComposeJob) Schedule() string {
	return "0 30 18 * * 1-5"
}

// Run builds from the day after the last built state through the latest
// collected day.
func (j *ComposeJob) Run(ctx context.Context) error {
	status, err := j.service.CurrentStatus(ctx)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	if status.LatestMarketDate.IsZero() {
		j.logger.Info("No market data collected yet, skipping build")
		return nil
	}

	from := j.service.Settings().BaseDate
	if !status.LatestStateDate.IsZero() {
		if !status.LatestStateDate.Before(status.LatestMarketDate) {
			j.logger.Info("Index already up to date")
			return nil
		}
		from = calendar.NextTradingDay(status.LatestStateDate)
	}

	result, err := j.service.BuildRange(ctx, from, status.LatestMarketDate)
	if err != nil {
		return fmt.Errorf("build range: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"days_built":  result.DaysBuilt,
		"changes":     result.Changes,
		"final_level": result.FinalLevel,
	}).Info("Scheduled build finished")

	return nil
}
