// Package jobs holds the concrete scheduled jobs: the nightly market
// data collection and the index build that follows it.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/ewindex/internal/calendar"
	"github.com/wonny/ewindex/internal/ingest"
	"github.com/wonny/ewindex/pkg/logger"
)

// IngestJob collects market data for the most recent trading day.
type IngestJob struct {
	collector *ingest.Collector
	logger    *logger.Logger
}

// NewIngestJob creates a new ingest job.
func NewIngestJob(collector *ingest.Collector, log *logger.Logger) *IngestJob {
	return &IngestJob{collector: collector, logger: log}
}

// Name returns the job name.
func (j *IngestJob) Name() string {
	return "market_data_ingest"
}

// Schedule runs on weekday evenings after the US close.
func (j *IngestJob) Schedule() string {
	return "0 0 18 * * 1-5"
}

// Run collects snapshots for today, or the previous trading day when
// today is a holiday.
func (j *IngestJob) Run(ctx context.Context) error {
	target := calendar.Normalize(time.Now().UTC())
	if !calendar.IsTradingDay(target) {
		target = calendar.PrevTradingDay(target)
	}

	n, err := j.collector.CollectDay(ctx, target)
	if err != nil {
		return fmt.Errorf("collect %s: %w", target.Format("2006-01-02"), err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":   target.Format("2006-01-02"),
		"stored": n,
	}).Info("Scheduled ingest finished")

	return nil
}
