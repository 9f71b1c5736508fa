// Package ingest collects daily market snapshots from external sources
// and stores them for the index engine.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/ewindex/internal/calendar"
	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/pkg/logger"
)

// MarketSource provides prices and derived snapshots for a trading day.
type MarketSource interface {
	FetchDay(ctx context.Context, date time.Time, universe []string) ([]index.StockSnapshot, error)
	FetchPrices(ctx context.Context, date time.Time, universe []string) (map[string]float64, error)
}

// SharesSource provides shares outstanding for a single ticker. Optional
// fallback for tickers whose profile data is incomplete.
type SharesSource interface {
	FetchSharesOutstanding(ctx context.Context, ticker string) (float64, error)
}

// Repository stores collected snapshots.
type Repository interface {
	ReplaceDay(ctx context.Context, date time.Time, snapshots []index.StockSnapshot) error
}

// Collector orchestrates one collection pass per trading day.
type Collector struct {
	source   MarketSource
	shares   SharesSource // may be nil
	repo     Repository
	universe []string
	logger   *logger.Logger
}

// NewCollector creates a collector. shares may be nil to disable the
// scrape fallback.
func NewCollector(source MarketSource, shares SharesSource, repo Repository, universe []string, log *logger.Logger) *Collector {
	return &Collector{
		source:   source,
		shares:   shares,
		repo:     repo,
		universe: universe,
		logger:   log,
	}
}

// CollectDay fetches snapshots for one date and replaces that day's rows.
// Returns the number of snapshots stored.
func (c *Collector) CollectDay(ctx context.Context, date time.Time) (int, error) {
	date = calendar.Normalize(date)

	snapshots, err := c.source.FetchDay(ctx, date, c.universe)
	if err != nil {
		return 0, fmt.Errorf("fetch day %s: %w", date.Format("2006-01-02"), err)
	}

	if missing := c.missingTickers(snapshots); len(missing) > 0 && c.shares != nil {
		recovered := c.recoverMissing(ctx, date, missing)
		snapshots = append(snapshots, recovered...)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Ticker < snapshots[j].Ticker
	})

	if err := c.repo.ReplaceDay(ctx, date, snapshots); err != nil {
		return 0, fmt.Errorf("store day %s: %w", date.Format("2006-01-02"), err)
	}

	c.logger.WithFields(map[string]interface{}{
		"date":   date.Format("2006-01-02"),
		"stored": len(snapshots),
	}).Info("Collected market data")

	return len(snapshots), nil
}

// CollectRange runs CollectDay over every trading day in [from, to].
// Days that fail are logged and skipped so one bad day does not abort a
// backfill.
func (c *Collector) CollectRange(ctx context.Context, from, to time.Time) (int, error) {
	days := calendar.Expand(from, to)
	if len(days) == 0 {
		return 0, fmt.Errorf("no trading days in range %s..%s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	collected := 0
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return collected, err
		}
		if _, err := c.CollectDay(ctx, day); err != nil {
			c.logger.WithError(err).WithField("date", day.Format("2006-01-02")).Warn("Skipping day after collection failure")
			continue
		}
		collected++
	}

	return collected, nil
}

// missingTickers returns universe tickers absent from the fetched set.
func (c *Collector) missingTickers(snapshots []index.StockSnapshot) []string {
	have := make(map[string]bool, len(snapshots))
	for _, s := range snapshots {
		have[s.Ticker] = true
	}

	var missing []string
	for _, ticker := range c.universe {
		if !have[ticker] {
			missing = append(missing, ticker)
		}
	}
	return missing
}

// recoverMissing re-prices missing tickers and scrapes shares outstanding
// for any that still have a close price.
func (c *Collector) recoverMissing(ctx context.Context, date time.Time, missing []string) []index.StockSnapshot {
	prices, err := c.source.FetchPrices(ctx, date, missing)
	if err != nil {
		c.logger.WithError(err).Warn("Fallback repricing failed")
		return nil
	}

	var recovered []index.StockSnapshot
	for _, ticker := range missing {
		price, ok := prices[ticker]
		if !ok || price <= 0 {
			continue
		}
		shares, err := c.shares.FetchSharesOutstanding(ctx, ticker)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Debug("Shares fallback failed")
			continue
		}
		snap, err := index.NewStockSnapshot(ticker, price, shares)
		if err != nil {
			continue
		}
		recovered = append(recovered, snap)
		c.logger.WithField("ticker", ticker).Info("Recovered ticker via shares fallback")
	}
	return recovered
}
