package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/pkg/config"
	"github.com/wonny/ewindex/pkg/logger"
)

type fakeSource struct {
	snapshots map[string][]index.StockSnapshot // keyed by date string
	prices    map[string]float64
	fetchErr  error
}

func (f *fakeSource) FetchDay(_ context.Context, date time.Time, _ []string) ([]index.StockSnapshot, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snapshots[date.Format("2006-01-02")], nil
}

func (f *fakeSource) FetchPrices(_ context.Context, _ time.Time, tickers []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, t := range tickers {
		if p, ok := f.prices[t]; ok {
			out[t] = p
		}
	}
	return out, nil
}

type fakeShares struct {
	shares map[string]float64
}

func (f *fakeShares) FetchSharesOutstanding(_ context.Context, ticker string) (float64, error) {
	s, ok := f.shares[ticker]
	if !ok {
		return 0, errors.New("not found")
	}
	return s, nil
}

type fakeRepo struct {
	stored map[string][]index.StockSnapshot
	err    error
}

func (f *fakeRepo) ReplaceDay(_ context.Context, date time.Time, snapshots []index.StockSnapshot) error {
	if f.err != nil {
		return f.err
	}
	if f.stored == nil {
		f.stored = make(map[string][]index.StockSnapshot)
	}
	f.stored[date.Format("2006-01-02")] = snapshots
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCollectDay(t *testing.T) {
	source := &fakeSource{snapshots: map[string][]index.StockSnapshot{
		"2024-06-03": {
			{Ticker: "MSFT", Price: 50, SharesOutstanding: 20},
			{Ticker: "AAPL", Price: 100, SharesOutstanding: 10},
		},
	}}
	repo := &fakeRepo{}
	c := NewCollector(source, nil, repo, []string{"AAPL", "MSFT"}, testLogger())

	n, err := c.CollectDay(context.Background(), day(2024, time.June, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored := repo.stored["2024-06-03"]
	require.Len(t, stored, 2)
	// Stored in ticker order regardless of fetch order.
	assert.Equal(t, "AAPL", stored[0].Ticker)
	assert.Equal(t, "MSFT", stored[1].Ticker)
}

func TestCollectDay_SharesFallback(t *testing.T) {
	source := &fakeSource{
		snapshots: map[string][]index.StockSnapshot{
			"2024-06-03": {{Ticker: "AAPL", Price: 100, SharesOutstanding: 10}},
		},
		prices: map[string]float64{"GOOG": 200},
	}
	shares := &fakeShares{shares: map[string]float64{"GOOG": 5}}
	repo := &fakeRepo{}
	c := NewCollector(source, shares, repo, []string{"AAPL", "GOOG"}, testLogger())

	n, err := c.CollectDay(context.Background(), day(2024, time.June, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored := repo.stored["2024-06-03"]
	require.Len(t, stored, 2)
	assert.Equal(t, "GOOG", stored[1].Ticker)
	assert.Equal(t, 200.0, stored[1].Price)
	assert.Equal(t, 5.0, stored[1].SharesOutstanding)
}

func TestCollectDay_FallbackFailureLeavesTickerOut(t *testing.T) {
	source := &fakeSource{
		snapshots: map[string][]index.StockSnapshot{
			"2024-06-03": {{Ticker: "AAPL", Price: 100, SharesOutstanding: 10}},
		},
		prices: map[string]float64{},
	}
	shares := &fakeShares{}
	repo := &fakeRepo{}
	c := NewCollector(source, shares, repo, []string{"AAPL", "GOOG"}, testLogger())

	n, err := c.CollectDay(context.Background(), day(2024, time.June, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollectRange(t *testing.T) {
	source := &fakeSource{snapshots: map[string][]index.StockSnapshot{
		"2024-06-03": {{Ticker: "AAPL", Price: 100, SharesOutstanding: 10}},
		"2024-06-04": {{Ticker: "AAPL", Price: 101, SharesOutstanding: 10}},
	}}
	repo := &fakeRepo{}
	c := NewCollector(source, nil, repo, []string{"AAPL"}, testLogger())

	n, err := c.CollectRange(context.Background(), day(2024, time.June, 3), day(2024, time.June, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.stored, 2)
}

func TestCollectRange_WeekendOnlyRange(t *testing.T) {
	c := NewCollector(&fakeSource{}, nil, &fakeRepo{}, []string{"AAPL"}, testLogger())

	_, err := c.CollectRange(context.Background(), day(2024, time.June, 1), day(2024, time.June, 2))
	assert.Error(t, err)
}

func TestCollectRange_StoreFailureReported(t *testing.T) {
	source := &fakeSource{snapshots: map[string][]index.StockSnapshot{
		"2024-06-03": {{Ticker: "AAPL", Price: 100, SharesOutstanding: 10}},
	}}
	repo := &fakeRepo{err: errors.New("db down")}
	c := NewCollector(source, nil, repo, []string{"AAPL"}, testLogger())

	n, err := c.CollectRange(context.Background(), day(2024, time.June, 3), day(2024, time.June, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
