// Package fmp fetches daily prices and market caps from the Financial
// Modeling Prep API. Requests are chunked to stay within the free tier's
// batch limits.
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/pkg/config"
	"github.com/wonny/ewindex/pkg/httputil"
	"github.com/wonny/ewindex/pkg/logger"
)

// Client handles communication with Financial Modeling Prep.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	chunkSize  int
}

// NewClient creates a new FMP client. The HTTP client should carry a rate
// limit matching cfg.RequestsPerMinute.
func NewClient(httpClient *httputil.Client, cfg config.FMPConfig, log *logger.Logger) *Client {
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 5
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		chunkSize:  chunk,
	}
}

type historicalResponse struct {
	// Batch requests wrap results in historicalStockList; single-symbol
	// requests return the fields at the top level.
	HistoricalStockList []historicalStock `json:"historicalStockList"`
	Symbol              string            `json:"symbol"`
	Historical          []historicalBar   `json:"historical"`
}

type historicalStock struct {
	Symbol     string          `json:"symbol"`
	Historical []historicalBar `json:"historical"`
}

type historicalBar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type profile struct {
	Symbol  string  `json:"symbol"`
	MktCap  float64 `json:"mktCap"`
	Price   float64 `json:"price"`
	Company string  `json:"companyName"`
}

// FetchDay fetches closing prices and market caps for every ticker in the
// universe and derives shares outstanding as mktCap/price. Tickers with
// missing price or market cap are skipped with a warning; the engine's
// shortfall policy decides what an incomplete day means.
func (c *Client) FetchDay(ctx context.Context, date time.Time, universe []string) ([]index.StockSnapshot, error) {
	prices, err := c.FetchPrices(ctx, date, universe)
	if err != nil {
		return nil, err
	}
	marketCaps, err := c.fetchMarketCaps(ctx, universe)
	if err != nil {
		return nil, err
	}

	var snapshots []index.StockSnapshot
	for _, ticker := range universe {
		price, okPrice := prices[ticker]
		mktCap, okCap := marketCaps[ticker]
		if !okPrice || !okCap || price <= 0 || mktCap <= 0 {
			c.logger.WithFields(map[string]interface{}{
				"ticker": ticker,
				"date":   date.Format("2006-01-02"),
			}).Warn("Skipping ticker due to missing data")
			continue
		}

		snap, err := index.NewStockSnapshot(ticker, price, mktCap/price)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Skipping invalid snapshot")
			continue
		}
		snapshots = append(snapshots, snap)
	}

	c.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"universe": len(universe),
		"fetched":  len(snapshots),
	}).Info("Fetched market data")

	return snapshots, nil
}

// FetchPrices calls /historical-price-full for the given tickers, one
// chunk at a time, and returns ticker -> close for the target date.
func (c *Client) FetchPrices(ctx context.Context, date time.Time, universe []string) (map[string]float64, error) {
	day := date.Format("2006-01-02")
	prices := make(map[string]float64, len(universe))

	for _, chunk := range chunks(universe, c.chunkSize) {
		params := url.Values{}
		params.Set("from", day)
		params.Set("to", day)
		params.Set("apikey", c.apiKey)
		endpoint := fmt.Sprintf("%s/api/v3/historical-price-full/%s?%s",
			c.baseURL, strings.Join(chunk, ","), params.Encode())

		resp, err := c.httpClient.Get(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch prices: %w", err)
		}

		var body historicalResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("decode price response: %w", err)
		}
		resp.Body.Close()

		stocks := body.HistoricalStockList
		if len(stocks) == 0 && body.Symbol != "" {
			stocks = []historicalStock{{Symbol: body.Symbol, Historical: body.Historical}}
		}
		for _, stock := range stocks {
			if len(stock.Historical) > 0 {
				prices[stock.Symbol] = stock.Historical[0].Close
			}
		}
	}

	return prices, nil
}

// fetchMarketCaps calls /profile for the universe in chunks and returns
// ticker -> latest market cap.
func (c *Client) fetchMarketCaps(ctx context.Context, universe []string) (map[string]float64, error) {
	marketCaps := make(map[string]float64, len(universe))

	for _, chunk := range chunks(universe, c.chunkSize) {
		endpoint := fmt.Sprintf("%s/api/v3/profile/%s?apikey=%s",
			c.baseURL, strings.Join(chunk, ","), url.QueryEscape(c.apiKey))

		resp, err := c.httpClient.Get(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch profiles: %w", err)
		}

		var profiles []profile
		if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("decode profile response: %w", err)
		}
		resp.Body.Close()

		for _, p := range profiles {
			if p.Symbol != "" && p.MktCap > 0 {
				marketCaps[p.Symbol] = p.MktCap
			}
		}
	}

	return marketCaps, nil
}

func chunks(items []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
