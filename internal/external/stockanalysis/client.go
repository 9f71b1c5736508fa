// Package stockanalysis scrapes shares-outstanding figures from
// stockanalysis.com statistics pages. Used as a fallback when a profile
// endpoint has no usable market cap.
package stockanalysis

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/ewindex/pkg/httputil"
	"github.com/wonny/ewindex/pkg/logger"
)

// Client scrapes stockanalysis.com.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new stockanalysis.com client.
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    "https://stockanalysis.com",
	}
}

// FetchSharesOutstanding scrapes the statistics page for a ticker and
// returns the shares-outstanding count.
func (c *Client) FetchSharesOutstanding(ctx context.Context, ticker string) (float64, error) {
	endpoint := fmt.Sprintf("%s/stocks/%s/statistics/", c.baseURL, strings.ToLower(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch statistics page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("statistics page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse statistics page: %w", err)
	}

	shares, found := parseSharesOutstanding(doc)
	if !found {
		return 0, fmt.Errorf("shares outstanding not found for %s", ticker)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"shares": shares,
	}).Debug("Scraped shares outstanding")

	return shares, nil
}

// parseSharesOutstanding walks statistics tables for a "Shares Outstanding"
// row and parses its value cell.
func parseSharesOutstanding(doc *goquery.Document) (float64, bool) {
	var shares float64
	var found bool

	doc.Find("table tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		if !strings.EqualFold(label, "Shares Outstanding") {
			return true
		}
		value, err := parseAbbreviated(strings.TrimSpace(cells.Eq(1).Text()))
		if err != nil {
			return true
		}
		shares, found = value, true
		return false
	})

	return shares, found
}

// parseAbbreviated parses figures like "15.33B", "820.5M", or "1,234,567".
func parseAbbreviated(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "n/a" || s == "-" {
		return 0, fmt.Errorf("empty value")
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "T"):
		multiplier = 1e12
		s = strings.TrimSuffix(s, "T")
	case strings.HasSuffix(s, "B"):
		multiplier = 1e9
		s = strings.TrimSuffix(s, "B")
	case strings.HasSuffix(s, "M"):
		multiplier = 1e6
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		multiplier = 1e3
		s = strings.TrimSuffix(s, "K")
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return value * multiplier, nil
}
