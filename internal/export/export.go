// Package export renders built index history as a zip of CSV files:
// one for levels and returns, one for the closing composition, one for
// composition changes.
package export

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/internal/returns"
	"github.com/wonny/ewindex/internal/store"
)

// Data holds everything a report includes.
type Data struct {
	Levels      []store.StatePoint
	Returns     []returns.Point
	Composition index.IndexState
	Changes     []index.CompositionChange
}

// Write renders data as a zip archive to w.
func Write(w io.Writer, data Data) error {
	zw := zip.NewWriter(w)

	if err := writeCSV(zw, "levels.csv", levelRows(data)); err != nil {
		return err
	}
	if err := writeCSV(zw, "composition.csv", compositionRows(data.Composition)); err != nil {
		return err
	}
	if err := writeCSV(zw, "changes.csv", changeRows(data.Changes)); err != nil {
		return err
	}

	return zw.Close()
}

func writeCSV(zw *zip.Writer, name string, rows [][]string) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	cw.Flush()
	return cw.Error()
}

func levelRows(data Data) [][]string {
	// Returns are keyed by date; levels may include a lookback day with
	// no return of its own.
	daily := make(map[string]returns.Point, len(data.Returns))
	for _, p := range data.Returns {
		daily[p.Date.Format("2006-01-02")] = p
	}

	rows := [][]string{{"date", "level", "divisor", "daily_return", "cumulative_return"}}
	for _, p := range data.Levels {
		key := p.Date.Format("2006-01-02")
		dailyStr, cumStr := "", ""
		if r, ok := daily[key]; ok {
			dailyStr = formatFloat(r.Daily)
			cumStr = formatFloat(r.Cumulative)
		}
		rows = append(rows, []string{
			key,
			formatFloat(p.Level),
			formatFloat(p.Divisor),
			dailyStr,
			cumStr,
		})
	}
	return rows
}

func compositionRows(state index.IndexState) [][]string {
	rows := [][]string{{"date", "ticker", "price", "shares_outstanding", "notional_shares", "contribution", "weight"}}
	total := state.MarketValue()
	for _, m := range state.Members {
		weight := 0.0
		if total > 0 {
			weight = m.Contribution() / total
		}
		rows = append(rows, []string{
			state.Date.Format("2006-01-02"),
			m.Stock.Ticker,
			formatFloat(m.Stock.Price),
			formatFloat(m.Stock.SharesOutstanding),
			formatFloat(m.NotionalShares),
			formatFloat(m.Contribution()),
			formatFloat(weight),
		})
	}
	return rows
}

func changeRows(changes []index.CompositionChange) [][]string {
	rows := [][]string{{"date", "ticker", "kind"}}
	for _, c := range changes {
		rows = append(rows, []string{c.Date.Format("2006-01-02"), c.Ticker, string(c.Kind)})
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
