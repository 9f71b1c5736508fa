package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/internal/returns"
	"github.com/wonny/ewindex/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func readCSV(t *testing.T, r *zip.Reader, name string) [][]string {
	t.Helper()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		rows, err := csv.NewReader(rc).ReadAll()
		require.NoError(t, err)
		return rows
	}
	t.Fatalf("file %s not in archive", name)
	return nil
}

func TestWrite(t *testing.T) {
	state, err := index.NewIndexState(day(2024, time.June, 4), []index.IndexMember{
		{Stock: index.StockSnapshot{Ticker: "AAA", Price: 110, SharesOutstanding: 10}, NotionalShares: 5},
		{Stock: index.StockSnapshot{Ticker: "BBB", Price: 55, SharesOutstanding: 20}, NotionalShares: 10},
	}, 1.0)
	require.NoError(t, err)

	data := Data{
		Levels: []store.StatePoint{
			{Date: day(2024, time.June, 3), Divisor: 1, Level: 1000},
			{Date: day(2024, time.June, 4), Divisor: 1, Level: 1100},
		},
		Returns: []returns.Point{
			{Date: day(2024, time.June, 4), Daily: 0.1, Cumulative: 0.1},
		},
		Composition: state,
		Changes: []index.CompositionChange{
			{Date: day(2024, time.June, 3), Ticker: "AAA", Kind: index.ChangeAdd},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, data))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	levels := readCSV(t, zr, "levels.csv")
	require.Len(t, levels, 3)
	assert.Equal(t, []string{"date", "level", "divisor", "daily_return", "cumulative_return"}, levels[0])
	// Lookback day has no return columns.
	assert.Equal(t, []string{"2024-06-03", "1000", "1", "", ""}, levels[1])
	assert.Equal(t, []string{"2024-06-04", "1100", "1", "0.1", "0.1"}, levels[2])

	composition := readCSV(t, zr, "composition.csv")
	require.Len(t, composition, 3)
	assert.Equal(t, "AAA", composition[1][1])
	assert.Equal(t, "0.5", composition[1][6]) // equal weighted

	changes := readCSV(t, zr, "changes.csv")
	require.Len(t, changes, 2)
	assert.Equal(t, []string{"2024-06-03", "AAA", "ADD"}, changes[1])
}

func TestWrite_EmptyData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Data{}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	levels := readCSV(t, zr, "levels.csv")
	assert.Len(t, levels, 1) // header only
}
