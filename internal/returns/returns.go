// Package returns derives return series and period statistics from a
// time-ordered sequence of index levels. Like the index engine it is
// pure: every function is a deterministic transformation of its input
// with no hidden state, so a series can always be re-derived.
package returns

import (
	"sort"
	"time"

	"github.com/wonny/ewindex/internal/index"
)

// LevelPoint is one published index level on one date.
type LevelPoint struct {
	Date  time.Time `json:"date"`
	Level float64   `json:"level"`
}

// Point is one day of the derived return series.
type Point struct {
	Date time.Time `json:"date"`
	// Daily is level_t / level_{t-1} - 1.
	Daily float64 `json:"daily_return"`
	// Cumulative is level_t / level_ref - 1, where level_ref is the
	// first point of the supplied window.
	Cumulative float64 `json:"cumulative_return"`
}

// Daily computes day-over-day returns for consecutive level pairs. The
// input is sorted by date before use; the output has one point per
// input date except the first.
func Daily(levels []LevelPoint) ([]Point, error) {
	sorted, err := sortedLevels(levels)
	if err != nil {
		return nil, err
	}

	series := make([]Point, 0, len(sorted)-1)
	ref := sorted[0].Level
	for i := 1; i < len(sorted); i++ {
		series = append(series, Point{
			Date:       sorted[i].Date,
			Daily:      sorted[i].Level/sorted[i-1].Level - 1,
			Cumulative: sorted[i].Level/ref - 1,
		})
	}
	return series, nil
}

// Cumulative computes the whole-window return: last level over first
// level, minus one. It agrees with compounding the daily returns over
// the same window.
func Cumulative(levels []LevelPoint) (float64, error) {
	sorted, err := sortedLevels(levels)
	if err != nil {
		return 0, err
	}
	return sorted[len(sorted)-1].Level/sorted[0].Level - 1, nil
}

func sortedLevels(levels []LevelPoint) ([]LevelPoint, error) {
	if len(levels) < 2 {
		return nil, &index.InsufficientDataError{What: "index levels", Need: 2, Have: len(levels)}
	}

	sorted := make([]LevelPoint, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for _, p := range sorted {
		if p.Level <= 0 {
			return nil, &index.ValidationError{Field: "level", Date: p.Date, Reason: "must be positive"}
		}
	}
	return sorted, nil
}
