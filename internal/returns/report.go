package returns

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	tradingDaysPerYear = 252
	riskFreeRate       = 0.03
)

// PeriodReport summarizes index performance over a window of levels.
type PeriodReport struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`

	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Analyze builds a PeriodReport from a window of index levels.
func Analyze(levels []LevelPoint) (*PeriodReport, error) {
	series, err := Daily(levels)
	if err != nil {
		return nil, err
	}
	total, err := Cumulative(levels)
	if err != nil {
		return nil, err
	}

	daily := make([]float64, len(series))
	for i, p := range series {
		daily[i] = p.Daily
	}

	report := &PeriodReport{
		StartDate:   series[0].Date,
		EndDate:     series[len(series)-1].Date,
		TotalReturn: total,
	}
	report.AnnualReturn = annualize(total, len(daily))
	report.Volatility = volatility(daily)
	if report.Volatility > 0 {
		report.Sharpe = (report.AnnualReturn - riskFreeRate) / report.Volatility
	}
	report.MaxDrawdown = maxDrawdown(daily)
	return report, nil
}

func annualize(totalReturn float64, days int) float64 {
	if days == 0 {
		return 0
	}
	return math.Pow(1+totalReturn, tradingDaysPerYear/float64(days)) - 1
}

func volatility(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	return stat.StdDev(daily, nil) * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the deepest peak-to-trough loss over the compounded
// series, as a negative fraction.
func maxDrawdown(daily []float64) float64 {
	value, peak, maxDD := 1.0, 1.0, 0.0
	for _, r := range daily {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if dd := (value - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
