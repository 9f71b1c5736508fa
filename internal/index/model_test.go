package index

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewStockSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		price  float64
		shares float64
		wantOK bool
	}{
		{"valid", "AAPL", 210.5, 15.2e9, true},
		{"empty ticker", "", 100, 10, false},
		{"zero price", "MSFT", 0, 10, false},
		{"negative price", "MSFT", -1, 10, false},
		{"nan price", "MSFT", math.NaN(), 10, false},
		{"inf shares", "MSFT", 100, math.Inf(1), false},
		{"zero shares", "MSFT", 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStockSnapshot(tt.ticker, tt.price, tt.shares)
			if !tt.wantOK {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.price*tt.shares, s.MarketCap())
		})
	}
}

func TestNewIndexMember(t *testing.T) {
	stock, err := NewStockSnapshot("AAPL", 100, 1e9)
	require.NoError(t, err)

	m, err := NewIndexMember(stock, 5)
	require.NoError(t, err)
	assert.Equal(t, 500.0, m.Contribution())

	_, err = NewIndexMember(stock, -1)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = NewIndexMember(stock, math.NaN())
	assert.ErrorAs(t, err, &verr)
}

func TestNewIndexState(t *testing.T) {
	a, _ := NewStockSnapshot("A", 100, 10)
	b, _ := NewStockSnapshot("B", 50, 20)
	ma, _ := NewIndexMember(a, 5)
	mb, _ := NewIndexMember(b, 10)
	d := day(2025, 7, 1)

	state, err := NewIndexState(d, []IndexMember{ma, mb}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, state.MarketValue())
	assert.Equal(t, 1000.0, state.Level())

	got, ok := state.Member("B")
	require.True(t, ok)
	assert.Equal(t, 10.0, got.NotionalShares)
	_, ok = state.Member("Z")
	assert.False(t, ok)

	var verr *ValidationError

	_, err = NewIndexState(d, nil, 1)
	assert.ErrorAs(t, err, &verr, "empty members")

	_, err = NewIndexState(d, []IndexMember{ma, ma}, 1)
	assert.ErrorAs(t, err, &verr, "duplicate ticker")

	_, err = NewIndexState(d, []IndexMember{ma, mb}, 0)
	assert.ErrorAs(t, err, &verr, "zero divisor")

	_, err = NewIndexState(d, []IndexMember{ma, mb}, -2)
	assert.ErrorAs(t, err, &verr, "negative divisor")
}

func TestSettingsValidate(t *testing.T) {
	valid := Settings{BaseDate: day(2025, 7, 1), BaseValue: 1000, Size: 100}
	require.NoError(t, valid.Validate())

	var verr *ValidationError
	assert.ErrorAs(t, Settings{BaseValue: 1000, Size: 100}.Validate(), &verr)
	assert.ErrorAs(t, Settings{BaseDate: day(2025, 7, 1), BaseValue: 0, Size: 100}.Validate(), &verr)
	assert.ErrorAs(t, Settings{BaseDate: day(2025, 7, 1), BaseValue: 1000, Size: 0}.Validate(), &verr)
}
