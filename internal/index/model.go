package index

import (
	"math"
	"time"
)

// StockSnapshot is one ticker's market data for one day. Instances are
// treated as immutable: repricing a member produces a new snapshot, it
// never mutates the old one.
type StockSnapshot struct {
	Ticker            string  `json:"ticker"`
	Price             float64 `json:"price"`
	SharesOutstanding float64 `json:"shares_outstanding"`
}

// NewStockSnapshot validates and builds a snapshot. Price and shares
// outstanding must be finite and strictly positive for the stock to be
// usable at all.
func NewStockSnapshot(ticker string, price, sharesOutstanding float64) (StockSnapshot, error) {
	if ticker == "" {
		return StockSnapshot{}, &ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if !isFinite(price) || price <= 0 {
		return StockSnapshot{}, &ValidationError{Field: "price", Ticker: ticker, Reason: "must be finite and positive"}
	}
	if !isFinite(sharesOutstanding) || sharesOutstanding <= 0 {
		return StockSnapshot{}, &ValidationError{Field: "shares_outstanding", Ticker: ticker, Reason: "must be finite and positive"}
	}
	return StockSnapshot{Ticker: ticker, Price: price, SharesOutstanding: sharesOutstanding}, nil
}

// MarketCap is price times shares outstanding. Always derived, never
// stored.
func (s StockSnapshot) MarketCap() float64 {
	return s.Price * s.SharesOutstanding
}

// IndexMember is a stock plus the notional share count it holds in the
// index. Notional shares are bookkeeping only and need not be whole.
type IndexMember struct {
	Stock          StockSnapshot `json:"stock"`
	NotionalShares float64       `json:"notional_shares"`
}

// NewIndexMember validates and builds a member.
func NewIndexMember(stock StockSnapshot, notionalShares float64) (IndexMember, error) {
	if !isFinite(notionalShares) || notionalShares < 0 {
		return IndexMember{}, &ValidationError{Field: "notional_shares", Ticker: stock.Ticker, Reason: "must be finite and non-negative"}
	}
	return IndexMember{Stock: stock, NotionalShares: notionalShares}, nil
}

// Contribution is the notional value this member adds to the index.
func (m IndexMember) Contribution() float64 {
	return m.Stock.Price * m.NotionalShares
}

// IndexState is one calendar day of the index: the member set and the
// divisor. Each day's state is produced fresh from the prior day's
// state plus new market data; nothing is mutated in place and no state
// references the previous day.
type IndexState struct {
	Date    time.Time     `json:"date"`
	Members []IndexMember `json:"members"`
	Divisor float64       `json:"divisor"`
}

// NewIndexState validates and builds a state. Members must be non-empty
// with unique tickers, and the divisor finite and strictly positive.
func NewIndexState(date time.Time, members []IndexMember, divisor float64) (IndexState, error) {
	if len(members) == 0 {
		return IndexState{}, &ValidationError{Field: "members", Date: date, Reason: "must not be empty"}
	}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m.Stock.Ticker]; dup {
			return IndexState{}, &ValidationError{Field: "members", Ticker: m.Stock.Ticker, Date: date, Reason: "duplicate ticker"}
		}
		seen[m.Stock.Ticker] = struct{}{}
	}
	if !isFinite(divisor) || divisor <= 0 {
		return IndexState{}, &ValidationError{Field: "divisor", Date: date, Reason: "must be finite and positive"}
	}
	return IndexState{Date: date, Members: members, Divisor: divisor}, nil
}

// MarketValue is the sum of member contributions.
func (s IndexState) MarketValue() float64 {
	total := 0.0
	for _, m := range s.Members {
		total += m.Contribution()
	}
	return total
}

// Level is the published index level: market value over divisor.
func (s IndexState) Level() float64 {
	return s.MarketValue() / s.Divisor
}

// Member looks up a member by ticker.
func (s IndexState) Member(ticker string) (IndexMember, bool) {
	for _, m := range s.Members {
		if m.Stock.Ticker == ticker {
			return m, true
		}
	}
	return IndexMember{}, false
}

// ChangeKind classifies a composition change.
type ChangeKind string

const (
	// ChangeAdd marks a ticker entering the member set.
	ChangeAdd ChangeKind = "ADD"
	// ChangeRemove marks a ticker leaving the member set.
	ChangeRemove ChangeKind = "REMOVE"
	// ChangeRebalance marks a member whose notional share count moved
	// beyond tolerance during the equal-weighting step. Entry weighting
	// counts as the ADD, not as a REBALANCE.
	ChangeRebalance ChangeKind = "REBALANCE"
)

// CompositionChange is one recorded change for one ticker on one day.
type CompositionChange struct {
	Date   time.Time  `json:"date"`
	Ticker string     `json:"ticker"`
	Kind   ChangeKind `json:"kind"`
}

// Settings is the index configuration fixed at inception. It is threaded
// explicitly into every operation that needs it; there is no ambient
// settings singleton.
type Settings struct {
	// BaseDate is day zero. Recording index data for an earlier date is
	// rejected.
	BaseDate time.Time `json:"base_date"`
	// BaseValue is the level assigned on the base date by definition.
	BaseValue float64 `json:"base_value"`
	// Size is the target member count for every selection.
	Size int `json:"size"`
	// AllowShortfall lets the daily step proceed with fewer than Size
	// eligible names instead of aborting the day. Caller policy.
	AllowShortfall bool `json:"allow_shortfall"`
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	if s.BaseDate.IsZero() {
		return &ValidationError{Field: "base_date", Reason: "must be set"}
	}
	if !isFinite(s.BaseValue) || s.BaseValue <= 0 {
		return &ValidationError{Field: "base_value", Reason: "must be finite and positive"}
	}
	if s.Size <= 0 {
		return &ValidationError{Field: "size", Reason: "must be positive"}
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
