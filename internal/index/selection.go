package index

import (
	"sort"
	"time"
)

// SelectTopN ranks eligible snapshots by descending market cap and
// returns the first n. Exact market-cap ties break by ticker ascending
// so the ranking is deterministic. Snapshots with a non-positive price
// or share count are not eligible.
//
// When fewer than n eligible snapshots exist the full ranked list is
// returned together with an InsufficientDataError; whether to proceed
// with the short list is the caller's policy, not the engine's.
func SelectTopN(snapshots []StockSnapshot, n int, date time.Time) ([]StockSnapshot, error) {
	if n <= 0 {
		return nil, &ValidationError{Field: "n", Date: date, Reason: "must be positive"}
	}

	eligible := make([]StockSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if isFinite(s.Price) && s.Price > 0 && isFinite(s.SharesOutstanding) && s.SharesOutstanding > 0 {
			eligible = append(eligible, s)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		ci, cj := eligible[i].MarketCap(), eligible[j].MarketCap()
		if ci != cj {
			return ci > cj
		}
		return eligible[i].Ticker < eligible[j].Ticker
	})

	if len(eligible) < n {
		return eligible, &InsufficientDataError{Date: date, What: "eligible stocks", Need: n, Have: len(eligible)}
	}
	return eligible[:n], nil
}

// EqualWeight assigns each stock the notional share count that makes it
// contribute exactly targetValue to the index. Pure; order is preserved.
func EqualWeight(stocks []StockSnapshot, targetValue float64) ([]IndexMember, error) {
	if !isFinite(targetValue) || targetValue <= 0 {
		return nil, &ValidationError{Field: "target_value", Reason: "must be finite and positive"}
	}

	members := make([]IndexMember, 0, len(stocks))
	for _, s := range stocks {
		m, err := NewIndexMember(s, targetValue/s.Price)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}
