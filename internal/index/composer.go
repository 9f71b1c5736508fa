// Package index implements the equal-weighted index engine: constituent
// selection, equal-notional weighting, the daily rebalance/adjust step,
// and the divisor bookkeeping that keeps the published level continuous
// across membership changes.
//
// Everything here is pure: each operation is a deterministic function of
// its explicit inputs and performs no I/O. Persistence, caching and
// ingestion live in their own packages.
package index

import (
	"errors"
	"math"
	"time"
)

// sharesTolerance is the relative threshold below which a notional share
// move is treated as rounding noise and no REBALANCE is recorded.
const sharesTolerance = 1e-9

// Initialize builds the base-date state from the initial universe.
// The divisor is set so the level equals BaseValue exactly, and an ADD
// change is recorded for every initial member.
func Initialize(settings Settings, snapshots []StockSnapshot) (IndexState, []CompositionChange, error) {
	if err := settings.Validate(); err != nil {
		return IndexState{}, nil, err
	}

	top, err := SelectTopN(snapshots, settings.Size, settings.BaseDate)
	if err != nil {
		var insufficient *InsufficientDataError
		if !(errors.As(err, &insufficient) && settings.AllowShortfall && len(top) > 0) {
			return IndexState{}, nil, err
		}
	}

	targetValue := settings.BaseValue / float64(settings.Size)
	members, err := EqualWeight(top, targetValue)
	if err != nil {
		return IndexState{}, nil, err
	}

	// market_value / divisor == base_value on day zero, by construction.
	divisor := marketValue(members) / settings.BaseValue
	state, err := NewIndexState(settings.BaseDate, members, divisor)
	if err != nil {
		return IndexState{}, nil, err
	}

	changes := make([]CompositionChange, 0, len(members))
	for _, m := range members {
		changes = append(changes, CompositionChange{Date: settings.BaseDate, Ticker: m.Stock.Ticker, Kind: ChangeAdd})
	}
	return state, changes, nil
}

// Advance produces the next day's state from the prior day's state and
// today's market data. The two operating modes run in fixed order,
// rebalance then adjust:
//
//  1. reprice prior members with today's snapshots, carrying the prior
//     price forward for tickers with no snapshot today
//  2. rebalance incumbents back to equal notional value, recording a
//     REBALANCE for every member that moved beyond tolerance
//  3. re-rank the full universe and exchange members (REMOVE/ADD), new
//     entrants weighted at the same target value as incumbents
//  4. scale the divisor by V_after/V_before so the exchange itself never
//     moves the published level
//
// Advance is deterministic: identical inputs produce identical states
// and identically ordered change lists.
func Advance(settings Settings, prior IndexState, date time.Time, snapshots []StockSnapshot) (IndexState, []CompositionChange, error) {
	if err := settings.Validate(); err != nil {
		return IndexState{}, nil, err
	}
	if date.Before(settings.BaseDate) {
		return IndexState{}, nil, &ValidationError{Field: "date", Date: date, Reason: "before index base date"}
	}
	if !date.After(prior.Date) {
		return IndexState{}, nil, &ValidationError{Field: "date", Date: date, Reason: "must be after prior state date " + prior.Date.Format("2006-01-02")}
	}

	byTicker := make(map[string]StockSnapshot, len(snapshots))
	for _, s := range snapshots {
		byTicker[s.Ticker] = s
	}

	// Step 1: reprice. Notional shares carry over unchanged here.
	repriced := make([]IndexMember, 0, len(prior.Members))
	for _, m := range prior.Members {
		snap, ok := byTicker[m.Stock.Ticker]
		if !ok {
			// Data gap: hold the prior day's snapshot, price unchanged.
			snap = m.Stock
		}
		repriced = append(repriced, IndexMember{Stock: snap, NotionalShares: m.NotionalShares})
	}

	// Step 2: rebalance incumbents to equal notional value.
	todayValue := marketValue(repriced)
	targetValue := todayValue / float64(len(repriced))

	var changes []CompositionChange
	rebalanced := make([]IndexMember, 0, len(repriced))
	for _, m := range repriced {
		newShares := targetValue / m.Stock.Price
		if relDiff(newShares, m.NotionalShares) > sharesTolerance {
			m.NotionalShares = newShares
			changes = append(changes, CompositionChange{Date: date, Ticker: m.Stock.Ticker, Kind: ChangeRebalance})
		}
		rebalanced = append(rebalanced, m)
	}

	// Divisor continuity needs a usable pre-adjustment value. Check it
	// before the membership step so a corrupt prior state surfaces as a
	// continuity violation, not as a weighting failure downstream.
	valueBefore := marketValue(rebalanced)
	if !isFinite(valueBefore) || valueBefore <= 0 {
		return IndexState{}, nil, &ContinuityViolationError{Date: date, ValueBefore: valueBefore}
	}

	// Step 3: adjust membership against the full universe ranking.
	target, err := SelectTopN(snapshots, settings.Size, date)
	if err != nil {
		var insufficient *InsufficientDataError
		if !(errors.As(err, &insufficient) && settings.AllowShortfall && len(target) > 0) {
			return IndexState{}, nil, err
		}
	}

	inTarget := make(map[string]struct{}, len(target))
	for _, s := range target {
		inTarget[s.Ticker] = struct{}{}
	}
	incumbent := make(map[string]struct{}, len(rebalanced))

	final := make([]IndexMember, 0, len(target))
	for _, m := range rebalanced {
		incumbent[m.Stock.Ticker] = struct{}{}
		if _, keep := inTarget[m.Stock.Ticker]; keep {
			final = append(final, m)
		} else {
			changes = append(changes, CompositionChange{Date: date, Ticker: m.Stock.Ticker, Kind: ChangeRemove})
		}
	}
	for _, s := range target {
		if _, held := incumbent[s.Ticker]; held {
			continue
		}
		// Entrants take the step-2 target value so they contribute the
		// same notional value as rebalanced incumbents.
		entrant, err := EqualWeight([]StockSnapshot{s}, targetValue)
		if err != nil {
			return IndexState{}, nil, err
		}
		final = append(final, entrant[0])
		changes = append(changes, CompositionChange{Date: date, Ticker: s.Ticker, Kind: ChangeAdd})
	}

	// Step 4: divisor continuity. level_after == level_before exactly;
	// only genuine price movement may move the published level.
	valueAfter := marketValue(final)
	newDivisor := prior.Divisor * (valueAfter / valueBefore)

	state, err := NewIndexState(date, final, newDivisor)
	if err != nil {
		return IndexState{}, nil, err
	}
	return state, changes, nil
}

func marketValue(members []IndexMember) float64 {
	total := 0.0
	for _, m := range members {
		total += m.Contribution()
	}
	return total
}

// relDiff is |a-b| scaled by the larger magnitude, so the tolerance
// behaves the same across share counts of any size.
func relDiff(a, b float64) float64 {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return 0
	}
	return math.Abs(a-b) / scale
}
