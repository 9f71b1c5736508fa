package index

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSettings = Settings{
	BaseDate:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	BaseValue: 1000,
	Size:      2,
}

func baseUniverse(t *testing.T) []StockSnapshot {
	t.Helper()
	return []StockSnapshot{
		snap(t, "A", 100, 10), // cap 1,000
		snap(t, "B", 50, 20),  // cap 1,000
	}
}

func TestInitialize_BaseDate(t *testing.T) {
	state, changes, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	// target_value = 1000/2 = 500 → A holds 5 notional shares, B holds 10.
	require.Len(t, state.Members, 2)
	a, _ := state.Member("A")
	b, _ := state.Member("B")
	assert.Equal(t, 5.0, a.NotionalShares)
	assert.Equal(t, 10.0, b.NotionalShares)

	assert.Equal(t, 1000.0, state.MarketValue())
	assert.Equal(t, 1.0, state.Divisor)
	assert.Equal(t, 1000.0, state.Level(), "level is the base value by definition")

	require.Len(t, changes, 2)
	assert.Equal(t, CompositionChange{Date: testSettings.BaseDate, Ticker: "A", Kind: ChangeAdd}, changes[0])
	assert.Equal(t, CompositionChange{Date: testSettings.BaseDate, Ticker: "B", Kind: ChangeAdd}, changes[1])
}

func TestInitialize_InsufficientUniverse(t *testing.T) {
	_, _, err := Initialize(testSettings, []StockSnapshot{snap(t, "A", 100, 10)})
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)

	// With the shortfall policy on, the short list is accepted and the
	// base level still equals the base value exactly.
	relaxed := testSettings
	relaxed.AllowShortfall = true
	state, changes, err := Initialize(relaxed, []StockSnapshot{snap(t, "A", 100, 10)})
	require.NoError(t, err)
	assert.Len(t, state.Members, 1)
	assert.Len(t, changes, 1)
	assert.InDelta(t, 1000.0, state.Level(), 1e-9)

	// The shortfall policy only accepts a short ranked list; with no
	// eligible names at all the error still propagates.
	_, _, err = Initialize(relaxed, nil)
	require.ErrorAs(t, err, &insufficient)
}

func TestAdvance_ProportionalMoveKeepsShares(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	// Both prices move +10%: rebalance target becomes 550 but the share
	// counts are already equal-weighted, so no changes are recorded.
	next := testSettings.BaseDate.AddDate(0, 0, 1)
	today := []StockSnapshot{
		snap(t, "A", 110, 10),
		snap(t, "B", 55, 20),
	}

	state, changes, err := Advance(testSettings, prior, next, today)
	require.NoError(t, err)

	a, _ := state.Member("A")
	b, _ := state.Member("B")
	assert.Equal(t, 5.0, a.NotionalShares)
	assert.Equal(t, 10.0, b.NotionalShares)
	assert.Equal(t, prior.Divisor, state.Divisor)
	assert.InDelta(t, 1100.0, state.Level(), 1e-9)
	assert.Empty(t, changes)
}

func TestAdvance_RebalanceRecordsMaterialMoves(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	// A doubles while B is flat: the members must be pulled back to
	// equal contributions and both moves recorded.
	next := testSettings.BaseDate.AddDate(0, 0, 1)
	today := []StockSnapshot{
		snap(t, "A", 200, 10),
		snap(t, "B", 50, 20),
	}

	state, changes, err := Advance(testSettings, prior, next, today)
	require.NoError(t, err)

	// today_value = 200*5 + 50*10 = 1500, target 750.
	a, _ := state.Member("A")
	b, _ := state.Member("B")
	assert.InDelta(t, 3.75, a.NotionalShares, 1e-12)
	assert.InDelta(t, 15.0, b.NotionalShares, 1e-12)
	assert.InDelta(t, a.Contribution(), b.Contribution(), 1e-9, "equal-weight invariant")

	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, ChangeRebalance, c.Kind)
		assert.Equal(t, next, c.Date)
	}
	// Rebalancing alone never moves the level or the divisor.
	assert.Equal(t, prior.Divisor, state.Divisor)
	assert.InDelta(t, 1500.0, state.Level(), 1e-9)
}

func TestAdvance_MembershipSwapPreservesLevel(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	// C's market cap overtakes B's: expect REMOVE B, ADD C, and the
	// published level unchanged from its pre-adjustment value.
	next := testSettings.BaseDate.AddDate(0, 0, 1)
	today := []StockSnapshot{
		snap(t, "A", 100, 10),  // cap 1,000
		snap(t, "B", 50, 20),   // cap 1,000
		snap(t, "C", 20, 200),  // cap 4,000
	}

	state, changes, err := Advance(testSettings, prior, next, today)
	require.NoError(t, err)

	_, hasB := state.Member("B")
	assert.False(t, hasB)
	c, hasC := state.Member("C")
	require.True(t, hasC)

	// No price moved, so the swap must not move the level (no-jump).
	assert.InDelta(t, 1000.0, state.Level(), 1e-6)

	// The entrant contributes the same notional value as incumbents.
	a, _ := state.Member("A")
	assert.InDelta(t, a.Contribution(), c.Contribution(), 1e-9)

	require.Len(t, changes, 2)
	assert.Equal(t, CompositionChange{Date: next, Ticker: "B", Kind: ChangeRemove}, changes[0])
	assert.Equal(t, CompositionChange{Date: next, Ticker: "C", Kind: ChangeAdd}, changes[1])
}

func TestAdvance_DivisorRatioMatchesValueRatio(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	next := testSettings.BaseDate.AddDate(0, 0, 1)
	today := []StockSnapshot{
		snap(t, "A", 120, 10),
		snap(t, "B", 45, 20),
		snap(t, "C", 30, 300),
	}

	state, _, err := Advance(testSettings, prior, next, today)
	require.NoError(t, err)

	// new_divisor / prior.divisor == V_after / V_before exactly, where
	// V_before is the rebalanced incumbent value: 120*5 + 45*10 = 1050.
	valueBefore := 1050.0
	assert.InDelta(t, state.MarketValue()/valueBefore, state.Divisor/prior.Divisor, 1e-12)

	// Level continuity: the level right after adjustment equals the
	// rebalanced level right before it.
	assert.InDelta(t, valueBefore/prior.Divisor, state.Level(), 1e-9)
}

func TestAdvance_MissingSnapshotCarriesPriceForward(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	// B has no data today: it is held at yesterday's price, so nothing
	// moves and no changes are recorded. The target ranking still sees
	// only A and B is carried as an incumbent.
	next := testSettings.BaseDate.AddDate(0, 0, 1)
	relaxed := testSettings
	relaxed.AllowShortfall = true
	today := []StockSnapshot{snap(t, "A", 100, 10)}

	state, changes, err := Advance(relaxed, prior, next, today)
	require.NoError(t, err)

	// A keeps membership; B misses the target set (no snapshot today)
	// and is removed on its stale price without jumping the level.
	_, hasA := state.Member("A")
	assert.True(t, hasA)
	assert.InDelta(t, 1000.0, state.Level(), 1e-9)
	assert.NotEmpty(t, changes)
}

func TestAdvance_InsufficientWithoutPolicyAborts(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	next := testSettings.BaseDate.AddDate(0, 0, 1)
	_, _, err = Advance(testSettings, prior, next, []StockSnapshot{snap(t, "A", 100, 10)})

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestAdvance_RejectsOutOfOrderDates(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	var verr *ValidationError

	_, _, err = Advance(testSettings, prior, testSettings.BaseDate, baseUniverse(t))
	assert.ErrorAs(t, err, &verr, "same day as prior state")

	_, _, err = Advance(testSettings, prior, testSettings.BaseDate.AddDate(0, 0, -3), baseUniverse(t))
	assert.ErrorAs(t, err, &verr, "before base date")
}

func TestAdvance_ContinuityViolation(t *testing.T) {
	// A degenerate prior state built by hand: its only member has a zero
	// price, and today's snapshots do not include that ticker, so the
	// zero carries forward and the pre-adjustment value is zero. That
	// must abort, never divide.
	prior := IndexState{
		Date:    testSettings.BaseDate,
		Divisor: 1,
		Members: []IndexMember{
			{Stock: StockSnapshot{Ticker: "Z", Price: 0, SharesOutstanding: 10}, NotionalShares: 5},
		},
	}
	next := testSettings.BaseDate.AddDate(0, 0, 1)

	// Eligible entrants exist, so ranking itself succeeds; the failure
	// must still surface as a continuity violation, not as a weighting
	// error from the membership step.
	_, _, err := Advance(testSettings, prior, next, baseUniverse(t))

	var cont *ContinuityViolationError
	require.ErrorAs(t, err, &cont)
	assert.True(t, cont.Date.Equal(next))
	assert.Equal(t, 0.0, cont.ValueBefore)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestAdvance_Idempotent(t *testing.T) {
	prior, _, err := Initialize(testSettings, baseUniverse(t))
	require.NoError(t, err)

	next := testSettings.BaseDate.AddDate(0, 0, 1)
	today := []StockSnapshot{
		snap(t, "A", 103, 10),
		snap(t, "B", 48, 20),
		snap(t, "C", 19, 150),
	}

	first, firstChanges, err := Advance(testSettings, prior, next, today)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, againChanges, err := Advance(testSettings, prior, next, today)
		require.NoError(t, err)
		assert.Equal(t, first, again, "re-derivation must be bit-for-bit identical")
		assert.Equal(t, firstChanges, againChanges)
	}
}

func TestAdvance_MultiDayFoldKeepsEqualWeights(t *testing.T) {
	settings := Settings{BaseDate: testSettings.BaseDate, BaseValue: 1000, Size: 3}
	universe := []StockSnapshot{
		snap(t, "A", 100, 10),
		snap(t, "B", 50, 30),
		snap(t, "C", 20, 100),
		snap(t, "D", 10, 50),
	}

	state, _, err := Initialize(settings, universe)
	require.NoError(t, err)

	// Walk a week of drifting prices; after every step all members must
	// contribute equally within tolerance.
	prices := map[string]float64{"A": 100, "B": 50, "C": 20, "D": 10}
	bump := map[string]float64{"A": 1.01, "B": 0.99, "C": 1.03, "D": 1.07}
	shares := map[string]float64{"A": 10, "B": 30, "C": 100, "D": 50}

	date := settings.BaseDate
	for i := 0; i < 5; i++ {
		date = date.AddDate(0, 0, 1)
		var today []StockSnapshot
		for ticker, p := range prices {
			prices[ticker] = p * bump[ticker]
			today = append(today, snap(t, ticker, prices[ticker], shares[ticker]))
		}

		next, _, err := Advance(settings, state, date, today)
		require.NoError(t, err)

		first := next.Members[0].Contribution()
		for _, m := range next.Members[1:] {
			assert.InDelta(t, first, m.Contribution(), 1e-6, "day %d equal-weight invariant", i+1)
		}
		state = next
	}
}
