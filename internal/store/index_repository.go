package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/ewindex/internal/index"
)

// ErrStateNotFound signals that no index state exists for the requested date.
var ErrStateNotFound = errors.New("index state not found")

// IndexRepository stores index states, memberships, and composition changes.
type IndexRepository struct {
	pool *pgxpool.Pool
}

// NewIndexRepository creates a new index repository.
func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{pool: pool}
}

// SaveState persists the state, its membership, and the day's changes in
// one transaction. Re-running the same day replaces the previous rows, so
// rebuilds stay idempotent.
func (r *IndexRepository) SaveState(ctx context.Context, state index.IndexState, changes []index.CompositionChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	stateQuery := `
		INSERT INTO ewi.index_states (date, divisor, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (date) DO UPDATE SET
			divisor = EXCLUDED.divisor,
			level = EXCLUDED.level
	`
	if _, err := tx.Exec(ctx, stateQuery, state.Date, state.Divisor, state.Level()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ewi.index_members WHERE date = $1`, state.Date); err != nil {
		return err
	}
	memberQuery := `
		INSERT INTO ewi.index_members (date, ticker, price, shares_outstanding, notional_shares)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, m := range state.Members {
		if _, err := tx.Exec(ctx, memberQuery,
			state.Date, m.Stock.Ticker, m.Stock.Price, m.Stock.SharesOutstanding, m.NotionalShares,
		); err != nil {
			return fmt.Errorf("save member %s: %w", m.Stock.Ticker, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ewi.composition_changes WHERE date = $1`, state.Date); err != nil {
		return err
	}
	changeQuery := `
		INSERT INTO ewi.composition_changes (date, seq, ticker, kind)
		VALUES ($1, $2, $3, $4)
	`
	for seq, c := range changes {
		if _, err := tx.Exec(ctx, changeQuery, c.Date, seq, c.Ticker, c.Kind); err != nil {
			return fmt.Errorf("save change %s/%s: %w", c.Ticker, c.Kind, err)
		}
	}

	return tx.Commit(ctx)
}

// LoadState reconstructs the state for a date from the membership rows
// alone, so members held through a data gap (no marketdata row that day)
// reload with their carried-forward prices intact. Returns
// ErrStateNotFound when the date has no stored state.
func (r *IndexRepository) LoadState(ctx context.Context, date time.Time) (index.IndexState, error) {
	var divisor float64
	err := r.pool.QueryRow(ctx,
		`SELECT divisor FROM ewi.index_states WHERE date = $1`, date,
	).Scan(&divisor)
	if errors.Is(err, pgx.ErrNoRows) {
		return index.IndexState{}, ErrStateNotFound
	}
	if err != nil {
		return index.IndexState{}, err
	}

	memberQuery := `
		SELECT ticker, notional_shares, price, shares_outstanding
		FROM ewi.index_members
		WHERE date = $1
		ORDER BY ticker ASC
	`
	rows, err := r.pool.Query(ctx, memberQuery, date)
	if err != nil {
		return index.IndexState{}, err
	}
	defer rows.Close()

	var members []index.IndexMember
	for rows.Next() {
		var m index.IndexMember
		if err := rows.Scan(&m.Stock.Ticker, &m.NotionalShares, &m.Stock.Price, &m.Stock.SharesOutstanding); err != nil {
			return index.IndexState{}, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return index.IndexState{}, err
	}

	return index.NewIndexState(date.UTC(), members, divisor)
}

// StatePoint is a stored level observation, used for return series.
type StatePoint struct {
	Date    time.Time
	Divisor float64
	Level   float64
}

// StatesBetween retrieves stored levels in [from, to], date ascending.
func (r *IndexRepository) StatesBetween(ctx context.Context, from, to time.Time) ([]StatePoint, error) {
	query := `
		SELECT date, divisor, level
		FROM ewi.index_states
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []StatePoint
	for rows.Next() {
		var p StatePoint
		if err := rows.Scan(&p.Date, &p.Divisor, &p.Level); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// LatestStateDate returns the most recent date with a stored state.
// Returns a zero time when no states exist.
func (r *IndexRepository) LatestStateDate(ctx context.Context) (time.Time, error) {
	var date time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(date), '0001-01-01'::date) FROM ewi.index_states`,
	).Scan(&date)
	if err != nil {
		return time.Time{}, err
	}
	if date.Year() <= 1 {
		return time.Time{}, nil
	}
	return date.UTC(), nil
}

// ChangesBetween retrieves composition changes in [from, to], ordered by
// date then emission order.
func (r *IndexRepository) ChangesBetween(ctx context.Context, from, to time.Time) ([]index.CompositionChange, error) {
	query := `
		SELECT date, ticker, kind
		FROM ewi.composition_changes
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC, seq ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []index.CompositionChange
	for rows.Next() {
		var c index.CompositionChange
		if err := rows.Scan(&c.Date, &c.Ticker, &c.Kind); err != nil {
			return nil, err
		}
		c.Date = c.Date.UTC()
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
