package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/ewindex/internal/index"
)

// MarketRepository stores daily price and shares-outstanding snapshots.
type MarketRepository struct {
	pool *pgxpool.Pool
}

// NewMarketRepository creates a new market data repository.
func NewMarketRepository(pool *pgxpool.Pool) *MarketRepository {
	return &MarketRepository{pool: pool}
}

// Save upserts a single snapshot for a date.
func (r *MarketRepository) Save(ctx context.Context, date time.Time, s index.StockSnapshot) error {
	query := `
		INSERT INTO ewi.marketdata (date, ticker, price, shares_outstanding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date, ticker) DO UPDATE SET
			price = EXCLUDED.price,
			shares_outstanding = EXCLUDED.shares_outstanding
	`

	_, err := r.pool.Exec(ctx, query, date, s.Ticker, s.Price, s.SharesOutstanding)
	return err
}

// ReplaceDay replaces all snapshots for a date in a single transaction,
// so partially-collected days never mix with a previous run.
func (r *MarketRepository) ReplaceDay(ctx context.Context, date time.Time, snapshots []index.StockSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ewi.marketdata WHERE date = $1`, date); err != nil {
		return err
	}

	query := `
		INSERT INTO ewi.marketdata (date, ticker, price, shares_outstanding)
		VALUES ($1, $2, $3, $4)
	`
	for _, s := range snapshots {
		if _, err := tx.Exec(ctx, query, date, s.Ticker, s.Price, s.SharesOutstanding); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SnapshotsForDate retrieves all snapshots for a date, ticker ascending.
func (r *MarketRepository) SnapshotsForDate(ctx context.Context, date time.Time) ([]index.StockSnapshot, error) {
	query := `
		SELECT ticker, price, shares_outstanding
		FROM ewi.marketdata
		WHERE date = $1
		ORDER BY ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []index.StockSnapshot
	for rows.Next() {
		var s index.StockSnapshot
		if err := rows.Scan(&s.Ticker, &s.Price, &s.SharesOutstanding); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// LatestDate returns the most recent date with any market data.
// Returns a zero time when the table is empty.
func (r *MarketRepository) LatestDate(ctx context.Context) (time.Time, error) {
	query := `SELECT COALESCE(MAX(date), '0001-01-01'::date) FROM ewi.marketdata`

	var date time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&date); err != nil {
		return time.Time{}, err
	}
	if date.Year() <= 1 {
		return time.Time{}, nil
	}
	return date, nil
}

// CountForDate returns the number of snapshots stored for a date.
func (r *MarketRepository) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ewi.marketdata WHERE date = $1`, date).Scan(&n)
	return n, err
}
