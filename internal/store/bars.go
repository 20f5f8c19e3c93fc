package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/retry"
)

// BarRepository implements contracts.BarRepository against PostgreSQL.
// The (symbol, trade_date) uniqueness constraint in the schema plus
// upsert-only writes make duplicate bars impossible by construction.
type BarRepository struct {
	pool  *pgxpool.Pool
	retry retry.Policy
}

// NewBarRepository creates a new bar repository.
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool, retry: retry.Default()}
}

const upsertBarQuery = `
	INSERT INTO bars (symbol, trade_date, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (symbol, trade_date) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		updated_at = NOW()
`

// Upsert writes one bar, replacing any existing bar for the same
// (symbol, trade_date).
func (r *BarRepository) Upsert(ctx context.Context, bar *contracts.PriceBar) error {
	return r.retry.Do(ctx, func() error {
		_, err := r.pool.Exec(ctx, upsertBarQuery,
			bar.Symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert bar %s %s: %w", bar.Symbol, bar.Date.Format("2006-01-02"), err)
		}
		return nil
	})
}

// UpsertBatch writes a batch of bars in one transaction. Either every
// bar lands or none does.
func (r *BarRepository) UpsertBatch(ctx context.Context, bars []*contracts.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	return r.retry.Do(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, bar := range bars {
			batch.Queue(upsertBarQuery,
				bar.Symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert %d bars: %w", len(bars), err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// GetSeries returns bars for a symbol within [from, to], date ascending.
func (r *BarRepository) GetSeries(ctx context.Context, symbol string, from, to time.Time) ([]*contracts.PriceBar, error) {
	query := `
		SELECT symbol, trade_date, open, high, low, close, volume
		FROM bars
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date
	`

	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []*contracts.PriceBar
	for rows.Next() {
		bar := &contracts.PriceBar{}
		if err := rows.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}

// GetCloseSeries returns date-ascending closes for a symbol within [from, to].
func (r *BarRepository) GetCloseSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.ClosePoint, error) {
	query := `
		SELECT trade_date, close
		FROM bars
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date
	`

	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []contracts.ClosePoint
	for rows.Next() {
		var p contracts.ClosePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}

	return points, nil
}

// ListSymbols returns the distinct symbols present in the store.
func (r *BarRepository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// LatestDate returns the most recent trade date across all symbols, or
// the zero time when the store is empty.
func (r *BarRepository) LatestDate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(trade_date) FROM bars`).Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("failed to query latest trade date: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

// MeanCloseSeries returns the date-aligned cross-sectional mean close of
// the given symbols within [from, to], ascending. Dates where only a
// subset of the symbols traded average over that subset.
func (r *BarRepository) MeanCloseSeries(ctx context.Context, symbols []string, from, to time.Time) ([]contracts.ClosePoint, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	query := `
		SELECT trade_date, AVG(close)
		FROM bars
		WHERE symbol = ANY($1) AND trade_date BETWEEN $2 AND $3
		GROUP BY trade_date
		ORDER BY trade_date
	`

	rows, err := r.pool.Query(ctx, query, symbols, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query mean close series: %w", err)
	}
	defer rows.Close()

	var points []contracts.ClosePoint
	for rows.Next() {
		var p contracts.ClosePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan mean close: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mean closes: %w", err)
	}

	return points, nil
}
