package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/retry"
)

// SectorTrendRepository implements contracts.SectorTrendRepository.
// Sector trends are a pure aggregation of indicator scores joined to
// symbol classifications, so the store computes them in SQL.
type SectorTrendRepository struct {
	pool  *pgxpool.Pool
	retry retry.Policy
}

// NewSectorTrendRepository creates a new sector-trend repository.
func NewSectorTrendRepository(pool *pgxpool.Pool) *SectorTrendRepository {
	return &SectorTrendRepository{pool: pool, retry: retry.Default()}
}

// ComputeAndStore aggregates rs_score by sector for the date, upserts
// the result rows and returns them. Symbols without a sector or without
// a score on the date are left out of the average.
func (r *SectorTrendRepository) ComputeAndStore(ctx context.Context, date time.Time) ([]contracts.SectorTrend, error) {
	query := `
		INSERT INTO sector_trends (sector, trade_date, avg_rs_score, symbol_count)
		SELECT s.sector, i.trade_date, AVG(i.rs_score), COUNT(*)
		FROM indicators i
		JOIN symbols s ON s.symbol = i.symbol
		WHERE i.trade_date = $1 AND i.rs_score IS NOT NULL AND s.sector <> ''
		GROUP BY s.sector, i.trade_date
		ON CONFLICT (sector, trade_date) DO UPDATE SET
			avg_rs_score = EXCLUDED.avg_rs_score,
			symbol_count = EXCLUDED.symbol_count,
			updated_at = NOW()
		RETURNING sector, trade_date, avg_rs_score, symbol_count
	`

	var trends []contracts.SectorTrend
	err := r.retry.Do(ctx, func() error {
		rows, err := r.pool.Query(ctx, query, date)
		if err != nil {
			return fmt.Errorf("failed to compute sector trends: %w", err)
		}
		defer rows.Close()

		trends = trends[:0]
		for rows.Next() {
			var t contracts.SectorTrend
			if err := rows.Scan(&t.Sector, &t.Date, &t.AvgRSScore, &t.Symbols); err != nil {
				return fmt.Errorf("failed to scan sector trend: %w", err)
			}
			trends = append(trends, t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating sector trends: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return trends, nil
}

// List returns stored trends for a sector within [from, to], ascending.
// An empty sector returns all sectors.
func (r *SectorTrendRepository) List(ctx context.Context, sector string, from, to time.Time) ([]contracts.SectorTrend, error) {
	query := `
		SELECT sector, trade_date, avg_rs_score, symbol_count
		FROM sector_trends
		WHERE ($1 = '' OR sector = $1) AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date, sector
	`

	rows, err := r.pool.Query(ctx, query, sector, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query sector trends: %w", err)
	}
	defer rows.Close()

	var trends []contracts.SectorTrend
	for rows.Next() {
		var t contracts.SectorTrend
		if err := rows.Scan(&t.Sector, &t.Date, &t.AvgRSScore, &t.Symbols); err != nil {
			return nil, fmt.Errorf("failed to scan sector trend: %w", err)
		}
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sector trends: %w", err)
	}

	return trends, nil
}
