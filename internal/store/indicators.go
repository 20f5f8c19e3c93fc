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

// IndicatorRepository implements contracts.IndicatorRepository.
//
// The scoring pipeline, the ranking barrier and the weekly stage run
// each own a disjoint set of columns on the same (symbol, trade_date)
// row, so their upserts never clobber one another.
type IndicatorRepository struct {
	pool  *pgxpool.Pool
	retry retry.Policy
}

// NewIndicatorRepository creates a new indicator repository.
func NewIndicatorRepository(pool *pgxpool.Pool) *IndicatorRepository {
	return &IndicatorRepository{pool: pool, retry: retry.Default()}
}

// UpsertScores writes the scoring fields of an indicator row, leaving
// the rank and stage columns untouched.
func (r *IndicatorRepository) UpsertScores(ctx context.Context, ind *contracts.Indicator) error {
	query := `
		INSERT INTO indicators (
			symbol, trade_date,
			rs1, rs2, rs3, rs4, rs_raw, rs_score, rs_new_high,
			peer_rs_score_sector, peer_rs_score_industry, daily_pct_change
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			rs1 = EXCLUDED.rs1,
			rs2 = EXCLUDED.rs2,
			rs3 = EXCLUDED.rs3,
			rs4 = EXCLUDED.rs4,
			rs_raw = EXCLUDED.rs_raw,
			rs_score = EXCLUDED.rs_score,
			rs_new_high = EXCLUDED.rs_new_high,
			peer_rs_score_sector = EXCLUDED.peer_rs_score_sector,
			peer_rs_score_industry = EXCLUDED.peer_rs_score_industry,
			daily_pct_change = EXCLUDED.daily_pct_change,
			updated_at = NOW()
	`

	return r.retry.Do(ctx, func() error {
		_, err := r.pool.Exec(ctx, query,
			ind.Symbol, ind.Date,
			ind.RS1, ind.RS2, ind.RS3, ind.RS4, ind.RSRaw, ind.RSScore, ind.RSNewHigh,
			ind.PeerScoreSector, ind.PeerScoreIndustry, ind.DailyPctChange,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert scores for %s: %w", ind.Symbol, err)
		}
		return nil
	})
}

// UpsertStage writes the weekly trend fields for the row at ts.AsOf.
func (r *IndicatorRepository) UpsertStage(ctx context.Context, ts *contracts.TrendStage) error {
	query := `
		INSERT INTO indicators (symbol, trade_date, stage, mansfield_rs, buy_signal)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			stage = EXCLUDED.stage,
			mansfield_rs = EXCLUDED.mansfield_rs,
			buy_signal = EXCLUDED.buy_signal,
			updated_at = NOW()
	`

	return r.retry.Do(ctx, func() error {
		_, err := r.pool.Exec(ctx, query,
			ts.Symbol, ts.AsOf, string(ts.Stage), ts.MansfieldRS, ts.BuySignal,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert stage for %s: %w", ts.Symbol, err)
		}
		return nil
	})
}

// UpdateRanks writes rank positions and percentiles for a date in one
// transaction, so a universe is never half-ranked.
func (r *IndicatorRepository) UpdateRanks(ctx context.Context, entries []contracts.RankEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO indicators (symbol, trade_date, rs_rank, rs_percentile)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			rs_rank = EXCLUDED.rs_rank,
			rs_percentile = EXCLUDED.rs_percentile,
			updated_at = NOW()
	`

	return r.retry.Do(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(query, e.Symbol, e.Date, e.Position, e.Percentile)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to update %d ranks: %w", len(entries), err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// LatestScoreDate returns the most recent date carrying any rs_score,
// or the zero time when no scores exist yet.
func (r *IndicatorRepository) LatestScoreDate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(trade_date) FROM indicators WHERE rs_score IS NOT NULL`,
	).Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("failed to query latest score date: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

// ListScores returns (symbol, rs_score) pairs for a date. Symbols with
// no score on that date are omitted, never zero-filled.
func (r *IndicatorRepository) ListScores(ctx context.Context, date time.Time) (map[string]float64, error) {
	query := `
		SELECT symbol, rs_score
		FROM indicators
		WHERE trade_date = $1 AND rs_score IS NOT NULL
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var symbol string
		var score float64
		if err := rows.Scan(&symbol, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores[symbol] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return scores, nil
}

const indicatorColumns = `
	symbol, trade_date,
	rs1, rs2, rs3, rs4, rs_raw, rs_score, rs_rank, rs_percentile, rs_new_high,
	peer_rs_score_sector, peer_rs_score_industry, daily_pct_change,
	stage, mansfield_rs, buy_signal
`

// Get returns the indicator row for (symbol, date), or nil when absent.
func (r *IndicatorRepository) Get(ctx context.Context, symbol string, date time.Time) (*contracts.Indicator, error) {
	query := `SELECT ` + indicatorColumns + `
		FROM indicators
		WHERE symbol = $1 AND trade_date = $2
	`

	ind, err := r.scanIndicator(r.pool.QueryRow(ctx, query, symbol, date))
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator for %s: %w", symbol, err)
	}
	return ind, nil
}

// GetLatest returns the most recent indicator row for a symbol, or nil
// when the symbol has none.
func (r *IndicatorRepository) GetLatest(ctx context.Context, symbol string) (*contracts.Indicator, error) {
	query := `SELECT ` + indicatorColumns + `
		FROM indicators
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`

	ind, err := r.scanIndicator(r.pool.QueryRow(ctx, query, symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest indicator for %s: %w", symbol, err)
	}
	return ind, nil
}

func (r *IndicatorRepository) scanIndicator(row pgx.Row) (*contracts.Indicator, error) {
	ind := &contracts.Indicator{}
	err := row.Scan(
		&ind.Symbol, &ind.Date,
		&ind.RS1, &ind.RS2, &ind.RS3, &ind.RS4, &ind.RSRaw, &ind.RSScore,
		&ind.RSRank, &ind.RSPercentile, &ind.RSNewHigh,
		&ind.PeerScoreSector, &ind.PeerScoreIndustry, &ind.DailyPctChange,
		&ind.Stage, &ind.MansfieldRS, &ind.BuySignal,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ind, nil
}
