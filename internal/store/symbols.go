package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/retry"
)

// SymbolRepository implements contracts.SymbolRepository.
type SymbolRepository struct {
	pool  *pgxpool.Pool
	retry retry.Policy
}

// NewSymbolRepository creates a new symbol repository.
func NewSymbolRepository(pool *pgxpool.Pool) *SymbolRepository {
	return &SymbolRepository{pool: pool, retry: retry.Default()}
}

const upsertSymbolQuery = `
	INSERT INTO symbols (symbol, name, sector, industry)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (symbol) DO UPDATE SET
		name = EXCLUDED.name,
		sector = EXCLUDED.sector,
		industry = EXCLUDED.industry,
		updated_at = NOW()
`

// Upsert writes one classification.
func (r *SymbolRepository) Upsert(ctx context.Context, c *contracts.Classification) error {
	return r.retry.Do(ctx, func() error {
		_, err := r.pool.Exec(ctx, upsertSymbolQuery, c.Symbol, c.Name, c.Sector, c.Industry)
		if err != nil {
			return fmt.Errorf("failed to upsert symbol %s: %w", c.Symbol, err)
		}
		return nil
	})
}

// UpsertBatch writes a batch of classifications in one transaction.
func (r *SymbolRepository) UpsertBatch(ctx context.Context, cs []*contracts.Classification) error {
	if len(cs) == 0 {
		return nil
	}

	return r.retry.Do(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, c := range cs {
			batch.Queue(upsertSymbolQuery, c.Symbol, c.Name, c.Sector, c.Industry)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert %d symbols: %w", len(cs), err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// Get returns the classification for a symbol, or nil when unknown.
func (r *SymbolRepository) Get(ctx context.Context, symbol string) (*contracts.Classification, error) {
	query := `SELECT symbol, name, sector, industry FROM symbols WHERE symbol = $1`

	c := &contracts.Classification{}
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&c.Symbol, &c.Name, &c.Sector, &c.Industry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get symbol %s: %w", symbol, err)
	}
	return c, nil
}

// ListPeers returns symbols sharing the group value, excluding the
// target symbol. group is "sector" or "industry".
func (r *SymbolRepository) ListPeers(ctx context.Context, group, value, exclude string) ([]string, error) {
	var query string
	switch group {
	case "sector":
		query = `SELECT symbol FROM symbols WHERE sector = $1 AND symbol <> $2 ORDER BY symbol`
	case "industry":
		query = `SELECT symbol FROM symbols WHERE industry = $1 AND symbol <> $2 ORDER BY symbol`
	default:
		return nil, fmt.Errorf("unknown peer group %q", group)
	}

	rows, err := r.pool.Query(ctx, query, value, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s peers: %w", group, err)
	}
	defer rows.Close()

	var peers []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan peer: %w", err)
		}
		peers = append(peers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating peers: %w", err)
	}

	return peers, nil
}
