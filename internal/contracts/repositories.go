package contracts

import (
	"context"
	"time"
)

// Repository interfaces are defined here; internal/store implements them
// against PostgreSQL and the pipeline depends only on the contracts.

// BarRepository manages daily OHLCV bars.
type BarRepository interface {
	// Upsert writes one bar, replacing any bar for the same (symbol, date).
	Upsert(ctx context.Context, bar *PriceBar) error
	UpsertBatch(ctx context.Context, bars []*PriceBar) error

	// GetSeries returns bars for a symbol within [from, to], date ascending.
	GetSeries(ctx context.Context, symbol string, from, to time.Time) ([]*PriceBar, error)

	// GetCloseSeries returns date-ascending closes for a symbol within [from, to].
	GetCloseSeries(ctx context.Context, symbol string, from, to time.Time) ([]ClosePoint, error)

	// ListSymbols returns the distinct symbols present in the store.
	ListSymbols(ctx context.Context) ([]string, error)

	// LatestDate returns the most recent bar date across all symbols.
	LatestDate(ctx context.Context) (time.Time, error)

	// MeanCloseSeries returns the date-aligned cross-sectional mean close
	// of the given symbols within [from, to], ascending. Dates where only
	// a subset of symbols traded average over that subset.
	MeanCloseSeries(ctx context.Context, symbols []string, from, to time.Time) ([]ClosePoint, error)
}

// IndicatorRepository manages derived per-(symbol, date) fields.
type IndicatorRepository interface {
	// UpsertScores writes the scoring fields of an indicator row,
	// leaving rank and stage fields untouched.
	UpsertScores(ctx context.Context, ind *Indicator) error

	// UpsertStage writes the weekly trend fields for the row at ts.AsOf.
	UpsertStage(ctx context.Context, ts *TrendStage) error

	// UpdateRanks writes rank positions and percentiles for a date.
	UpdateRanks(ctx context.Context, entries []RankEntry) error

	// LatestScoreDate returns the most recent date carrying any rs_score.
	LatestScoreDate(ctx context.Context) (time.Time, error)

	// ListScores returns (symbol, rs_score) pairs for a date, symbols
	// without a score omitted.
	ListScores(ctx context.Context, date time.Time) (map[string]float64, error)

	// Get returns the indicator row for (symbol, date), or nil when absent.
	Get(ctx context.Context, symbol string, date time.Time) (*Indicator, error)

	// GetLatest returns the most recent indicator row for a symbol.
	GetLatest(ctx context.Context, symbol string) (*Indicator, error)
}

// SymbolRepository manages reference-data classifications.
type SymbolRepository interface {
	Upsert(ctx context.Context, c *Classification) error
	UpsertBatch(ctx context.Context, cs []*Classification) error

	Get(ctx context.Context, symbol string) (*Classification, error)

	// ListPeers returns symbols sharing the group value, excluding the
	// target symbol. group is "sector" or "industry".
	ListPeers(ctx context.Context, group, value, exclude string) ([]string, error)
}

// SectorTrendRepository manages per-date sector RS averages.
type SectorTrendRepository interface {
	// ComputeAndStore aggregates rs_score by sector for the date and
	// upserts the result rows, returning them.
	ComputeAndStore(ctx context.Context, date time.Time) ([]SectorTrend, error)

	List(ctx context.Context, sector string, from, to time.Time) ([]SectorTrend, error)
}
