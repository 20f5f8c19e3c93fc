package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinger/rstrength/internal/contracts"
)

// integrationPool connects to the database named by DATABASE_URL. The
// tests below need the schema from schema.sql applied; they write under
// the ZZTEST prefix and clean up after themselves.
func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		pool.Exec(ctx, "DELETE FROM indicators WHERE symbol LIKE 'ZZTEST%'")
		pool.Exec(ctx, "DELETE FROM bars WHERE symbol LIKE 'ZZTEST%'")
		pool.Exec(ctx, "DELETE FROM symbols WHERE symbol LIKE 'ZZTEST%'")
		pool.Close()
	})

	return pool
}

func TestBarUpsertIsIdempotent(t *testing.T) {
	pool := integrationPool(t)
	repo := NewBarRepository(pool)
	ctx := context.Background()

	date := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	bar := &contracts.PriceBar{
		Symbol: "ZZTEST.A", Date: date,
		Open: 10, High: 12, Low: 9, Close: 11, Volume: 1000,
	}

	require.NoError(t, repo.Upsert(ctx, bar))

	// Second write with a corrected close must replace, not duplicate.
	bar.Close = 11.5
	require.NoError(t, repo.Upsert(ctx, bar))

	series, err := repo.GetSeries(ctx, "ZZTEST.A", date, date)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 11.5, series[0].Close)
}

func TestIndicatorPhasesWriteDisjointColumns(t *testing.T) {
	pool := integrationPool(t)
	repo := NewIndicatorRepository(pool)
	ctx := context.Background()

	date := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	score := 87.5

	require.NoError(t, repo.UpsertScores(ctx, &contracts.Indicator{
		Symbol:  "ZZTEST.B",
		Date:    date,
		RSScore: &score,
	}))

	require.NoError(t, repo.UpsertStage(ctx, &contracts.TrendStage{
		Symbol:      "ZZTEST.B",
		AsOf:        date,
		Stage:       contracts.StageAdvancing,
		MansfieldRS: 2.5,
		BuySignal:   true,
	}))

	require.NoError(t, repo.UpdateRanks(ctx, []contracts.RankEntry{
		{Symbol: "ZZTEST.B", Date: date, Position: 1, Percentile: 99, Score: score},
	}))

	ind, err := repo.Get(ctx, "ZZTEST.B", date)
	require.NoError(t, err)
	require.NotNil(t, ind)

	require.NotNil(t, ind.RSScore)
	assert.Equal(t, score, *ind.RSScore, "stage and rank writes must not clobber the score")
	require.NotNil(t, ind.Stage)
	assert.Equal(t, "Advancing", *ind.Stage)
	require.NotNil(t, ind.RSPercentile)
	assert.Equal(t, 99, *ind.RSPercentile)
}

func TestListPeersExcludesTarget(t *testing.T) {
	pool := integrationPool(t)
	repo := NewSymbolRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []*contracts.Classification{
		{Symbol: "ZZTEST.C", Sector: "ZZTestSector", Industry: "ZZTestIndustry"},
		{Symbol: "ZZTEST.D", Sector: "ZZTestSector", Industry: "ZZTestIndustry"},
		{Symbol: "ZZTEST.E", Sector: "ZZTestSector", Industry: "Other"},
	}))

	peers, err := repo.ListPeers(ctx, "sector", "ZZTestSector", "ZZTEST.C")
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZTEST.D", "ZZTEST.E"}, peers)

	peers, err = repo.ListPeers(ctx, "industry", "ZZTestIndustry", "ZZTEST.C")
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZTEST.D"}, peers)

	_, err = repo.ListPeers(ctx, "zodiac", "ZZTestSector", "ZZTEST.C")
	assert.Error(t, err)
}
