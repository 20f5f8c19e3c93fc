package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/internal/rs"
)

var asOf = time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

func newTestRunner(bars *fakeBars, indicators *fakeIndicators, symbols *fakeSymbols, trends *fakeTrends) *Runner {
	cfg := testConfig()
	log := testLogger()
	peers := rs.NewPeerGroupAggregator(symbols, bars, nil, cfg.Pipeline.PeerLookbackDays, log)
	return NewRunner(cfg, bars, indicators, symbols, trends, peers, nil, log)
}

func TestRunScoresRanksAndTrends(t *testing.T) {
	bars := newFakeBars()
	bars.add("^GSPC", 400, asOf, func(int) float64 { return 4000 }, 0)
	bars.add("UP", 400, asOf, func(i int) float64 { return 100 + float64(i) }, 1000)
	bars.add("FLAT", 400, asOf, func(int) float64 { return 100 }, 1000)
	bars.add("DOWN", 400, asOf, func(i int) float64 { return 500 - float64(i) }, 1000)

	indicators := newFakeIndicators()
	symbols := newFakeSymbols()
	trends := &fakeTrends{}

	for _, sym := range []string{"UP", "FLAT", "DOWN"} {
		symbols.Upsert(context.Background(), &contracts.Classification{
			Symbol: sym, Sector: "Technology", Industry: "Software",
		})
	}

	runner := newTestRunner(bars, indicators, symbols, trends)

	report, err := runner.Run(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, asOf, report.Date, "zero time resolves to the latest bar date")

	up, _ := indicators.Get(context.Background(), "UP", asOf)
	flat, _ := indicators.Get(context.Background(), "FLAT", asOf)
	down, _ := indicators.Get(context.Background(), "DOWN", asOf)
	require.NotNil(t, up)
	require.NotNil(t, flat)
	require.NotNil(t, down)

	// Score ordering and the flat midpoint.
	require.NotNil(t, up.RSScore)
	require.NotNil(t, flat.RSScore)
	require.NotNil(t, down.RSScore)
	assert.InDelta(t, 50.0, *flat.RSScore, 1e-9)
	assert.Greater(t, *up.RSScore, *flat.RSScore)
	assert.Less(t, *down.RSScore, *flat.RSScore)

	// All four period legs covered with 400 observations.
	require.NotNil(t, up.RS1)
	require.NotNil(t, up.RS4)
	assert.Greater(t, *up.RS4, *up.RS1, "longer lookback carries more of the uptrend")

	// Ranking barrier: dense positions and endpoint percentiles.
	require.NotNil(t, up.RSRank)
	assert.Equal(t, 1, *up.RSRank)
	assert.Equal(t, 2, *flat.RSRank)
	assert.Equal(t, 3, *down.RSRank)

	// Peer scores: each symbol has two sector peers, so the sector and
	// industry comparators both exist.
	assert.NotNil(t, up.PeerScoreSector)
	assert.NotNil(t, up.PeerScoreIndustry)

	// Daily change and RS-line flag populated.
	require.NotNil(t, up.DailyPctChange)
	assert.Greater(t, *up.DailyPctChange, 0.0)
	require.NotNil(t, up.RSNewHigh)
	assert.True(t, *up.RSNewHigh)
	require.NotNil(t, down.RSNewHigh)
	assert.False(t, *down.RSNewHigh)

	// The benchmark itself is never scored or ranked.
	bench, _ := indicators.Get(context.Background(), "^GSPC", asOf)
	assert.Nil(t, bench)

	// Sector trends recomputed exactly once for the date.
	require.Len(t, trends.dates, 1)
	assert.Equal(t, asOf, trends.dates[0])
}

func TestRunSkipsSymbolsNotTradingOnDate(t *testing.T) {
	bars := newFakeBars()
	bars.add("^GSPC", 400, asOf, func(int) float64 { return 4000 }, 0)
	bars.add("LIVE", 400, asOf, func(i int) float64 { return 100 + float64(i) }, 1000)
	// Delisted ten days before the run date.
	bars.add("GONE", 400, asOf.AddDate(0, 0, -10), func(i int) float64 { return 100 + float64(i) }, 1000)

	indicators := newFakeIndicators()
	runner := newTestRunner(bars, indicators, newFakeSymbols(), &fakeTrends{})

	report, err := runner.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)

	gone, _ := indicators.Get(context.Background(), "GONE", asOf)
	assert.Nil(t, gone)
}

func TestRunPeerScoreAbsentWithoutClassification(t *testing.T) {
	bars := newFakeBars()
	bars.add("^GSPC", 400, asOf, func(int) float64 { return 4000 }, 0)
	bars.add("LONER", 400, asOf, func(i int) float64 { return 100 + float64(i) }, 1000)

	indicators := newFakeIndicators()
	runner := newTestRunner(bars, indicators, newFakeSymbols(), &fakeTrends{})

	report, err := runner.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	ind, _ := indicators.Get(context.Background(), "LONER", asOf)
	require.NotNil(t, ind)
	assert.NotNil(t, ind.RSScore, "market-basis score still computed")
	assert.Nil(t, ind.PeerScoreSector, "no classification, no peer score")
	assert.Nil(t, ind.PeerScoreIndustry)
}

func TestRunTwiceOnUnchangedBarsIsIdempotent(t *testing.T) {
	bars := newFakeBars()
	bars.add("^GSPC", 400, asOf, func(int) float64 { return 4000 }, 0)
	bars.add("UP", 400, asOf, func(i int) float64 { return 100 + float64(i) }, 1000)
	bars.add("FLAT", 400, asOf, func(int) float64 { return 100 }, 1000)
	bars.add("DOWN", 400, asOf, func(i int) float64 { return 500 - float64(i) }, 1000)

	indicators := newFakeIndicators()
	symbols := newFakeSymbols()
	trends := &fakeTrends{}
	for _, sym := range []string{"UP", "FLAT", "DOWN"} {
		symbols.Upsert(context.Background(), &contracts.Classification{
			Symbol: sym, Sector: "Technology", Industry: "Software",
		})
	}

	runner := newTestRunner(bars, indicators, symbols, trends)

	_, err := runner.Run(context.Background(), asOf)
	require.NoError(t, err)

	// Snapshot the stored rows; Get hands back the live row, so the
	// values must be copied before the second run overwrites them.
	first := make(map[string]contracts.Indicator)
	for _, sym := range []string{"UP", "FLAT", "DOWN"} {
		ind, _ := indicators.Get(context.Background(), sym, asOf)
		require.NotNil(t, ind)
		first[sym] = *ind
	}

	report, err := runner.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)

	for _, sym := range []string{"UP", "FLAT", "DOWN"} {
		ind, _ := indicators.Get(context.Background(), sym, asOf)
		require.NotNil(t, ind)
		prev := first[sym]

		require.NotNil(t, ind.RSScore)
		assert.Equal(t, *prev.RSScore, *ind.RSScore, "%s score", sym)
		assert.Equal(t, *prev.RSRaw, *ind.RSRaw, "%s raw", sym)
		assert.Equal(t, *prev.RSRank, *ind.RSRank, "%s rank", sym)
		assert.Equal(t, *prev.RSPercentile, *ind.RSPercentile, "%s percentile", sym)
		assert.Equal(t, *prev.PeerScoreSector, *ind.PeerScoreSector, "%s peer score", sym)
	}
}

func TestRunFailsWithoutBenchmark(t *testing.T) {
	bars := newFakeBars()
	bars.add("ONLY", 400, asOf, func(i int) float64 { return 100 + float64(i) }, 1000)

	runner := newTestRunner(bars, newFakeIndicators(), newFakeSymbols(), &fakeTrends{})

	_, err := runner.Run(context.Background(), asOf)
	require.Error(t, err)
	assert.ErrorIs(t, err, rs.ErrNoComparator)
}

func TestBackfillRunsEveryTradingDate(t *testing.T) {
	bars := newFakeBars()
	bars.add("^GSPC", 400, asOf, func(int) float64 { return 4000 }, 0)
	bars.add("UP", 400, asOf, func(i int) float64 { return 100 + float64(i) }, 1000)

	indicators := newFakeIndicators()
	trends := &fakeTrends{}
	runner := newTestRunner(bars, indicators, newFakeSymbols(), trends)

	from := asOf.AddDate(0, 0, -4)
	require.NoError(t, runner.Backfill(context.Background(), from, asOf))

	// Five calendar days of bars => five scoring runs.
	assert.Len(t, trends.dates, 5)

	for d := 0; d < 5; d++ {
		date := asOf.AddDate(0, 0, -d)
		ind, _ := indicators.Get(context.Background(), "UP", date)
		require.NotNil(t, ind, "scores for %s", date.Format("2006-01-02"))
		assert.NotNil(t, ind.RSScore)
		assert.NotNil(t, ind.RSRank)
	}
}

func TestBackfillNoBenchmarkBarsInRange(t *testing.T) {
	bars := newFakeBars()
	bars.add("UP", 400, asOf, func(i int) float64 { return 100 + float64(i) }, 1000)

	runner := newTestRunner(bars, newFakeIndicators(), newFakeSymbols(), &fakeTrends{})

	err := runner.Backfill(context.Background(), asOf.AddDate(0, 0, -4), asOf)
	assert.Error(t, err)
}
