package stage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinger/rstrength/internal/contracts"
)

func week(n int) time.Time {
	// Consecutive Fridays starting 2022-01-07.
	return time.Date(2022, 1, 7, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n*7)
}

// weeklySeries builds n weekly bars with closes from the price function
// and a constant volume.
func weeklySeries(n int, volume int64, price func(i int) float64) []WeeklyBar {
	bars := make([]WeeklyBar, n)
	for i := range bars {
		p := price(i)
		bars[i] = WeeklyBar{Date: week(i), Open: p, High: p, Low: p, Close: p, Volume: volume}
	}
	return bars
}

func flatBenchmark(n int) []WeeklyBar {
	return weeklySeries(n, 1_000_000, func(int) float64 { return 4000 })
}

func TestClassifyInsufficientHistory(t *testing.T) {
	c := NewClassifier(nil)

	symbol := weeklySeries(51, 1000, func(i int) float64 { return 100 + float64(i) })
	result := c.Classify("SHORT", symbol, flatBenchmark(51))

	assert.Equal(t, contracts.StageTransitional, result.Stage)
	assert.False(t, result.BuySignal)
	assert.Zero(t, result.MansfieldRS)
	assert.Equal(t, week(50), result.AsOf)
}

func TestClassifyAdvancing(t *testing.T) {
	c := NewClassifier(nil)

	// Steady uptrend against a flat benchmark: price above the 30-week
	// MA and the RS line above its own 52-week mean.
	symbol := weeklySeries(80, 1000, func(i int) float64 { return 100 + 2*float64(i) })
	result := c.Classify("UP", symbol, flatBenchmark(80))

	assert.Equal(t, contracts.StageAdvancing, result.Stage)
	assert.Greater(t, result.MansfieldRS, 0.0)
	assert.Equal(t, week(79), result.AsOf)
}

func TestClassifyDeclining(t *testing.T) {
	c := NewClassifier(nil)

	symbol := weeklySeries(80, 1000, func(i int) float64 { return 300 - 2*float64(i) })
	result := c.Classify("DOWN", symbol, flatBenchmark(80))

	assert.Equal(t, contracts.StageDeclining, result.Stage)
	assert.Less(t, result.MansfieldRS, 0.0)
	assert.False(t, result.BuySignal)
}

func TestClassifyFlatIsTransitional(t *testing.T) {
	c := NewClassifier(nil)

	// A perfectly flat series sits exactly on both MAs with RS exactly
	// zero; every rule uses strict inequalities.
	symbol := weeklySeries(80, 1000, func(int) float64 { return 100 })
	result := c.Classify("FLAT", symbol, flatBenchmark(80))

	assert.Equal(t, contracts.StageTransitional, result.Stage)
	assert.False(t, result.BuySignal)
}

func TestClassifyNoOverlapIsTransitional(t *testing.T) {
	c := NewClassifier(nil)

	symbol := weeklySeries(60, 1000, func(i int) float64 { return 100 + float64(i) })
	benchmark := make([]WeeklyBar, 60)
	for i := range benchmark {
		benchmark[i] = WeeklyBar{Date: week(i + 200), Close: 4000}
	}

	result := c.Classify("GAP", symbol, benchmark)
	assert.Equal(t, contracts.StageTransitional, result.Stage)
	assert.False(t, result.BuySignal)
}

func TestBuySignalOnVolumeConfirmedSetup(t *testing.T) {
	c := NewClassifier(nil)

	// Uptrend with a volume expansion in the final five weeks.
	symbol := weeklySeries(80, 1000, func(i int) float64 { return 100 + 2*float64(i) })
	for i := 75; i < 80; i++ {
		symbol[i].Volume = 5000
	}

	result := c.Classify("BREAKOUT", symbol, flatBenchmark(80))
	assert.Equal(t, contracts.StageAdvancing, result.Stage)
	assert.True(t, result.BuySignal)
}

func TestNoBuySignalWithoutVolumeConfirmation(t *testing.T) {
	c := NewClassifier(nil)

	// Same uptrend, flat volume: the stage has been Advancing for a long
	// time (no crossover) and the setup lacks volume confirmation.
	symbol := weeklySeries(80, 1000, func(i int) float64 { return 100 + 2*float64(i) })

	result := c.Classify("QUIET", symbol, flatBenchmark(80))
	assert.Equal(t, contracts.StageAdvancing, result.Stage)
	assert.False(t, result.BuySignal)
}

func TestBuySignalOnBasingToAdvancingCrossover(t *testing.T) {
	c := NewClassifier(nil)

	// Rising closes keep price > fast MA > slow MA throughout. With the
	// RS oscillator just below zero the rules land on Basing; the week it
	// turns positive the stage flips to Advancing.
	n := 60
	closes := make([]float64, n)
	volumes := make([]int64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
		volumes[i] = 1000
	}
	mansfield := make([]float64, n)
	covered := make([]bool, n)
	for i := range mansfield {
		mansfield[i] = -1
		covered[i] = true
	}
	mansfield[n-1] = 1

	assert.Equal(t, contracts.StageBasing, c.stageAt(closes, mansfield, covered, n-2))
	assert.Equal(t, contracts.StageAdvancing, c.stageAt(closes, mansfield, covered, n-1))
	assert.True(t, c.buySignal(closes, volumes, mansfield, covered, n-1),
		"crossover fires without volume confirmation")
}

func TestNoBuySignalAtMansfieldWindowBoundary(t *testing.T) {
	c := NewClassifier(nil)

	// Exactly 52 aligned weeks: only the final week has a full Mansfield
	// window. The prior week's oscillator is undefined, so it must read
	// as Transitional, not as a zero-valued Basing week feeding a
	// spurious crossover. Volume is flat, so no setup either.
	symbol := weeklySeries(52, 1000, func(i int) float64 { return 100 + 2*float64(i) })

	result := c.Classify("FRESH", symbol, flatBenchmark(52))
	assert.Equal(t, contracts.StageAdvancing, result.Stage)
	assert.Greater(t, result.MansfieldRS, 0.0)
	assert.False(t, result.BuySignal)
}

func TestStagePreWindowWeeksAreTransitional(t *testing.T) {
	c := NewClassifier(nil)

	n := 60
	closes := make([]float64, n)
	bench := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 2*float64(i)
		bench[i] = 4000
	}

	mansfield, covered := mansfieldRS(closes, bench)
	for i := 0; i < mansfieldPeriod-1; i++ {
		assert.False(t, covered[i])
		assert.Equal(t, contracts.StageTransitional, c.stageAt(closes, mansfield, covered, i))
	}
	assert.True(t, covered[mansfieldPeriod-1])
}

func TestMansfieldRSAgainstRisingBenchmark(t *testing.T) {
	// Symbol matches the benchmark exactly: the ratio is constant, so
	// the oscillator sits on its zero line.
	n := 60
	closes := make([]float64, n)
	bench := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
		bench[i] = (100 + float64(i)) * 40
	}

	mrs, covered := mansfieldRS(closes, bench)
	require.Len(t, mrs, n)
	assert.True(t, covered[n-1])
	assert.InDelta(t, 0.0, mrs[n-1], 1e-9)
}
