package rs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinger/rstrength/internal/contracts"
)

func TestRankDistinctScores(t *testing.T) {
	engine := NewRankingEngine(nil)
	date := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	scores := make(map[string]float64, 100)
	for i := 0; i < 100; i++ {
		scores[fmt.Sprintf("SYM%03d", i)] = float64(i)
	}

	entries := engine.Rank(date, scores)
	require.Len(t, entries, 100)

	seen := make(map[int]bool, 100)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position, "positions must be dense 1..N")
		assert.False(t, seen[e.Position], "duplicate position %d", e.Position)
		seen[e.Position] = true
		assert.Equal(t, date, e.Date)
	}

	// Highest score ranks first.
	assert.Equal(t, "SYM099", entries[0].Symbol)
	assert.Equal(t, "SYM000", entries[99].Symbol)

	// Percentile endpoints: best of 100 -> 99, worst -> 1.
	assert.Equal(t, 99, entries[0].Percentile)
	assert.Equal(t, 1, entries[99].Percentile)

	// Descending scores throughout.
	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i-1].Score, entries[i].Score)
	}
}

func TestRankTieBreakDeterministic(t *testing.T) {
	engine := NewRankingEngine(nil)
	date := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	scores := map[string]float64{
		"ZETA":  75,
		"ALPHA": 75,
		"MID":   75,
		"TOP":   90,
		"LOW":   10,
	}

	var first []contracts.RankEntry
	for run := 0; run < 10; run++ {
		entries := engine.Rank(date, scores)
		require.Len(t, entries, 5)
		if first == nil {
			first = entries
			continue
		}
		assert.Equal(t, first, entries, "run %d diverged", run)
	}

	// Ties ordered by ascending symbol.
	assert.Equal(t, "TOP", first[0].Symbol)
	assert.Equal(t, "ALPHA", first[1].Symbol)
	assert.Equal(t, "MID", first[2].Symbol)
	assert.Equal(t, "ZETA", first[3].Symbol)
	assert.Equal(t, "LOW", first[4].Symbol)

	// Tied scores still occupy distinct positions.
	assert.Equal(t, 2, first[1].Position)
	assert.Equal(t, 3, first[2].Position)
	assert.Equal(t, 4, first[3].Position)
}

func TestRankEmptyUniverse(t *testing.T) {
	engine := NewRankingEngine(nil)
	assert.Nil(t, engine.Rank(time.Now(), nil))
	assert.Nil(t, engine.Rank(time.Now(), map[string]float64{}))
}

func TestPercentileClamps(t *testing.T) {
	// A universe of 1: (1-1)/1*100 = 0 rounds below the floor.
	assert.Equal(t, 1, percentile(1, 1))

	// Two symbols: 50 and 1.
	assert.Equal(t, 50, percentile(1, 2))
	assert.Equal(t, 1, percentile(2, 2))

	// Large universe keeps the ceiling at 99.
	assert.Equal(t, 99, percentile(1, 10000))
	assert.Equal(t, 1, percentile(10000, 10000))
}
