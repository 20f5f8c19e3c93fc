package rs

import (
	"math"
	"sort"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/logger"
)

// RankingEngine converts a cross-section of scores into a strict total
// order with 1-99 percentile buckets.
type RankingEngine struct {
	logger *logger.Logger
}

// NewRankingEngine creates a ranking engine.
func NewRankingEngine(log *logger.Logger) *RankingEngine {
	return &RankingEngine{logger: log}
}

// Rank orders the (symbol, score) cross-section for a date. Higher
// scores rank first; ties are broken by ascending symbol so repeated
// runs over the same snapshot always produce identical positions.
// Positions partition the universe 1..N with no gaps or duplicates.
//
// Percentile is round(((N - position) / N) * 100) clamped to [1, 99]:
// position 1 of 100 maps to 99, position 100 maps to 1. Distinct
// symbols may share a percentile bucket, never a position.
func (e *RankingEngine) Rank(date time.Time, scores map[string]float64) []contracts.RankEntry {
	if len(scores) == 0 {
		return nil
	}

	entries := make([]contracts.RankEntry, 0, len(scores))
	for symbol, score := range scores {
		entries = append(entries, contracts.RankEntry{
			Symbol: symbol,
			Date:   date,
			Score:  score,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Symbol < entries[j].Symbol
	})

	total := len(entries)
	for i := range entries {
		position := i + 1
		entries[i].Position = position
		entries[i].Percentile = percentile(position, total)
	}

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"date":  date.Format("2006-01-02"),
			"total": total,
			"top":   entries[0].Symbol,
		}).Info("Ranking completed")
	}

	return entries
}

// percentile maps a 1-based rank position to the 1-99 scale.
func percentile(position, total int) int {
	pct := (float64(total-position) / float64(total)) * 100
	bucket := int(math.Round(pct))

	if bucket < 1 {
		return 1
	}
	if bucket > 99 {
		return 99
	}
	return bucket
}
