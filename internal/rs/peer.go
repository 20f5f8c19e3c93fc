package rs

import (
	"context"
	"fmt"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/logger"
	"github.com/pinger/rstrength/pkg/redis"
)

// MinPeers is the smallest peer set considered statistically meaningful
// for a cross-sectional average.
const MinPeers = 2

// PeerGroupAggregator builds comparator series from sector/industry
// peers: the date-aligned cross-sectional mean close of every other
// symbol sharing the group value. Dates where only part of the group
// traded average over the symbols present on that date.
type PeerGroupAggregator struct {
	symbols      contracts.SymbolRepository
	bars         contracts.BarRepository
	cache        *redis.Cache
	lookbackDays int
	logger       *logger.Logger
}

// NewPeerGroupAggregator creates a peer-group aggregator. cache may be
// nil when Redis is disabled.
func NewPeerGroupAggregator(
	symbols contracts.SymbolRepository,
	bars contracts.BarRepository,
	cache *redis.Cache,
	lookbackDays int,
	log *logger.Logger,
) *PeerGroupAggregator {
	return &PeerGroupAggregator{
		symbols:      symbols,
		bars:         bars,
		cache:        cache,
		lookbackDays: lookbackDays,
		logger:       log,
	}
}

// MeanSeries returns the peer-group mean close series for symbol's
// group (e.g. "sector"/"Technology") within lookbackDays of asOf.
//
// ErrNoComparator is returned when the group value is empty, fewer than
// MinPeers peers exist, or no peer traded inside the window. A missing
// comparator is a skip signal for the caller, never a zero series.
func (a *PeerGroupAggregator) MeanSeries(ctx context.Context, symbol, group, value string, asOf time.Time) ([]contracts.ClosePoint, error) {
	if value == "" {
		return nil, fmt.Errorf("%s for %s: %w", group, symbol, ErrNoComparator)
	}

	peers, err := a.symbols.ListPeers(ctx, group, value, symbol)
	if err != nil {
		return nil, fmt.Errorf("list %s peers for %s: %w", group, symbol, err)
	}
	if len(peers) < MinPeers {
		return nil, fmt.Errorf("%s %q has %d peers of %s: %w", group, value, len(peers), symbol, ErrNoComparator)
	}

	cacheKey := redis.PeerSeriesKey(group, value, symbol, a.lookbackDays, asOf)
	if a.cache != nil {
		var cached []contracts.ClosePoint
		if found, _ := a.cache.Get(ctx, cacheKey, &cached); found && len(cached) > 0 {
			return cached, nil
		}
	}

	from := asOf.AddDate(0, 0, -a.lookbackDays)
	series, err := a.bars.MeanCloseSeries(ctx, peers, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("mean close series for %s %q: %w", group, value, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%s %q has no overlapping prices: %w", group, value, ErrNoComparator)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey, series, redis.TTLMedium); err != nil {
			a.logger.WithError(err).Warn("Failed to cache peer series")
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"group":  group,
		"value":  value,
		"peers":  len(peers),
		"points": len(series),
	}).Debug("Built peer comparator series")

	return series, nil
}
