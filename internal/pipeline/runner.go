package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/internal/rs"
	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/logger"
	"github.com/pinger/rstrength/pkg/redis"
)

// rsLineLookback is the rolling window, in aligned observations, for the
// RS-line new-high flag.
const rsLineLookback = 40

// Runner drives the scoring pipeline for one date: per-symbol RS scores
// against the benchmark and both peer groups fan out across a worker
// pool, then a ranking barrier orders the whole cross-section, then
// sector trends are aggregated. Symbol computations share nothing but
// the store, so the fan-out needs no locking.
type Runner struct {
	bars       contracts.BarRepository
	indicators contracts.IndicatorRepository
	symbols    contracts.SymbolRepository
	trends     contracts.SectorTrendRepository

	scoreEngine   *rs.ScoreEngine
	rankingEngine *rs.RankingEngine
	peers         *rs.PeerGroupAggregator
	cache         *redis.Cache

	benchmark   string
	workers     int
	historyDays int
	logger      *logger.Logger
}

// NewRunner creates a scoring pipeline runner. cache may be nil when
// Redis is disabled.
func NewRunner(
	cfg *config.Config,
	bars contracts.BarRepository,
	indicators contracts.IndicatorRepository,
	symbols contracts.SymbolRepository,
	trends contracts.SectorTrendRepository,
	peers *rs.PeerGroupAggregator,
	cache *redis.Cache,
	log *logger.Logger,
) *Runner {
	return &Runner{
		bars:          bars,
		indicators:    indicators,
		symbols:       symbols,
		trends:        trends,
		scoreEngine:   rs.NewScoreEngine(log),
		rankingEngine: rs.NewRankingEngine(log),
		peers:         peers,
		cache:         cache,
		benchmark:     cfg.Pipeline.Benchmark,
		workers:       cfg.Pipeline.Workers,
		historyDays:   cfg.MarketData.HistoryDays,
		logger:        log.WithField("module", "pipeline"),
	}
}

// symbolScore is the per-symbol outcome crossing the ranking barrier.
type symbolScore struct {
	symbol  string
	score   float64
	skipped bool
	err     error
}

// Run scores every symbol in the store for asOf (zero time means the
// latest bar date), ranks the cross-section and refreshes sector trends.
func (r *Runner) Run(ctx context.Context, asOf time.Time) (*contracts.RunReport, error) {
	if asOf.IsZero() {
		latest, err := r.bars.LatestDate(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve latest trade date: %w", err)
		}
		if latest.IsZero() {
			return nil, fmt.Errorf("no bars in store")
		}
		asOf = latest
	}

	benchSeries, err := r.benchmarkSeries(ctx, asOf)
	if err != nil {
		return nil, err
	}

	universe, err := r.bars.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"date":    asOf.Format("2006-01-02"),
		"symbols": len(universe),
		"workers": r.workers,
	}).Info("Starting scoring run")

	symbolCh := make(chan string, len(universe))
	resultCh := make(chan symbolScore, len(universe))

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolCh {
				resultCh <- r.scoreSymbol(ctx, symbol, asOf, benchSeries)
			}
		}()
	}

	for _, symbol := range universe {
		if symbol == r.benchmark {
			continue
		}
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	report := &contracts.RunReport{Date: asOf}
	scores := make(map[string]float64, len(universe))
	for result := range resultCh {
		switch {
		case result.err != nil:
			r.logger.WithError(result.err).WithField("symbol", result.symbol).Error("Symbol failed")
			report.Failed++
		case result.skipped:
			report.Skipped++
		default:
			scores[result.symbol] = result.score
			report.Processed++
		}
	}

	// Ranking barrier: every score for the date must exist before the
	// cross-section is ordered.
	if len(scores) > 0 {
		entries := r.rankingEngine.Rank(asOf, scores)
		if err := r.indicators.UpdateRanks(ctx, entries); err != nil {
			return report, fmt.Errorf("update ranks: %w", err)
		}

		if _, err := r.trends.ComputeAndStore(ctx, asOf); err != nil {
			return report, fmt.Errorf("compute sector trends: %w", err)
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"date":      asOf.Format("2006-01-02"),
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	}).Info("Scoring run completed")

	return report, nil
}

// Backfill reruns the scoring pipeline for every benchmark trading date
// within [from, to], oldest first, so historical score and rank columns
// can be rebuilt after a formula or data fix.
func (r *Runner) Backfill(ctx context.Context, from, to time.Time) error {
	dates, err := r.bars.GetCloseSeries(ctx, r.benchmark, from, to)
	if err != nil {
		return fmt.Errorf("list benchmark trading dates: %w", err)
	}
	if len(dates) == 0 {
		return fmt.Errorf("benchmark %s has no bars in range", r.benchmark)
	}

	r.logger.WithFields(map[string]interface{}{
		"from":  from.Format("2006-01-02"),
		"to":    to.Format("2006-01-02"),
		"dates": len(dates),
	}).Info("Starting historical backfill")

	for _, point := range dates {
		if _, err := r.Run(ctx, point.Date); err != nil {
			return fmt.Errorf("backfill %s: %w", point.Date.Format("2006-01-02"), err)
		}
	}

	return nil
}

// scoreSymbol computes and persists every scoring field for one symbol.
// Missing peer comparators degrade to absent peer scores; a symbol with
// no bars at all is skipped.
func (r *Runner) scoreSymbol(ctx context.Context, symbol string, asOf time.Time, benchSeries []contracts.ClosePoint) symbolScore {
	from := asOf.AddDate(0, 0, -r.historyDays)

	series, err := r.bars.GetCloseSeries(ctx, symbol, from, asOf)
	if err != nil {
		return symbolScore{symbol: symbol, err: fmt.Errorf("load close series: %w", err)}
	}
	if len(series) == 0 || !series[len(series)-1].Date.Equal(asOf) {
		// Nothing to score: the symbol did not trade on this date.
		return symbolScore{symbol: symbol, skipped: true}
	}

	score := r.scoreEngine.Score(symbol, contracts.BasisMarket, series, benchSeries)

	ind := &contracts.Indicator{Symbol: symbol, Date: asOf}
	if len(score.Periods) == 4 {
		ind.RS1 = periodValue(score.Periods[0])
		ind.RS2 = periodValue(score.Periods[1])
		ind.RS3 = periodValue(score.Periods[2])
		ind.RS4 = periodValue(score.Periods[3])
	}
	ind.RSRaw = &score.Raw
	ind.RSScore = &score.Value

	if newHigh, ok := rs.NewRSLineHigh(series, benchSeries, rsLineLookback); ok {
		ind.RSNewHigh = &newHigh
	}
	closes := make([]float64, len(series))
	for i, p := range series {
		closes[i] = p.Close
	}
	if change, ok := rs.DailyChangePct(closes); ok {
		ind.DailyPctChange = &change
	}

	r.addPeerScores(ctx, symbol, asOf, series, ind)

	if err := r.indicators.UpsertScores(ctx, ind); err != nil {
		return symbolScore{symbol: symbol, err: fmt.Errorf("store scores: %w", err)}
	}

	return symbolScore{symbol: symbol, score: score.Value}
}

// addPeerScores attaches sector and industry peer scores when the
// symbol's classification and peer groups allow it. An unavailable
// comparator leaves the field absent; it never becomes a zero series.
func (r *Runner) addPeerScores(ctx context.Context, symbol string, asOf time.Time, series []contracts.ClosePoint, ind *contracts.Indicator) {
	class, err := r.symbols.Get(ctx, symbol)
	if err != nil {
		r.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to load classification")
		return
	}
	if class == nil {
		return
	}

	groups := []struct {
		name  string
		value string
		basis contracts.ScoreBasis
		field **float64
	}{
		{"sector", class.Sector, contracts.BasisSector, &ind.PeerScoreSector},
		{"industry", class.Industry, contracts.BasisIndustry, &ind.PeerScoreIndustry},
	}

	for _, g := range groups {
		peerSeries, err := r.peers.MeanSeries(ctx, symbol, g.name, g.value, asOf)
		if errors.Is(err, rs.ErrNoComparator) {
			r.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"group":  g.name,
			}).Debug("Peer comparator unavailable")
			continue
		}
		if err != nil {
			r.logger.WithError(err).WithField("symbol", symbol).Warn("Peer series failed")
			continue
		}

		score := r.scoreEngine.Score(symbol, g.basis, series, peerSeries)
		*g.field = &score.Value
	}
}

// benchmarkSeries loads the benchmark close series ending at asOf,
// consulting the cache first since every symbol in the run shares it.
func (r *Runner) benchmarkSeries(ctx context.Context, asOf time.Time) ([]contracts.ClosePoint, error) {
	key := redis.BenchmarkSeriesKey(r.benchmark) + ":" + asOf.Format("2006-01-02")

	if r.cache != nil {
		var cached []contracts.ClosePoint
		if found, _ := r.cache.Get(ctx, key, &cached); found && len(cached) > 0 {
			return cached, nil
		}
	}

	from := asOf.AddDate(0, 0, -r.historyDays)
	series, err := r.bars.GetCloseSeries(ctx, r.benchmark, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("load benchmark series: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("benchmark %s has no bars: %w", r.benchmark, rs.ErrNoComparator)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, series, redis.TTLShort); err != nil {
			r.logger.WithError(err).Warn("Failed to cache benchmark series")
		}
	}

	return series, nil
}

func periodValue(p contracts.PeriodReturn) *float64 {
	if !p.Covered {
		return nil
	}
	v := p.Value
	return &v
}
