package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/internal/stage"
	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/logger"
)

// StageRunner classifies every symbol's weekly trend stage against the
// benchmark and persists the result. Like the scoring run, symbols fan
// out across a worker pool and share nothing but the store.
type StageRunner struct {
	bars       contracts.BarRepository
	indicators contracts.IndicatorRepository
	classifier *stage.Classifier

	benchmark   string
	workers     int
	historyDays int
	logger      *logger.Logger
}

// NewStageRunner creates a stage runner.
func NewStageRunner(
	cfg *config.Config,
	bars contracts.BarRepository,
	indicators contracts.IndicatorRepository,
	log *logger.Logger,
) *StageRunner {
	return &StageRunner{
		bars:        bars,
		indicators:  indicators,
		classifier:  stage.NewClassifier(log),
		benchmark:   cfg.Pipeline.Benchmark,
		workers:     cfg.Pipeline.Workers,
		historyDays: cfg.MarketData.HistoryDays,
		logger:      log.WithField("module", "stage"),
	}
}

// Run classifies the full universe as of the latest bar date. A symbol
// with no bars is skipped; one with too little weekly history stores a
// Transitional stage with no signal.
func (s *StageRunner) Run(ctx context.Context) (*contracts.RunReport, error) {
	asOf, err := s.bars.LatestDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve latest trade date: %w", err)
	}
	if asOf.IsZero() {
		return nil, fmt.Errorf("no bars in store")
	}

	from := asOf.AddDate(0, 0, -s.historyDays)

	benchBars, err := s.bars.GetSeries(ctx, s.benchmark, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("load benchmark bars: %w", err)
	}
	benchWeekly := stage.ResampleWeekly(benchBars)
	if len(benchWeekly) == 0 {
		return nil, fmt.Errorf("benchmark %s has no weekly history", s.benchmark)
	}

	universe, err := s.bars.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"date":    asOf.Format("2006-01-02"),
		"symbols": len(universe),
		"workers": s.workers,
	}).Info("Starting stage classification")

	symbolCh := make(chan string, len(universe))
	resultCh := make(chan symbolScore, len(universe))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolCh {
				resultCh <- s.classifySymbol(ctx, symbol, from, asOf, benchWeekly)
			}
		}()
	}

	for _, symbol := range universe {
		if symbol == s.benchmark {
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
	for result := range resultCh {
		switch {
		case result.err != nil:
			s.logger.WithError(result.err).WithField("symbol", result.symbol).Error("Symbol failed")
			report.Failed++
		case result.skipped:
			report.Skipped++
		default:
			report.Processed++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	}).Info("Stage classification completed")

	return report, nil
}

func (s *StageRunner) classifySymbol(ctx context.Context, symbol string, from, asOf time.Time, benchWeekly []stage.WeeklyBar) symbolScore {
	bars, err := s.bars.GetSeries(ctx, symbol, from, asOf)
	if err != nil {
		return symbolScore{symbol: symbol, err: fmt.Errorf("load bars: %w", err)}
	}
	if len(bars) == 0 {
		return symbolScore{symbol: symbol, skipped: true}
	}

	weekly := stage.ResampleWeekly(bars)
	result := s.classifier.Classify(symbol, weekly, benchWeekly)
	if result.AsOf.IsZero() {
		// No overlapping weeks with the benchmark.
		return symbolScore{symbol: symbol, skipped: true}
	}

	if err := s.indicators.UpsertStage(ctx, result); err != nil {
		return symbolScore{symbol: symbol, err: fmt.Errorf("store stage: %w", err)}
	}

	return symbolScore{symbol: symbol}
}
