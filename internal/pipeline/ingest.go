package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/internal/marketdata"
	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/logger"
)

// Ingestor fetches daily history from the provider and upserts it into
// the bar store, fanning out across symbols with a bounded worker pool.
// Each symbol's fetch and write is independent; one failure never stops
// the batch.
type Ingestor struct {
	market    *marketdata.Client
	bars      contracts.BarRepository
	benchmark string
	workers   int
	logger    *logger.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(cfg *config.Config, market *marketdata.Client, bars contracts.BarRepository, log *logger.Logger) *Ingestor {
	return &Ingestor{
		market:    market,
		bars:      bars,
		benchmark: cfg.Pipeline.Benchmark,
		workers:   cfg.Pipeline.Workers,
		logger:    log.WithField("module", "ingest"),
	}
}

type fetchResult struct {
	symbol string
	bars   int
	err    error
}

// Run fetches history for the given symbols (the benchmark is always
// included) within [from, to] and upserts the bars. Symbols the provider
// returns nothing for are counted as skipped; fetch or write failures as
// failed.
func (in *Ingestor) Run(ctx context.Context, symbols []string, from, to time.Time) (*contracts.RunReport, error) {
	universe := withBenchmark(symbols, in.benchmark)
	if len(universe) == 0 {
		return nil, fmt.Errorf("no symbols to ingest")
	}

	in.logger.WithFields(map[string]interface{}{
		"symbols": len(universe),
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
		"workers": in.workers,
	}).Info("Starting ingestion")

	symbolCh := make(chan string, len(universe))
	resultCh := make(chan fetchResult, len(universe))

	var wg sync.WaitGroup
	for i := 0; i < in.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in.worker(ctx, symbolCh, resultCh, from, to)
		}()
	}

	for _, symbol := range universe {
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	report := &contracts.RunReport{Date: to}
	for result := range resultCh {
		switch {
		case result.err != nil:
			report.Failed++
		case result.bars == 0:
			report.Skipped++
		default:
			report.Processed++
		}
	}

	in.logger.WithFields(map[string]interface{}{
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	}).Info("Ingestion completed")

	return report, nil
}

func (in *Ingestor) worker(ctx context.Context, symbolCh <-chan string, resultCh chan<- fetchResult, from, to time.Time) {
	for symbol := range symbolCh {
		select {
		case <-ctx.Done():
			resultCh <- fetchResult{symbol: symbol, err: ctx.Err()}
			return
		default:
		}

		bars, err := in.market.FetchDailyBars(ctx, symbol, from, to)
		if err != nil {
			in.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch bars")
			resultCh <- fetchResult{symbol: symbol, err: err}
			continue
		}
		if len(bars) == 0 {
			in.logger.WithField("symbol", symbol).Warn("Provider returned no history")
			resultCh <- fetchResult{symbol: symbol}
			continue
		}

		if err := in.bars.UpsertBatch(ctx, bars); err != nil {
			in.logger.WithError(err).WithField("symbol", symbol).Error("Failed to store bars")
			resultCh <- fetchResult{symbol: symbol, bars: len(bars), err: err}
			continue
		}

		resultCh <- fetchResult{symbol: symbol, bars: len(bars)}
	}
}

// withBenchmark appends the benchmark symbol unless already present.
func withBenchmark(symbols []string, benchmark string) []string {
	if benchmark == "" {
		return symbols
	}
	for _, s := range symbols {
		if s == benchmark {
			return symbols
		}
	}
	out := make([]string, 0, len(symbols)+1)
	out = append(out, symbols...)
	return append(out, benchmark)
}
