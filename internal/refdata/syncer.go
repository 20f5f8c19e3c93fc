package refdata

import (
	"context"
	"fmt"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/logger"
)

// Syncer refreshes the symbol classification table. The CSV is the
// primary source; symbols already present in the bar store but missing
// from the CSV fall back to the profile scraper.
type Syncer struct {
	loader  *Loader
	scraper *ProfileScraper
	symbols contracts.SymbolRepository
	bars    contracts.BarRepository
	logger  *logger.Logger
}

// NewSyncer creates a classification syncer.
func NewSyncer(
	loader *Loader,
	scraper *ProfileScraper,
	symbols contracts.SymbolRepository,
	bars contracts.BarRepository,
	log *logger.Logger,
) *Syncer {
	return &Syncer{
		loader:  loader,
		scraper: scraper,
		symbols: symbols,
		bars:    bars,
		logger:  log,
	}
}

// SyncReport summarizes one classification sync.
type SyncReport struct {
	FromCSV      int
	Scraped      int
	Unclassified int
}

// Sync loads the CSV, stores its classifications, then scrapes profiles
// for bar-store symbols the CSV does not cover. Scrape failures are
// logged and skipped so one bad page does not abort the sync.
func (s *Syncer) Sync(ctx context.Context) (*SyncReport, error) {
	cs, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}

	if err := s.symbols.UpsertBatch(ctx, cs); err != nil {
		return nil, fmt.Errorf("store classifications: %w", err)
	}

	report := &SyncReport{FromCSV: len(cs)}

	known := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		known[c.Symbol] = struct{}{}
	}

	tracked, err := s.bars.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked symbols: %w", err)
	}

	var scraped []*contracts.Classification
	for _, symbol := range tracked {
		if _, ok := known[symbol]; ok {
			continue
		}

		c, err := s.scraper.Fetch(ctx, symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Profile scrape failed")
			report.Unclassified++
			continue
		}
		if c == nil {
			report.Unclassified++
			continue
		}
		scraped = append(scraped, c)
	}

	if len(scraped) > 0 {
		if err := s.symbols.UpsertBatch(ctx, scraped); err != nil {
			return nil, fmt.Errorf("store scraped classifications: %w", err)
		}
	}
	report.Scraped = len(scraped)

	s.logger.WithFields(map[string]interface{}{
		"from_csv":     report.FromCSV,
		"scraped":      report.Scraped,
		"unclassified": report.Unclassified,
	}).Info("Classification sync completed")

	return report, nil
}
