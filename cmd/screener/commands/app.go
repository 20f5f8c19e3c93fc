package commands

import (
	"fmt"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/internal/marketdata"
	"github.com/pinger/rstrength/internal/pipeline"
	"github.com/pinger/rstrength/internal/refdata"
	"github.com/pinger/rstrength/internal/rs"
	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/database"
	"github.com/pinger/rstrength/pkg/httputil"
	"github.com/pinger/rstrength/pkg/logger"
	"github.com/pinger/rstrength/pkg/redis"

	"github.com/pinger/rstrength/internal/store"
)

// app holds the wired dependency graph shared by the commands.
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *database.DB
	cache  *redis.Cache

	bars       *store.BarRepository
	indicators *store.IndicatorRepository
	symbols    *store.SymbolRepository
	trends     *store.SectorTrendRepository

	market   *marketdata.Client
	ingestor *pipeline.Ingestor
	runner   *pipeline.Runner
	stages   *pipeline.StageRunner
	syncer   *refdata.Syncer
}

// initApp loads config and wires the full dependency graph. Redis is
// optional: with REDIS_ENABLED=false the caches are simply nil.
func initApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	httpClient := httputil.New(log)
	marketHTTP := httputil.New(log)

	var cache *redis.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		cache = redis.NewCache(redisClient, "screener")

		// Provider calls are throttled across processes, not just
		// within this one.
		marketHTTP = marketHTTP.WithRateLimiter(
			redis.NewRateLimiter(redisClient, "screener"), redis.MarketDataRateLimit)
	}

	bars := store.NewBarRepository(db.Pool)
	indicators := store.NewIndicatorRepository(db.Pool)
	symbols := store.NewSymbolRepository(db.Pool)
	trends := store.NewSectorTrendRepository(db.Pool)

	market := marketdata.NewClient(cfg, marketHTTP, log)

	peers := rs.NewPeerGroupAggregator(symbols, bars, cache, cfg.Pipeline.PeerLookbackDays, log)

	loader := refdata.NewLoader(cfg, httpClient, log)
	scraper := refdata.NewProfileScraper(cfg, httpClient, log)

	return &app{
		cfg:        cfg,
		logger:     log,
		db:         db,
		cache:      cache,
		bars:       bars,
		indicators: indicators,
		symbols:    symbols,
		trends:     trends,
		market:     market,
		ingestor:   pipeline.NewIngestor(cfg, market, bars, log),
		runner:     pipeline.NewRunner(cfg, bars, indicators, symbols, trends, peers, cache, log),
		stages:     pipeline.NewStageRunner(cfg, bars, indicators, log),
		syncer:     refdata.NewSyncer(loader, scraper, symbols, bars, log),
	}, nil
}

// Close releases the app's connections.
func (a *app) Close() {
	a.db.Close()
}

// printReport prints an ingest or scoring run summary.
func printReport(label string, report *contracts.RunReport) {
	fmt.Printf("\n%s: %d processed, %d skipped, %d failed (of %d)\n",
		label, report.Processed, report.Skipped, report.Failed, report.Total())
}
