package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/internal/pipeline"
	"github.com/pinger/rstrength/pkg/logger"
)

// DailyScreenJob runs the full daily chain: fetch recent bars for the
// tracked universe, score and rank the latest session, then reclassify
// weekly trend stages.
type DailyScreenJob struct {
	ingestor *pipeline.Ingestor
	runner   *pipeline.Runner
	stages   *pipeline.StageRunner
	bars     contracts.BarRepository
	logger   *logger.Logger
}

// NewDailyScreenJob creates the daily screening job.
func NewDailyScreenJob(
	ingestor *pipeline.Ingestor,
	runner *pipeline.Runner,
	stages *pipeline.StageRunner,
	bars contracts.BarRepository,
	log *logger.Logger,
) *DailyScreenJob {
	return &DailyScreenJob{
		ingestor: ingestor,
		runner:   runner,
		stages:   stages,
		bars:     bars,
		logger:   log,
	}
}

// Name returns the job name.
func (j *DailyScreenJob) Name() string {
	return "daily_screen"
}

// Schedule returns the cron schedule (10 PM UTC on weekdays, after the
// US close).
func (j *DailyScreenJob) Schedule() string {
	return "0 0 22 * * MON-FRI"
}

// Run executes the daily screening chain.
func (j *DailyScreenJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled daily screen")

	symbols, err := j.bars.ListSymbols(ctx)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols tracked, run an initial fetch first")
	}

	// Fetch the last 5 calendar days so holidays and late corrections
	// are picked up.
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -5)

	j.logger.Info("Fetching bars")
	if _, err := j.ingestor.Run(ctx, symbols, from, to); err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}

	j.logger.Info("Scoring and ranking")
	if _, err := j.runner.Run(ctx, time.Time{}); err != nil {
		return fmt.Errorf("score run: %w", err)
	}

	j.logger.Info("Classifying trend stages")
	if _, err := j.stages.Run(ctx); err != nil {
		return fmt.Errorf("stage run: %w", err)
	}

	j.logger.Info("Scheduled daily screen completed successfully")
	return nil
}
