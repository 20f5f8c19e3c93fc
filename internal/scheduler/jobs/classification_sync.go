package jobs

import (
	"context"
	"fmt"

	"github.com/pinger/rstrength/internal/refdata"
	"github.com/pinger/rstrength/pkg/logger"
)

// ClassificationSyncJob refreshes sector and industry classifications.
// Classifications drift slowly, so a weekly sync is enough.
type ClassificationSyncJob struct {
	syncer *refdata.Syncer
	logger *logger.Logger
}

// NewClassificationSyncJob creates the classification sync job.
func NewClassificationSyncJob(syncer *refdata.Syncer, log *logger.Logger) *ClassificationSyncJob {
	return &ClassificationSyncJob{
		syncer: syncer,
		logger: log,
	}
}

// Name returns the job name.
func (j *ClassificationSyncJob) Name() string {
	return "classification_sync"
}

// Schedule returns the cron schedule (6 AM UTC on Sundays).
func (j *ClassificationSyncJob) Schedule() string {
	return "0 0 6 * * SUN"
}

// Run executes the classification sync.
func (j *ClassificationSyncJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled classification sync")

	report, err := j.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync classifications: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"from_csv": report.FromCSV,
		"scraped":  report.Scraped,
	}).Info("Scheduled classification sync completed successfully")
	return nil
}
