package jobs

import (
	"context"
	"time"

	"github.com/folio-works/portfolio-api/internal/domain"
	"go.uber.org/zap"
)

// ContentSyncJobName is the name of the scheduled publish job
const ContentSyncJobName = "content_sync"

// ContentSyncer publishes the content store.
// This interface allows the job to call the service without importing the service package directly.
type ContentSyncer interface {
	Sync(ctx context.Context, trigger domain.SyncTrigger, force bool) (*domain.SyncRunDTO, error)
}

// ContentSyncJob publishes pending edits on a schedule.
type ContentSyncJob struct {
	syncer  ContentSyncer
	logger  *zap.Logger
	timeout time.Duration
}

// NewContentSyncJob creates a new content sync job.
// The timeout controls how long one sync is allowed to run.
func NewContentSyncJob(syncer ContentSyncer, logger *zap.Logger, timeout time.Duration) *ContentSyncJob {
	return &ContentSyncJob{
		syncer:  syncer,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes a scheduled sync.
func (j *ContentSyncJob) Run() {
	j.run(domain.SyncTriggerSchedule)
}

// RunStartupSync publishes whatever was left unpublished by the previous process.
func (j *ContentSyncJob) RunStartupSync() {
	j.run(domain.SyncTriggerStartup)
}

func (j *ContentSyncJob) run(trigger domain.SyncTrigger) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	run, err := j.syncer.Sync(ctx, trigger, false)
	if err != nil {
		j.logger.Warn("content sync job did not publish",
			zap.String("trigger", string(trigger)),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("content sync job completed",
		zap.String("trigger", string(trigger)),
		zap.String("status", run.Status),
		zap.String("commit", run.CommitSHA),
		zap.Int("imagesUploaded", run.ImagesUploaded),
		zap.Duration("duration", time.Since(start)))
}

// RegisterContentSyncJob registers the content sync job with the scheduler.
// If runStartupSync is true, a sync also runs immediately in the background
// so it doesn't block API startup. An empty cronExpr registers only the startup sync.
func RegisterContentSyncJob(scheduler *Scheduler, syncer ContentSyncer, logger *zap.Logger, cronExpr string, timeout time.Duration, runStartupSync bool) error {
	job := NewContentSyncJob(syncer, logger, timeout)

	if runStartupSync {
		scheduler.RunOnce(ContentSyncJobName+"_startup", job.RunStartupSync)
	}

	if cronExpr == "" {
		return nil
	}
	return scheduler.AddJob(ContentSyncJobName, cronExpr, job.Run)
}
