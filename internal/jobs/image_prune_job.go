package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ImagePruneJobName is the name of the pending image cleanup job
const ImagePruneJobName = "image_prune"

// ImagePruner deletes stored image bytes that were uploaded before the cutoff.
type ImagePruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ImagePruneJob removes the local copy of images once they have been hosted
// for longer than the retention period.
type ImagePruneJob struct {
	pruner    ImagePruner
	logger    *zap.Logger
	retention time.Duration
}

func NewImagePruneJob(pruner ImagePruner, logger *zap.Logger, retention time.Duration) *ImagePruneJob {
	return &ImagePruneJob{pruner: pruner, logger: logger, retention: retention}
}

// Run executes the prune job.
func (j *ImagePruneJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := j.pruner.Prune(ctx, j.retention)
	if err != nil {
		j.logger.Error("image prune job failed", zap.Error(err))
		return
	}
	j.logger.Info("image prune job completed",
		zap.Int64("removed", removed),
		zap.Duration("retention", j.retention))
}

// RegisterImagePruneJob registers the prune job with the scheduler.
func RegisterImagePruneJob(scheduler *Scheduler, pruner ImagePruner, logger *zap.Logger, cronExpr string, retention time.Duration) error {
	job := NewImagePruneJob(pruner, logger, retention)
	return scheduler.AddJob(ImagePruneJobName, cronExpr, job.Run)
}
