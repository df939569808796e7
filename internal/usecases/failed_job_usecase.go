package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/domain/repositories"
	"stripe-minter.backend/pkg/logger"
)

const (
	defaultFailedJobsLimit = 20
	maxFailedJobsLimit     = 100
)

// FailedJobUsecase archives dead jobs and lets operators inspect and retry them
type FailedJobUsecase struct {
	repo  repositories.FailedJobRepository
	queue FailedJobQueue
	now   func() time.Time
}

// NewFailedJobUsecase creates a new failed job usecase
func NewFailedJobUsecase(repo repositories.FailedJobRepository, queue FailedJobQueue) *FailedJobUsecase {
	return &FailedJobUsecase{
		repo:  repo,
		queue: queue,
		now:   time.Now,
	}
}

// Archive stores a job that exhausted its attempts
func (u *FailedJobUsecase) Archive(ctx context.Context, job *entities.Job) error {
	failed := &entities.FailedJob{
		JobID:     job.ID,
		Type:      job.Type,
		Payload:   job.Payload,
		Attempts:  job.Attempts,
		LastError: job.LastError,
		FailedAt:  u.now().UTC(),
	}
	if err := u.repo.Create(ctx, failed); err != nil {
		return fmt.Errorf("archive job %s: %w", job.ID, err)
	}

	logger.Error(ctx, "Job failed permanently",
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempts", job.Attempts),
		zap.String("last_error", job.LastError),
		zap.String("archive_id", failed.ID.String()),
	)
	return nil
}

// List returns archived jobs, newest first
func (u *FailedJobUsecase) List(ctx context.Context, limit, offset int) ([]*entities.FailedJob, int, error) {
	if limit <= 0 {
		limit = defaultFailedJobsLimit
	}
	if limit > maxFailedJobsLimit {
		limit = maxFailedJobsLimit
	}
	if offset < 0 {
		offset = 0
	}
	return u.repo.List(ctx, limit, offset)
}

// Retry enqueues the archived payload as a new job. A job can be retried once.
func (u *FailedJobUsecase) Retry(ctx context.Context, id uuid.UUID) (*entities.FailedJob, error) {
	failed, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if failed.IsRetried() {
		return nil, fmt.Errorf("%w: failed job %s was already retried", domainerrors.ErrConflict, id)
	}

	jobID, err := u.queue.Enqueue(ctx, failed.Type, failed.Payload)
	if err != nil {
		return nil, fmt.Errorf("re-enqueue failed job %s: %w", id, err)
	}

	retriedAt := u.now().UTC()
	if err := u.repo.MarkRetried(ctx, id, jobID, retriedAt); err != nil {
		return nil, err
	}
	failed.RetriedAt.SetValid(retriedAt)
	failed.RetryJobID.SetValid(jobID)

	// best effort, the retry job is already queued
	if _, err := u.queue.RemoveFailed(ctx, failed.JobID); err != nil {
		logger.Warn(ctx, "Could not clear retried job from failed set", zap.String("job_id", failed.JobID), zap.Error(err))
	}

	logger.Info(ctx, "Failed job re-enqueued", zap.String("archive_id", id.String()), zap.String("job_id", jobID))
	return failed, nil
}

// QueueStats returns the number of jobs per queue state
func (u *FailedJobUsecase) QueueStats(ctx context.Context) (entities.QueueStats, error) {
	return u.queue.Stats(ctx)
}
