package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"stripe-minter.backend/internal/domain/entities"
	"stripe-minter.backend/internal/infrastructure/metrics"
	"stripe-minter.backend/pkg/logger"
)

// MaintainedQueue is the housekeeping side of the job queue
type MaintainedQueue interface {
	PromoteDelayed(ctx context.Context) (int, error)
	RequeueExpired(ctx context.Context) (int, []*entities.Job, error)
	Stats(ctx context.Context) (entities.QueueStats, error)
}

// QueueMaintenanceJob promotes due retries, reclaims expired leases and
// publishes queue depth
type QueueMaintenanceJob struct {
	queue    MaintainedQueue
	archiver Archiver
	metrics  *metrics.Metrics
	interval time.Duration
	stop     chan struct{}
}

func NewQueueMaintenanceJob(queue MaintainedQueue, archiver Archiver, m *metrics.Metrics, interval time.Duration) *QueueMaintenanceJob {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &QueueMaintenanceJob{
		queue:    queue,
		archiver: archiver,
		metrics:  m,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *QueueMaintenanceJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting queue maintenance job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Queue maintenance job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Queue maintenance job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *QueueMaintenanceJob) Stop() {
	close(j.stop)
}

func (j *QueueMaintenanceJob) runOnce(ctx context.Context) {
	promoted, err := j.queue.PromoteDelayed(ctx)
	if err != nil {
		logger.Error(ctx, "Error promoting delayed jobs", zap.Error(err))
	} else if promoted > 0 {
		logger.Debug(ctx, "Promoted delayed jobs", zap.Int("count", promoted))
	}

	requeued, dead, err := j.queue.RequeueExpired(ctx)
	if err != nil {
		logger.Error(ctx, "Error requeueing expired jobs", zap.Error(err))
	}
	if requeued > 0 {
		logger.Warn(ctx, "Requeued jobs with expired leases", zap.Int("count", requeued))
	}
	for _, job := range dead {
		j.metrics.JobProcessed(string(job.Type), metrics.OutcomeDead, 0)
		if err := j.archiver.Archive(ctx, job); err != nil {
			logger.Error(ctx, "Error archiving failed job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	stats, err := j.queue.Stats(ctx)
	if err != nil {
		logger.Error(ctx, "Error reading queue stats", zap.Error(err))
		return
	}
	j.metrics.QueueDepth(string(entities.JobStatusWaiting), stats.Waiting)
	j.metrics.QueueDepth(string(entities.JobStatusDelayed), stats.Delayed)
	j.metrics.QueueDepth(string(entities.JobStatusActive), stats.Active)
	j.metrics.QueueDepth(string(entities.JobStatusFailed), stats.Failed)
}
