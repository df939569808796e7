package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"stripe-minter.backend/internal/domain/entities"
	"stripe-minter.backend/internal/infrastructure/metrics"
	"stripe-minter.backend/pkg/logger"
	"stripe-minter.backend/pkg/retry"
)

// Consumer is the worker side of the job queue
type Consumer interface {
	Reserve(ctx context.Context) (*entities.Job, error)
	Ack(ctx context.Context, job *entities.Job) error
	Nack(ctx context.Context, job *entities.Job, cause error) (dead bool, err error)
}

// Dispatcher runs the workflow for one job
type Dispatcher interface {
	Dispatch(ctx context.Context, job *entities.Job) error
}

// Archiver stores jobs that exhausted their attempts
type Archiver interface {
	Archive(ctx context.Context, job *entities.Job) error
}

// WorkerPool runs Concurrency consumers against the queue until the context ends
type WorkerPool struct {
	consumer     Consumer
	dispatcher   Dispatcher
	archiver     Archiver
	metrics      *metrics.Metrics
	concurrency  int
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(consumer Consumer, dispatcher Dispatcher, archiver Archiver, m *metrics.Metrics, concurrency int, pollInterval time.Duration) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &WorkerPool{
		consumer:     consumer,
		dispatcher:   dispatcher,
		archiver:     archiver,
		metrics:      m,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		sleep:        retry.SleepContext,
	}
}

// Run blocks until ctx is cancelled. A job already being processed is
// finished before its consumer returns.
func (p *WorkerPool) Run(ctx context.Context) error {
	logger.Info(ctx, "Starting worker pool", zap.Int("concurrency", p.concurrency))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			p.consume(gctx)
			return nil
		})
	}
	err := g.Wait()

	logger.Info(ctx, "Worker pool stopped")
	return err
}

func (p *WorkerPool) consume(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := p.ProcessNext(ctx)
		if err != nil {
			logger.Error(ctx, "Worker iteration failed", zap.Error(err))
		}
		if processed && err == nil {
			continue
		}
		if p.sleep(ctx, p.pollInterval) != nil {
			return
		}
	}
}

// ProcessNext reserves and handles a single job. processed is false when the
// queue was empty.
func (p *WorkerPool) ProcessNext(ctx context.Context) (processed bool, err error) {
	job, err := p.consumer.Reserve(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	jobCtx := logger.WithJob(ctx, job.ID, string(job.Type), job.Attempts)
	start := time.Now()
	runErr := p.run(jobCtx, job)

	// settle the lease even when shutdown cancelled the job context
	settleCtx := context.WithoutCancel(jobCtx)
	if runErr == nil {
		if err := p.consumer.Ack(settleCtx, job); err != nil {
			return true, fmt.Errorf("ack job %s: %w", job.ID, err)
		}
		p.metrics.JobProcessed(string(job.Type), metrics.OutcomeCompleted, time.Since(start))
		logger.Info(jobCtx, "Job completed")
		return true, nil
	}

	dead, err := p.consumer.Nack(settleCtx, job, runErr)
	if err != nil {
		return true, fmt.Errorf("nack job %s: %w", job.ID, err)
	}
	if !dead {
		p.metrics.JobProcessed(string(job.Type), metrics.OutcomeRetried, time.Since(start))
		logger.Warn(jobCtx, "Job failed, will retry", zap.Error(runErr))
		return true, nil
	}

	p.metrics.JobProcessed(string(job.Type), metrics.OutcomeDead, time.Since(start))
	if err := p.archiver.Archive(settleCtx, job); err != nil {
		return true, err
	}
	return true, nil
}

func (p *WorkerPool) run(ctx context.Context, job *entities.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", errJobPanicked, r)
		}
	}()
	return p.dispatcher.Dispatch(ctx, job)
}

var errJobPanicked = errors.New("job panicked")
