package usecases

import (
	"context"

	"go.uber.org/zap"
	"stripe-minter.backend/internal/domain/entities"
	"stripe-minter.backend/pkg/logger"
)

// JobHandlerFunc runs one workflow over a job payload
type JobHandlerFunc func(ctx context.Context, payload []byte) error

// JobDispatcher routes a dequeued job to its workflow
type JobDispatcher struct {
	handlers map[entities.JobType]JobHandlerFunc
}

// NewJobDispatcher wires the four workflows by job type
func NewJobDispatcher(subscriptions *SubscriptionUsecase, mint *MintUsecase) *JobDispatcher {
	return NewJobDispatcherWithHandlers(map[entities.JobType]JobHandlerFunc{
		entities.JobTypeSubscriptionCreated:    subscriptions.HandleSubscriptionCreated,
		entities.JobTypeSubscriptionDeleted:    subscriptions.HandleSubscriptionDeleted,
		entities.JobTypeInvoicePaid:            subscriptions.HandleInvoicePaid,
		entities.JobTypeMintTransactionCreated: mint.HandleMintTransactionCreated,
	})
}

// NewJobDispatcherWithHandlers creates a dispatcher over an explicit routing table
func NewJobDispatcherWithHandlers(handlers map[entities.JobType]JobHandlerFunc) *JobDispatcher {
	routes := make(map[entities.JobType]JobHandlerFunc, len(handlers))
	for jobType, fn := range handlers {
		routes[jobType] = fn
	}
	return &JobDispatcher{handlers: routes}
}

// Dispatch runs the workflow for job. Unknown job types are logged and
// treated as done; workflow errors are returned so the queue retries.
func (d *JobDispatcher) Dispatch(ctx context.Context, job *entities.Job) error {
	handler, ok := d.handlers[job.Type]
	if !ok {
		logger.Warn(ctx, "Unknown job type, skipping", zap.String("job_type", string(job.Type)), zap.String("job_id", job.ID))
		return nil
	}
	return handler(ctx, job.Payload)
}
