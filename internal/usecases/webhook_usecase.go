package usecases

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/infrastructure/metrics"
	"stripe-minter.backend/pkg/logger"
)

// Stripe event types accepted by the webhook
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.paid"
)

var eventJobTypes = map[string]entities.JobType{
	EventSubscriptionCreated: entities.JobTypeSubscriptionCreated,
	EventSubscriptionDeleted: entities.JobTypeSubscriptionDeleted,
	EventInvoicePaid:         entities.JobTypeInvoicePaid,
}

// JobTypeForEvent returns the job type an event type is queued as
func JobTypeForEvent(eventType string) (entities.JobType, bool) {
	jobType, ok := eventJobTypes[eventType]
	return jobType, ok
}

// WebhookResult describes an accepted delivery
type WebhookResult struct {
	EventID   string
	EventType string
	JobID     string
}

// WebhookUsecase authenticates provider events and hands them to the queue
type WebhookUsecase struct {
	gateway PaymentGateway
	queue   JobQueue
	metrics *metrics.Metrics
}

// NewWebhookUsecase creates a new webhook usecase
func NewWebhookUsecase(gateway PaymentGateway, queue JobQueue, m *metrics.Metrics) *WebhookUsecase {
	return &WebhookUsecase{
		gateway: gateway,
		queue:   queue,
		metrics: m,
	}
}

// HandleWebhook verifies the delivery and enqueues exactly one job carrying the raw body
func (u *WebhookUsecase) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := u.gateway.ConstructEvent(payload, signature)
	if err != nil {
		u.metrics.WebhookReceived("", "unauthenticated")
		return nil, err
	}

	jobType, ok := JobTypeForEvent(event.Type)
	if !ok {
		u.metrics.WebhookReceived(event.Type, "unhandled")
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrUnhandledEvent, event.Type)
	}

	jobID, err := u.queue.Enqueue(ctx, jobType, event.Payload)
	if err != nil {
		u.metrics.WebhookReceived(event.Type, "enqueue_failed")
		return nil, fmt.Errorf("enqueue %s: %w", event.Type, err)
	}

	u.metrics.WebhookReceived(event.Type, "accepted")
	logger.Info(ctx, "Webhook event queued",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("job_id", jobID),
	)

	return &WebhookResult{EventID: event.ID, EventType: event.Type, JobID: jobID}, nil
}
