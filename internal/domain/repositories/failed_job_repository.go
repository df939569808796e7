package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"stripe-minter.backend/internal/domain/entities"
)

// FailedJobRepository archives jobs that exhausted their attempts
type FailedJobRepository interface {
	Create(ctx context.Context, job *entities.FailedJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.FailedJob, error)
	List(ctx context.Context, limit, offset int) ([]*entities.FailedJob, int, error)
	MarkRetried(ctx context.Context, id uuid.UUID, retryJobID string, retriedAt time.Time) error
}
