package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/domain/repositories"
	"stripe-minter.backend/internal/infrastructure/models"
)

// failedJobRepo implements repositories.FailedJobRepository
type failedJobRepo struct {
	db *gorm.DB
}

// NewFailedJobRepository creates a new failed job archive
func NewFailedJobRepository(db *gorm.DB) repositories.FailedJobRepository {
	return &failedJobRepo{db: db}
}

func (r *failedJobRepo) Create(ctx context.Context, job *entities.FailedJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.FailedAt.IsZero() {
		job.FailedAt = time.Now()
	}
	payload := string(job.Payload)
	if payload == "" {
		payload = "null"
	}

	m := &models.FailedJob{
		ID:        job.ID,
		JobID:     job.JobID,
		JobType:   string(job.Type),
		Payload:   payload,
		Attempts:  job.Attempts,
		LastError: job.LastError,
		FailedAt:  job.FailedAt,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *failedJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.FailedJob, error) {
	var m models.FailedJob
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *failedJobRepo) List(ctx context.Context, limit, offset int) ([]*entities.FailedJob, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.FailedJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.FailedJob
	if err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]*entities.FailedJob, 0, len(ms))
	for _, m := range ms {
		model := m
		jobs = append(jobs, r.toEntity(&model))
	}
	return jobs, int(total), nil
}

// MarkRetried stamps the row only once; a second call reports ErrConflict.
func (r *failedJobRepo) MarkRetried(ctx context.Context, id uuid.UUID, retryJobID string, retriedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.FailedJob{}).
		Where("id = ? AND retried_at IS NULL", id).
		Updates(map[string]interface{}{
			"retried_at":   retriedAt,
			"retry_job_id": retryJobID,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *failedJobRepo) toEntity(m *models.FailedJob) *entities.FailedJob {
	job := &entities.FailedJob{
		ID:        m.ID,
		JobID:     m.JobID,
		Type:      entities.JobType(m.JobType),
		Payload:   json.RawMessage(m.Payload),
		Attempts:  m.Attempts,
		LastError: m.LastError,
		FailedAt:  m.FailedAt,
		RetriedAt: null.TimeFromPtr(m.RetriedAt),
	}
	job.RetryJobID = null.StringFromPtr(m.RetryJobID)
	return job
}
