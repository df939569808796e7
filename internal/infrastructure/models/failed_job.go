package models

import (
	"time"

	"github.com/google/uuid"
)

type FailedJob struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID      string    `gorm:"type:varchar(64);not null;index"`
	JobType    string    `gorm:"type:varchar(50);not null;index"`
	Payload    string    `gorm:"type:jsonb;not null"`
	Attempts   int       `gorm:"not null"`
	LastError  string    `gorm:"type:text"`
	FailedAt   time.Time `gorm:"not null;index"`
	RetriedAt  *time.Time
	RetryJobID *string `gorm:"type:varchar(64)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (FailedJob) TableName() string {
	return "failed_jobs"
}
