package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// FailedJob is an archived job that exhausted its attempts
type FailedJob struct {
	ID         uuid.UUID       `json:"id"`
	JobID      string          `json:"jobId"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"lastError"`
	FailedAt   time.Time       `json:"failedAt"`
	RetriedAt  null.Time       `json:"retriedAt,omitempty"`
	RetryJobID null.String     `json:"retryJobId,omitempty"`
}

// IsRetried reports whether the job was already re-enqueued by an operator
func (f *FailedJob) IsRetried() bool {
	return f.RetriedAt.Valid
}
