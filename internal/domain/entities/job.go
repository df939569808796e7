package entities

import (
	"encoding/json"
	"time"
)

// JobType identifies the workflow a job is routed to
type JobType string

const (
	JobTypeSubscriptionCreated    JobType = "subscription.created"
	JobTypeSubscriptionDeleted    JobType = "subscription.deleted"
	JobTypeInvoicePaid            JobType = "invoice.paid"
	JobTypeMintTransactionCreated JobType = "mint.transaction.created"
)

// IsKnown reports whether the dispatcher has a workflow for the type
func (t JobType) IsKnown() bool {
	switch t {
	case JobTypeSubscriptionCreated, JobTypeSubscriptionDeleted, JobTypeInvoicePaid, JobTypeMintTransactionCreated:
		return true
	}
	return false
}

// JobStatus represents the queue state of a job
type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusDelayed   JobStatus = "delayed"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a unit of asynchronous work delivered at-least-once by the queue.
// Payload is never rewritten once enqueued.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	Status      JobStatus       `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	LastError   string          `json:"lastError,omitempty"`
}

// QueueStats holds the number of jobs per queue state
type QueueStats struct {
	Waiting int64 `json:"waiting"`
	Delayed int64 `json:"delayed"`
	Active  int64 `json:"active"`
	Failed  int64 `json:"failed"`
}

// MintTransactionCreatedPayload links a submitted mint to its subscription
type MintTransactionCreatedPayload struct {
	TransactionID  string    `json:"transactionId"`
	SubscriptionID string    `json:"subscriptionId"`
	CreatedAt      time.Time `json:"createdAt"`
}
