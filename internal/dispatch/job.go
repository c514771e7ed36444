// Package dispatch provides the asynchronous job dispatcher: a bounded queue,
// a worker pool, delayed re-scheduling for retries and externally visible
// job-state tracking. Workers never busy-wait through a backoff window; they
// hand the job back to the dispatcher and release their slot.
package dispatch

import (
	"context"
	"encoding/json"
	"time"
)

// Kind identifies the type of work a job carries.
type Kind string

const (
	// KindClaimProcessing evaluates a compliance claim.
	KindClaimProcessing Kind = "claim_processing"
	// KindWebhookDelivery delivers a result payload to a callback URL.
	KindWebhookDelivery Kind = "webhook_delivery"
)

// Status is the externally visible state of a job.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRetrying   Status = "RETRYING"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one unit of queued work. The dispatcher owns it exclusively; workers
// report outcomes through their Execute return values.
type Job struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// Handler executes jobs of a single kind.
type Handler interface {
	// Kind returns the job kind this handler serves.
	Kind() Kind

	// Execute performs one attempt. A nil error completes the job with result.
	// A non-nil error with retryIn >= 0 asks the dispatcher to re-schedule the
	// same job (same id, same lineage) after retryIn. A non-nil error with
	// retryIn < 0 fails the job terminally.
	Execute(ctx context.Context, job Job) (result any, retryIn time.Duration, err error)

	// OnGiveUp fires when the dispatcher itself abandons a job after the
	// framework attempt ceiling, bypassing the handler's own retry
	// accounting. Implementations must be idempotent.
	OnGiveUp(ctx context.Context, job Job, err error)
}

// Recorder persists job state transitions outside the dispatcher's own memory,
// so pollers can observe task state across restarts. Implementations must not
// block for long; recording failures are logged, never fatal.
type Recorder interface {
	Record(ctx context.Context, job Job, status Status, result any, jobErr error)
}

// JobState is the dispatcher's view of one job, returned by GetState.
type JobState struct {
	Status    Status
	Result    any
	Error     string
	UpdatedAt time.Time
}
