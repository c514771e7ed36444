// Package domain defines the webhook delivery domain entities and types.
package domain

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a webhook delivery lineage.
//
// State machine:
//
//	[pending] ---(worker picks up)---> [in_progress]
//	[in_progress] ---(2xx)---> [delivered]
//	[in_progress] ---(retryable failure, budget left)---> [retrying]
//	[retrying] ---(backoff elapsed)---> [in_progress]
//	[in_progress] ---(budget exhausted or permanent failure)---> [failed]
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusRetrying   Status = "retrying"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusRetrying, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// WebhookStatus tracks one delivery lineage: the sequence of attempts for one
// logical webhook notification, retried in place under a stable WebhookID.
type WebhookStatus struct {
	WebhookID     string `json:"webhook_id"`
	ReferenceID   string `json:"reference_id"`
	TaskID        string `json:"task_id"`
	WebhookURL    string `json:"webhook_url"`
	Status        Status `json:"status"`
	Attempts      int    `json:"attempts"`
	MaxAttempts   int    `json:"max_attempts"`
	ResponseCode  *int   `json:"response_code,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorType     string `json:"error_type,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookID builds the natural key for a delivery lineage.
func WebhookID(referenceID, taskID string) string {
	return fmt.Sprintf("%s_%s", referenceID, taskID)
}

// DeadLetterEntry is the durable record of a permanently failed delivery,
// created exactly once per lineage and immutable thereafter.
type DeadLetterEntry struct {
	WebhookID string         `json:"webhook_id"`
	Payload   map[string]any `json:"payload"`
	Error     string         `json:"error"`
	ErrorType string         `json:"error_type"`
	CreatedAt time.Time      `json:"created_at"`
}
