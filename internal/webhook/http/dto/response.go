// Package dto provides data transfer objects for the webhook HTTP layer.
package dto

import (
	"time"

	"github.com/firmvet/firmvet/internal/webhook/domain"
	"github.com/firmvet/firmvet/internal/webhook/usecase"
)

// WebhookStatusResponse represents the API response for one webhook lineage.
type WebhookStatusResponse struct {
	WebhookID     string    `json:"webhook_id"`
	ReferenceID   string    `json:"reference_id"`
	TaskID        string    `json:"task_id"`
	WebhookURL    string    `json:"webhook_url"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	MaxAttempts   int       `json:"max_attempts"`
	ResponseCode  *int      `json:"response_code,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorType     string    `json:"error_type,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MapStatusToResponse converts a domain WebhookStatus to its API representation.
func MapStatusToResponse(status *domain.WebhookStatus) WebhookStatusResponse {
	return WebhookStatusResponse{
		WebhookID:     status.WebhookID,
		ReferenceID:   status.ReferenceID,
		TaskID:        status.TaskID,
		WebhookURL:    status.WebhookURL,
		Status:        string(status.Status),
		Attempts:      status.Attempts,
		MaxAttempts:   status.MaxAttempts,
		ResponseCode:  status.ResponseCode,
		Error:         status.Error,
		ErrorType:     status.ErrorType,
		CorrelationID: status.CorrelationID,
		CreatedAt:     status.CreatedAt,
		UpdatedAt:     status.UpdatedAt,
	}
}

// ListStatusesResponse represents one page of webhook statuses.
type ListStatusesResponse struct {
	Items    []WebhookStatusResponse `json:"items"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

// MapListToResponse converts a use case listing result to its API representation.
func MapListToResponse(result *usecase.ListResult) ListStatusesResponse {
	items := make([]WebhookStatusResponse, 0, len(result.Items))
	for _, status := range result.Items {
		items = append(items, MapStatusToResponse(status))
	}
	return ListStatusesResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
}

// TestWebhookResponse represents the API response for a manual test delivery.
type TestWebhookResponse struct {
	TaskID    string `json:"task_id"`
	WebhookID string `json:"webhook_id"`
	Status    string `json:"status"`
}

// CleanupResponse represents the API response for a cleanup sweep.
type CleanupResponse struct {
	Scanned        int `json:"scanned"`
	Evicted        int `json:"evicted"`
	OrphansRemoved int `json:"orphans_removed"`
}
