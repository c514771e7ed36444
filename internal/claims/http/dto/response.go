// Package dto provides data transfer objects for the claims HTTP layer.
package dto

import (
	"time"

	"github.com/firmvet/firmvet/internal/claims/repository"
)

// QueuedClaimResponse represents the API response when a claim was accepted
// for asynchronous processing.
type QueuedClaimResponse struct {
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
	TaskID      string `json:"task_id"`
}

// TaskStatusResponse represents the API response for a task status query.
type TaskStatusResponse struct {
	TaskID      string    `json:"task_id"`
	Status      string    `json:"status"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MapTaskStateToResponse converts a persisted task state to its API
// representation.
func MapTaskStateToResponse(state *repository.TaskState) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:      state.TaskID,
		Status:      string(state.Status),
		ReferenceID: state.ReferenceID,
		Result:      state.Result,
		Error:       state.Error,
		UpdatedAt:   state.UpdatedAt,
	}
}
