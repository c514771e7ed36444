// Package http provides HTTP handlers for claim processing: synchronous and
// queued evaluation plus task status polling.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/firmvet/firmvet/internal/claims/http/dto"
	"github.com/firmvet/firmvet/internal/claims/repository"
	"github.com/firmvet/firmvet/internal/claims/usecase"
	"github.com/firmvet/firmvet/internal/httputil"
)

// TaskStateReader reads persisted task states.
type TaskStateReader interface {
	Get(ctx context.Context, taskID string) (*repository.TaskState, error)
}

// ClaimHandler handles HTTP requests for claim processing.
type ClaimHandler struct {
	claimUseCase *usecase.ClaimUseCase
	taskStates   TaskStateReader
	logger       *slog.Logger
}

// NewClaimHandler creates a new claim handler with required dependencies.
func NewClaimHandler(claimUseCase *usecase.ClaimUseCase, taskStates TaskStateReader, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{
		claimUseCase: claimUseCase,
		taskStates:   taskStates,
		logger:       logger,
	}
}

// ProcessClaimHandler evaluates a compliance claim. With a webhook_url the
// claim is queued and the caller gets a task id; without one the evaluation
// runs on the request and the report is returned directly.
// POST /process-claim
func (h *ClaimHandler) ProcessClaimHandler(c *gin.Context) {
	var req dto.ProcessClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid request body: %w", err), h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	payload := req.ToProcessPayload(requestid.Get(c))

	if payload.WebhookURL != "" {
		taskID, err := h.claimUseCase.EnqueueClaim(c.Request.Context(), payload)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}

		c.JSON(http.StatusAccepted, dto.QueuedClaimResponse{
			Status:      "processing_queued",
			ReferenceID: payload.Claim.ReferenceID,
			TaskID:      taskID,
		})
		return
	}

	report, err := h.claimUseCase.ProcessSync(c.Request.Context(), payload)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, report)
}

// TaskStatusHandler returns the state of a dispatched task.
// GET /task-status/:task_id
func (h *ClaimHandler) TaskStatusHandler(c *gin.Context) {
	taskID := c.Param("task_id")

	state, err := h.taskStates.Get(c.Request.Context(), taskID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTaskStateToResponse(state))
}
