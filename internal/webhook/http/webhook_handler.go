// Package http provides HTTP handlers for webhook delivery observability:
// status lookups, listings, manual test deliveries and retention cleanup.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/firmvet/firmvet/internal/httputil"
	"github.com/firmvet/firmvet/internal/webhook/domain"
	"github.com/firmvet/firmvet/internal/webhook/http/dto"
	"github.com/firmvet/firmvet/internal/webhook/usecase"
)

// WebhookHandler handles HTTP requests for webhook delivery tracking.
type WebhookHandler struct {
	statusUseCase  *usecase.StatusUseCase
	cleanupUseCase *usecase.CleanupUseCase
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with required dependencies.
func NewWebhookHandler(
	statusUseCase *usecase.StatusUseCase,
	cleanupUseCase *usecase.CleanupUseCase,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		statusUseCase:  statusUseCase,
		cleanupUseCase: cleanupUseCase,
		logger:         logger,
	}
}

// GetStatusHandler returns the delivery status for one webhook lineage.
// GET /webhook-status/:webhook_id
func (h *WebhookHandler) GetStatusHandler(c *gin.Context) {
	webhookID := c.Param("webhook_id")

	status, err := h.statusUseCase.Get(c.Request.Context(), webhookID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}

// ListStatusesHandler returns webhook statuses, optionally filtered by
// reference_id and status, newest updates first.
// GET /webhook-statuses?reference_id=X&status=Y&page=N&page_size=M
func (h *WebhookHandler) ListStatusesHandler(c *gin.Context) {
	page, pageSize, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	result, err := h.statusUseCase.List(c.Request.Context(), usecase.ListFilter{
		ReferenceID: c.Query("reference_id"),
		Status:      domain.Status(c.Query("status")),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapListToResponse(result))
}

// TestWebhookHandler submits a synthetic delivery through the real retry
// pipeline so operators can verify an endpoint.
// POST /test-webhook
func (h *WebhookHandler) TestWebhookHandler(c *gin.Context) {
	var req dto.TestWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid request body: %w", err), h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	taskID, err := h.statusUseCase.EnqueueTest(c.Request.Context(), req.WebhookURL, req.ReferenceID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.TestWebhookResponse{
		TaskID:    taskID,
		WebhookID: domain.WebhookID(req.ReferenceID, taskID),
		Status:    "queued",
	})
}

// CleanupHandler runs one retention sweep over webhook status records.
// POST /webhook-statuses/cleanup
func (h *WebhookHandler) CleanupHandler(c *gin.Context) {
	report, err := h.cleanupUseCase.Run(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CleanupResponse{
		Scanned:        report.Scanned,
		Evicted:        report.Evicted,
		OrphansRemoved: report.Orphans,
	})
}
