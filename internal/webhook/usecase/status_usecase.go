package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/firmvet/firmvet/internal/dispatch"
	apperrors "github.com/firmvet/firmvet/internal/errors"
	"github.com/firmvet/firmvet/internal/webhook/domain"
)

// Enqueuer submits jobs to the dispatch queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind dispatch.Kind, payload any) (string, error)
}

// StatusUseCase serves webhook status queries and the manual test-delivery
// operation.
type StatusUseCase struct {
	statusRepo StatusRepository
	enqueuer   Enqueuer
	logger     *slog.Logger
}

// NewStatusUseCase creates a new StatusUseCase.
func NewStatusUseCase(statusRepo StatusRepository, enqueuer Enqueuer, logger *slog.Logger) *StatusUseCase {
	return &StatusUseCase{statusRepo: statusRepo, enqueuer: enqueuer, logger: logger}
}

// Get returns the status record for one webhook lineage.
func (uc *StatusUseCase) Get(ctx context.Context, webhookID string) (*domain.WebhookStatus, error) {
	if webhookID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "webhook_id is required")
	}
	return uc.statusRepo.Get(ctx, webhookID)
}

// ListFilter narrows a status listing.
type ListFilter struct {
	ReferenceID string
	Status      domain.Status
	Page        int
	PageSize    int
}

// ListResult is one page of webhook statuses, newest updates first.
type ListResult struct {
	Items    []*domain.WebhookStatus `json:"items"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

// List returns statuses matching the filter, sorted by updated_at descending
// and paginated.
func (uc *StatusUseCase) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown status filter")
	}

	var (
		statuses []*domain.WebhookStatus
		err      error
	)
	if filter.ReferenceID != "" {
		statuses, err = uc.statusRepo.ListByReference(ctx, filter.ReferenceID)
	} else {
		statuses, err = uc.statusRepo.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	if filter.Status != "" {
		filtered := statuses[:0]
		for _, s := range statuses {
			if s.Status == filter.Status {
				filtered = append(filtered, s)
			}
		}
		statuses = filtered
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].UpdatedAt.After(statuses[j].UpdatedAt)
	})

	total := len(statuses)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return &ListResult{
		Items:    statuses[start:end],
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// EnqueueTest submits a synthetic delivery so operators can verify an endpoint
// end to end through the real retry pipeline.
func (uc *StatusUseCase) EnqueueTest(ctx context.Context, webhookURL, referenceID string) (string, error) {
	payload := DeliveryPayload{
		WebhookURL:  webhookURL,
		ReferenceID: referenceID,
		Payload: map[string]any{
			"reference_id": referenceID,
			"test":         true,
		},
	}
	if err := payload.validate(); err != nil {
		return "", err
	}

	taskID, err := uc.enqueuer.Enqueue(ctx, dispatch.KindWebhookDelivery, payload)
	if err != nil {
		return "", err
	}

	uc.logger.Info("test webhook enqueued",
		slog.String("task_id", taskID),
		slog.String("webhook_url", webhookURL),
		slog.String("reference_id", referenceID),
	)
	return taskID, nil
}
