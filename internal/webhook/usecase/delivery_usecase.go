// Package usecase implements the webhook delivery business logic: attempt
// accounting, response classification, retry scheduling and dead-lettering.
package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/firmvet/firmvet/internal/dispatch"
	apperrors "github.com/firmvet/firmvet/internal/errors"
	"github.com/firmvet/firmvet/internal/metrics"
	"github.com/firmvet/firmvet/internal/webhook/domain"
)

// StatusRepository defines webhook status persistence operations.
type StatusRepository interface {
	Save(ctx context.Context, status *domain.WebhookStatus) error
	Get(ctx context.Context, webhookID string) (*domain.WebhookStatus, error)
	Update(ctx context.Context, webhookID string, mutate func(*domain.WebhookStatus)) (*domain.WebhookStatus, error)
	Delete(ctx context.Context, webhookID string) error
	ListByReference(ctx context.Context, referenceID string) ([]*domain.WebhookStatus, error)
	ListAll(ctx context.Context) ([]*domain.WebhookStatus, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	IndexMembers(ctx context.Context, referenceID string) ([]string, error)
	RemoveFromIndex(ctx context.Context, referenceID, webhookID string) error
}

// DeadLetterSink defines the durable sink for permanently failed deliveries.
type DeadLetterSink interface {
	Write(ctx context.Context, entry *domain.DeadLetterEntry) error
}

// DeliveryPayload is the job payload for one webhook delivery lineage.
type DeliveryPayload struct {
	WebhookURL    string         `json:"webhook_url"`
	ReferenceID   string         `json:"reference_id"`
	TaskID        string         `json:"task_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload"`
}

// WebhookID returns the stable lineage key for this payload.
func (p DeliveryPayload) WebhookID() string {
	return domain.WebhookID(p.ReferenceID, p.TaskID)
}

// validate applies the pre-flight checks. Failures are non-retryable and go
// straight to the dead-letter sink.
func (p DeliveryPayload) validate() error {
	if p.ReferenceID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "reference_id is required")
	}
	if p.WebhookURL == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "webhook_url is required")
	}
	u, err := url.Parse(p.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "webhook_url must be an absolute http or https URL")
	}
	if p.Payload == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "payload must be a structured object")
	}
	return nil
}

// DeliveryConfig holds webhook delivery worker configuration.
type DeliveryConfig struct {
	// MaxAttempts is the retry budget per lineage. The 4xx retry-once rule may
	// allow one attempt beyond it.
	MaxAttempts int
	// Backoff computes retry delays.
	Backoff dispatch.Backoff
	// Timeout bounds a single delivery POST.
	Timeout time.Duration
}

// DeliveryUseCase performs webhook delivery attempts. It implements
// dispatch.Handler for webhook delivery jobs: each Execute call is exactly one
// attempt, retries re-enter the dispatch queue after a backoff delay.
type DeliveryUseCase struct {
	config     DeliveryConfig
	statusRepo StatusRepository
	deadLetter DeadLetterSink
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.BusinessMetrics
}

// NewDeliveryUseCase creates a new DeliveryUseCase. Passing a nil httpClient
// installs one with the configured timeout.
func NewDeliveryUseCase(
	config DeliveryConfig,
	statusRepo StatusRepository,
	deadLetter DeadLetterSink,
	httpClient *http.Client,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *DeliveryUseCase {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &DeliveryUseCase{
		config:     config,
		statusRepo: statusRepo,
		deadLetter: deadLetter,
		httpClient: httpClient,
		logger:     logger,
		metrics:    businessMetrics,
	}
}

// Kind implements dispatch.Handler.
func (uc *DeliveryUseCase) Kind() dispatch.Kind {
	return dispatch.KindWebhookDelivery
}

// Execute performs one delivery attempt and classifies the outcome.
func (uc *DeliveryUseCase) Execute(ctx context.Context, job dispatch.Job) (any, time.Duration, error) {
	var payload DeliveryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		wrapped := apperrors.Wrap(apperrors.ErrInvalidInput, "unmarshaling delivery payload")
		uc.writeDeadLetter(ctx, "unknown_"+job.ID, nil, wrapped)
		return nil, -1, wrapped
	}
	if payload.TaskID == "" {
		payload.TaskID = job.ID
	}

	if err := payload.validate(); err != nil {
		// Pre-flight failures skip the retry machinery entirely.
		uc.writeDeadLetter(ctx, payload.WebhookID(), payload.Payload, err)
		uc.metrics.RecordOperation(ctx, "webhook", "delivery", "rejected")
		return nil, -1, err
	}

	webhookID := payload.WebhookID()

	status, err := uc.beginAttempt(ctx, webhookID, payload)
	if err != nil {
		return nil, -1, err
	}
	if status.Status == domain.StatusDelivered {
		// Redelivered job for an already delivered lineage; nothing to do.
		return map[string]any{"webhook_id": webhookID, "status": string(domain.StatusDelivered)}, 0, nil
	}

	uc.logger.Info("delivering webhook",
		slog.String("webhook_id", webhookID),
		slog.String("webhook_url", payload.WebhookURL),
		slog.Int("attempt", status.Attempts),
	)

	code, postErr := uc.post(ctx, payload)

	switch {
	case postErr != nil:
		// Transport-level failure: timeout, connection refused, DNS.
		cause := apperrors.Wrap(apperrors.ErrNetwork, postErr.Error())
		return uc.retryOrFail(ctx, webhookID, payload, status, cause)

	case code >= 200 && code < 300:
		if _, err := uc.statusRepo.Update(ctx, webhookID, func(s *domain.WebhookStatus) {
			s.Status = domain.StatusDelivered
			s.ResponseCode = &code
			s.Error = ""
			s.ErrorType = ""
		}); err != nil {
			uc.logger.Error("updating delivered status", slog.String("webhook_id", webhookID), slog.Any("error", err))
		}
		uc.metrics.RecordOperation(ctx, "webhook", "delivery", "success")
		uc.logger.Info("webhook delivered",
			slog.String("webhook_id", webhookID),
			slog.Int("response_code", code),
			slog.Int("attempts", status.Attempts),
		)
		return map[string]any{"webhook_id": webhookID, "status": string(domain.StatusDelivered), "response_code": code}, 0, nil

	case code >= 400 && code < 500:
		// Client errors get exactly one retry per lineage; the counter is the
		// durable attempts field, so the rule holds across restarts.
		if status.Attempts >= 2 {
			cause := apperrors.Wrap(apperrors.ErrPermanentClient, http.StatusText(code))
			uc.markFailed(ctx, webhookID, payload, status.Attempts, &code, cause)
			return nil, -1, cause
		}
		if _, err := uc.statusRepo.Update(ctx, webhookID, func(s *domain.WebhookStatus) {
			s.Status = domain.StatusRetrying
			s.ResponseCode = &code
			s.Error = http.StatusText(code)
			s.ErrorType = "client_error"
		}); err != nil {
			uc.logger.Error("updating retrying status", slog.String("webhook_id", webhookID), slog.Any("error", err))
		}
		uc.metrics.RecordOperation(ctx, "webhook", "delivery", "retry")
		delay := uc.config.Backoff.Delay(status.Attempts - 1)
		return nil, delay, apperrors.Wrap(apperrors.ErrNetwork, "client error "+http.StatusText(code))

	default:
		// 5xx and anything else unexpected is a retryable server-side failure.
		cause := apperrors.Wrap(apperrors.ErrNetwork, "server error "+http.StatusText(code))
		return uc.retryOrFailWithCode(ctx, webhookID, payload, status, &code, cause)
	}
}

// OnGiveUp fires when the dispatcher itself abandons the job. It repeats the
// terminal bookkeeping so a delivery is never lost silently even if the
// worker's own accounting was bypassed.
func (uc *DeliveryUseCase) OnGiveUp(ctx context.Context, job dispatch.Job, jobErr error) {
	var payload DeliveryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		uc.writeDeadLetter(ctx, "unknown_"+job.ID, nil, apperrors.Wrap(jobErr, "dispatcher gave up"))
		return
	}
	if payload.TaskID == "" {
		payload.TaskID = job.ID
	}

	webhookID := payload.WebhookID()
	cause := apperrors.Wrap(apperrors.ErrMaxRetriesExceeded, jobErr.Error())

	uc.logger.Error("dispatcher gave up on webhook delivery",
		slog.String("webhook_id", webhookID),
		slog.Int("attempt", job.Attempt),
		slog.Any("error", jobErr),
	)

	status, err := uc.statusRepo.Get(ctx, webhookID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		status = uc.newStatus(webhookID, payload)
		status.Attempts = job.Attempt
	} else if err != nil {
		uc.logger.Error("loading status for give-up", slog.String("webhook_id", webhookID), slog.Any("error", err))
		status = uc.newStatus(webhookID, payload)
		status.Attempts = job.Attempt
	}
	if status.Status == domain.StatusDelivered {
		return
	}

	uc.markFailed(ctx, webhookID, payload, status.Attempts, status.ResponseCode, cause)
}

// beginAttempt upserts the status record for this attempt: existing lineages
// move to in_progress with attempts incremented, new ones start at 1.
func (uc *DeliveryUseCase) beginAttempt(
	ctx context.Context,
	webhookID string,
	payload DeliveryPayload,
) (*domain.WebhookStatus, error) {
	status, err := uc.statusRepo.Get(ctx, webhookID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		status = uc.newStatus(webhookID, payload)
		status.Status = domain.StatusInProgress
		status.Attempts = 1
		if err := uc.statusRepo.Save(ctx, status); err != nil {
			return nil, err
		}
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	if status.Status == domain.StatusDelivered {
		return status, nil
	}

	return uc.statusRepo.Update(ctx, webhookID, func(s *domain.WebhookStatus) {
		s.Status = domain.StatusInProgress
		s.Attempts++
	})
}

func (uc *DeliveryUseCase) newStatus(webhookID string, payload DeliveryPayload) *domain.WebhookStatus {
	now := time.Now().UTC()
	return &domain.WebhookStatus{
		WebhookID:     webhookID,
		ReferenceID:   payload.ReferenceID,
		TaskID:        payload.TaskID,
		WebhookURL:    payload.WebhookURL,
		Status:        domain.StatusPending,
		MaxAttempts:   uc.config.MaxAttempts,
		CorrelationID: payload.CorrelationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// post performs one blocking HTTP POST with a bounded timeout.
func (uc *DeliveryUseCase) post(ctx context.Context, payload DeliveryPayload) (int, error) {
	body, err := json.Marshal(payload.Payload)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, payload.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Reference-ID", payload.ReferenceID)
	if payload.CorrelationID != "" {
		req.Header.Set("X-Correlation-ID", payload.CorrelationID)
	}

	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	return resp.StatusCode, nil
}

// retryOrFail decides between scheduling another attempt and terminal failure
// for retryable causes.
func (uc *DeliveryUseCase) retryOrFail(
	ctx context.Context,
	webhookID string,
	payload DeliveryPayload,
	status *domain.WebhookStatus,
	cause error,
) (any, time.Duration, error) {
	return uc.retryOrFailWithCode(ctx, webhookID, payload, status, nil, cause)
}

func (uc *DeliveryUseCase) retryOrFailWithCode(
	ctx context.Context,
	webhookID string,
	payload DeliveryPayload,
	status *domain.WebhookStatus,
	code *int,
	cause error,
) (any, time.Duration, error) {
	if status.Attempts >= uc.config.MaxAttempts {
		terminal := apperrors.Wrap(apperrors.ErrMaxRetriesExceeded, cause.Error())
		uc.markFailed(ctx, webhookID, payload, status.Attempts, code, terminal)
		return nil, -1, terminal
	}

	if _, err := uc.statusRepo.Update(ctx, webhookID, func(s *domain.WebhookStatus) {
		s.Status = domain.StatusRetrying
		s.ResponseCode = code
		s.Error = cause.Error()
		s.ErrorType = apperrors.ClassifyType(cause)
	}); err != nil {
		uc.logger.Error("updating retrying status", slog.String("webhook_id", webhookID), slog.Any("error", err))
	}

	uc.metrics.RecordOperation(ctx, "webhook", "delivery", "retry")
	delay := uc.config.Backoff.Delay(status.Attempts - 1)
	uc.logger.Warn("webhook delivery failed, will retry",
		slog.String("webhook_id", webhookID),
		slog.Int("attempt", status.Attempts),
		slog.Duration("retry_in", delay),
		slog.Any("error", cause),
	)
	return nil, delay, cause
}

// markFailed records the terminal failure and writes the dead-letter entry.
// Both writes are idempotent per lineage.
func (uc *DeliveryUseCase) markFailed(
	ctx context.Context,
	webhookID string,
	payload DeliveryPayload,
	attempts int,
	code *int,
	cause error,
) {
	_, err := uc.statusRepo.Update(ctx, webhookID, func(s *domain.WebhookStatus) {
		s.Status = domain.StatusFailed
		s.ResponseCode = code
		s.Error = cause.Error()
		s.ErrorType = apperrors.ClassifyType(cause)
	})
	if apperrors.Is(err, apperrors.ErrNotFound) {
		// The status record expired or was never written; recreate it so the
		// failed state stays observable.
		status := uc.newStatus(webhookID, payload)
		status.Status = domain.StatusFailed
		status.Attempts = attempts
		status.ResponseCode = code
		status.Error = cause.Error()
		status.ErrorType = apperrors.ClassifyType(cause)
		if saveErr := uc.statusRepo.Save(ctx, status); saveErr != nil {
			uc.logger.Error("saving failed status", slog.String("webhook_id", webhookID), slog.Any("error", saveErr))
		}
	} else if err != nil {
		uc.logger.Error("updating failed status", slog.String("webhook_id", webhookID), slog.Any("error", err))
	}

	uc.writeDeadLetter(ctx, webhookID, payload.Payload, cause)
	uc.metrics.RecordOperation(ctx, "webhook", "delivery", "failed")
	uc.logger.Error("webhook delivery failed permanently",
		slog.String("webhook_id", webhookID),
		slog.Int("attempts", attempts),
		slog.Any("error", cause),
	)
}

func (uc *DeliveryUseCase) writeDeadLetter(ctx context.Context, webhookID string, payload map[string]any, cause error) {
	entry := &domain.DeadLetterEntry{
		WebhookID: webhookID,
		Payload:   payload,
		Error:     cause.Error(),
		ErrorType: apperrors.ClassifyType(cause),
	}
	if err := uc.deadLetter.Write(ctx, entry); err != nil {
		uc.logger.Error("writing dead letter entry",
			slog.String("webhook_id", webhookID),
			slog.Any("error", err),
		)
	}
}
