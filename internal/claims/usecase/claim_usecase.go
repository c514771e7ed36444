// Package usecase implements claim processing: pre-flight validation,
// evaluation through the circuit breaker, retry classification and handing a
// finished report to the webhook delivery pipeline.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/firmvet/firmvet/internal/breaker"
	claimsDomain "github.com/firmvet/firmvet/internal/claims/domain"
	"github.com/firmvet/firmvet/internal/dispatch"
	apperrors "github.com/firmvet/firmvet/internal/errors"
	"github.com/firmvet/firmvet/internal/metrics"
	webhookUseCase "github.com/firmvet/firmvet/internal/webhook/usecase"
)

// Evaluator turns a claim into a compliance report.
type Evaluator interface {
	Evaluate(ctx context.Context, claim *claimsDomain.Claim, flags claimsDomain.SkipFlags) (*claimsDomain.Report, error)
}

// HealthChecker verifies the backing infrastructure is reachable before an
// attempt is spent on it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Enqueuer submits jobs to the dispatch queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind dispatch.Kind, payload any) (string, error)
}

// ProcessPayload is the job payload for one claim processing task.
type ProcessPayload struct {
	Claim         claimsDomain.Claim `json:"claim"`
	Mode          claimsDomain.Mode  `json:"mode"`
	WebhookURL    string             `json:"webhook_url,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
}

// ErrorReport is the structured payload returned (or delivered) when a claim
// cannot be evaluated.
type ErrorReport struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	ErrorType   string `json:"error_type"`
	Message     string `json:"message"`
}

func newErrorReport(referenceID string, err error) ErrorReport {
	return ErrorReport{
		ReferenceID: referenceID,
		Status:      "error",
		ErrorType:   apperrors.ClassifyType(err),
		Message:     err.Error(),
	}
}

// ClaimConfig holds claim processing configuration.
type ClaimConfig struct {
	// MaxAttempts is the retry budget for retryable evaluation failures.
	MaxAttempts int
	// Backoff computes retry delays.
	Backoff dispatch.Backoff
}

// ClaimUseCase evaluates claims. It implements dispatch.Handler for claim
// processing jobs and also serves the synchronous path for callers that did
// not supply a callback URL.
type ClaimUseCase struct {
	config    ClaimConfig
	evaluator Evaluator
	breaker   *breaker.Breaker
	health    HealthChecker
	enqueuer  Enqueuer
	logger    *slog.Logger
	metrics   metrics.BusinessMetrics
}

// NewClaimUseCase creates a new ClaimUseCase.
func NewClaimUseCase(
	config ClaimConfig,
	evaluator Evaluator,
	evaluationBreaker *breaker.Breaker,
	health HealthChecker,
	enqueuer Enqueuer,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *ClaimUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &ClaimUseCase{
		config:    config,
		evaluator: evaluator,
		breaker:   evaluationBreaker,
		health:    health,
		enqueuer:  enqueuer,
		logger:    logger,
		metrics:   businessMetrics,
	}
}

// Kind implements dispatch.Handler.
func (uc *ClaimUseCase) Kind() dispatch.Kind {
	return dispatch.KindClaimProcessing
}

// Validate applies the pre-flight checks shared by the synchronous and
// asynchronous paths. Failures are non-retryable.
func (uc *ClaimUseCase) Validate(payload *ProcessPayload) error {
	if !payload.Mode.Valid() {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unrecognized processing mode")
	}
	if payload.Claim.ReferenceID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "reference_id is required")
	}
	if !payload.Claim.HasIdentifier() {
		return apperrors.Wrap(apperrors.ErrInvalidInput,
			"at least one of business_ref, tax_id or organization_crd is required")
	}
	return nil
}

// ProcessSync evaluates a claim on the caller's goroutine and returns the
// report directly. Used when no callback URL was supplied.
func (uc *ClaimUseCase) ProcessSync(ctx context.Context, payload *ProcessPayload) (*claimsDomain.Report, error) {
	if err := uc.Validate(payload); err != nil {
		return nil, err
	}
	if err := uc.health.Ping(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	report, err := uc.evaluate(ctx, payload)
	if err != nil {
		uc.metrics.RecordOperation(ctx, "claims", "claim_process", "error")
		return nil, err
	}

	uc.metrics.RecordOperation(ctx, "claims", "claim_process", "success")
	uc.metrics.RecordDuration(ctx, "claims", "claim_process", time.Since(started), "success")
	return report, nil
}

// EnqueueClaim submits a claim for asynchronous processing.
func (uc *ClaimUseCase) EnqueueClaim(ctx context.Context, payload *ProcessPayload) (string, error) {
	if err := uc.Validate(payload); err != nil {
		return "", err
	}
	if err := uc.health.Ping(ctx); err != nil {
		return "", err
	}
	return uc.enqueuer.Enqueue(ctx, dispatch.KindClaimProcessing, payload)
}

// Execute performs one claim processing attempt.
func (uc *ClaimUseCase) Execute(ctx context.Context, job dispatch.Job) (any, time.Duration, error) {
	var payload ProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, -1, apperrors.Wrap(apperrors.ErrInvalidInput, "unmarshaling claim payload")
	}

	if err := uc.Validate(&payload); err != nil {
		uc.metrics.RecordOperation(ctx, "claims", "claim_process", "rejected")
		return uc.finish(ctx, &payload, nil, err), -1, err
	}

	// Fail fast rather than retry into a dead dependency; surfaced distinctly
	// from validation errors.
	if err := uc.health.Ping(ctx); err != nil {
		uc.metrics.RecordOperation(ctx, "claims", "claim_process", "error")
		return uc.finish(ctx, &payload, nil, err), -1, err
	}

	uc.logger.Info("processing claim",
		slog.String("task_id", job.ID),
		slog.String("reference_id", payload.Claim.ReferenceID),
		slog.String("mode", string(payload.Mode)),
		slog.Int("attempt", job.Attempt),
	)

	report, err := uc.evaluate(ctx, &payload)
	switch {
	case err == nil:
		uc.metrics.RecordOperation(ctx, "claims", "claim_process", "success")
		return uc.finish(ctx, &payload, report, nil), 0, nil

	case apperrors.Is(err, apperrors.ErrInvalidInput):
		uc.metrics.RecordOperation(ctx, "claims", "claim_process", "rejected")
		return uc.finish(ctx, &payload, nil, err), -1, err

	default:
		// Network-class and unexpected failures retry with backoff until the
		// budget runs out.
		if job.Attempt >= uc.config.MaxAttempts {
			terminal := apperrors.Wrap(apperrors.ErrMaxRetriesExceeded, err.Error())
			uc.metrics.RecordOperation(ctx, "claims", "claim_process", "failed")
			return uc.finish(ctx, &payload, nil, terminal), -1, terminal
		}

		delay := uc.config.Backoff.Delay(job.Attempt - 1)
		uc.metrics.RecordOperation(ctx, "claims", "claim_process", "retry")
		uc.logger.Warn("claim evaluation failed, will retry",
			slog.String("task_id", job.ID),
			slog.String("reference_id", payload.Claim.ReferenceID),
			slog.Int("attempt", job.Attempt),
			slog.Duration("retry_in", delay),
			slog.Any("error", err),
		)
		return nil, delay, err
	}
}

// OnGiveUp fires when the dispatcher abandons the job; the failure still has
// to reach the caller's webhook.
func (uc *ClaimUseCase) OnGiveUp(ctx context.Context, job dispatch.Job, jobErr error) {
	var payload ProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		uc.logger.Error("dispatcher gave up on undecodable claim job",
			slog.String("task_id", job.ID), slog.Any("error", err))
		return
	}

	uc.logger.Error("dispatcher gave up on claim processing",
		slog.String("task_id", job.ID),
		slog.String("reference_id", payload.Claim.ReferenceID),
		slog.Int("attempt", job.Attempt),
		slog.Any("error", jobErr),
	)
	uc.finish(ctx, &payload, nil, apperrors.Wrap(apperrors.ErrMaxRetriesExceeded, jobErr.Error()))
}

// evaluate calls the evaluator through the circuit breaker so a failing
// downstream does not absorb a flood of retries.
func (uc *ClaimUseCase) evaluate(ctx context.Context, payload *ProcessPayload) (*claimsDomain.Report, error) {
	var report *claimsDomain.Report
	err := uc.breaker.Call(func() error {
		var evalErr error
		report, evalErr = uc.evaluator.Evaluate(ctx, &payload.Claim, payload.Mode.SkipFlags())
		return evalErr
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// finish builds the terminal result payload and, when a callback URL was
// supplied, hands it to the webhook delivery pipeline. The returned value
// becomes the recorded job result.
func (uc *ClaimUseCase) finish(
	ctx context.Context,
	payload *ProcessPayload,
	report *claimsDomain.Report,
	jobErr error,
) any {
	var result any
	if jobErr != nil {
		result = newErrorReport(payload.Claim.ReferenceID, jobErr)
	} else {
		result = report
	}

	if payload.WebhookURL == "" {
		return result
	}

	deliveryPayload, err := toDeliveryBody(result)
	if err != nil {
		uc.logger.Error("building webhook payload",
			slog.String("reference_id", payload.Claim.ReferenceID), slog.Any("error", err))
		return result
	}

	taskID, err := uc.enqueuer.Enqueue(ctx, dispatch.KindWebhookDelivery, webhookUseCase.DeliveryPayload{
		WebhookURL:    payload.WebhookURL,
		ReferenceID:   payload.Claim.ReferenceID,
		CorrelationID: payload.CorrelationID,
		Payload:       deliveryPayload,
	})
	if err != nil {
		uc.logger.Error("enqueueing webhook delivery",
			slog.String("reference_id", payload.Claim.ReferenceID), slog.Any("error", err))
		return result
	}

	uc.logger.Info("webhook delivery enqueued",
		slog.String("reference_id", payload.Claim.ReferenceID),
		slog.String("delivery_task_id", taskID),
	)
	return result
}

// toDeliveryBody flattens a report or error report into the generic payload
// shape the delivery worker posts.
func toDeliveryBody(result any) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}
