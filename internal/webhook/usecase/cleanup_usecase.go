package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/firmvet/firmvet/internal/errors"
	"github.com/firmvet/firmvet/internal/metrics"
	"github.com/firmvet/firmvet/internal/webhook/domain"
	"github.com/firmvet/firmvet/internal/webhook/repository"
)

// CleanupReport summarizes one cleanup sweep.
type CleanupReport struct {
	Scanned int `json:"scanned"`
	Evicted int `json:"evicted"`
	Orphans int `json:"orphans_removed"`
}

// CleanupUseCase reconciles status records and their reference indexes.
// Key-level TTLs already expire individual records; the sweep exists to evict
// records whose retention window passed before Redis got to them and to drop
// index members whose status keys are gone.
type CleanupUseCase struct {
	statusRepo StatusRepository
	ttl        repository.TTLPolicy
	logger     *slog.Logger
	metrics    metrics.BusinessMetrics
	now        func() time.Time
}

// NewCleanupUseCase creates a new CleanupUseCase.
func NewCleanupUseCase(
	statusRepo StatusRepository,
	ttl repository.TTLPolicy,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *CleanupUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &CleanupUseCase{
		statusRepo: statusRepo,
		ttl:        ttl,
		logger:     logger,
		metrics:    businessMetrics,
		now:        time.Now,
	}
}

// Run performs one sweep over every reference index.
func (uc *CleanupUseCase) Run(ctx context.Context) (*CleanupReport, error) {
	started := uc.now()
	report := &CleanupReport{}

	indexKeys, err := uc.statusRepo.ScanKeys(ctx, repository.IndexKeyPrefix+"*")
	if err != nil {
		uc.metrics.RecordOperation(ctx, "webhook", "cleanup", "error")
		return nil, err
	}

	for _, indexKey := range indexKeys {
		referenceID := strings.TrimPrefix(indexKey, repository.IndexKeyPrefix)
		if err := uc.sweepReference(ctx, referenceID, report); err != nil {
			if apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			// One bad reference must not abort the whole sweep.
			uc.logger.Error("sweeping reference index",
				slog.String("reference_id", referenceID),
				slog.Any("error", err),
			)
		}
	}

	uc.metrics.RecordOperation(ctx, "webhook", "cleanup", "success")
	uc.metrics.RecordDuration(ctx, "webhook", "cleanup", uc.now().Sub(started), "success")
	uc.logger.Info("webhook status cleanup finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("evicted", report.Evicted),
		slog.Int("orphans_removed", report.Orphans),
	)
	return report, nil
}

func (uc *CleanupUseCase) sweepReference(ctx context.Context, referenceID string, report *CleanupReport) error {
	members, err := uc.statusRepo.IndexMembers(ctx, referenceID)
	if err != nil {
		return err
	}

	for _, webhookID := range members {
		report.Scanned++

		status, err := uc.statusRepo.Get(ctx, webhookID)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// The status key expired but its index membership survived.
			if err := uc.statusRepo.RemoveFromIndex(ctx, referenceID, webhookID); err != nil {
				return err
			}
			report.Orphans++
			continue
		}
		if err != nil {
			return err
		}

		if uc.expired(status) {
			if err := uc.statusRepo.Delete(ctx, webhookID); err != nil {
				return err
			}
			report.Evicted++
		}
	}
	return nil
}

func (uc *CleanupUseCase) expired(status *domain.WebhookStatus) bool {
	return uc.now().UTC().Sub(status.UpdatedAt) > uc.ttl.For(status.Status)
}
