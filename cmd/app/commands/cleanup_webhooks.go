package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/firmvet/firmvet/internal/app"
	"github.com/firmvet/firmvet/internal/config"
	webhookUsecase "github.com/firmvet/firmvet/internal/webhook/usecase"
)

// CleanupRunner runs one sweep over the webhook status keyspace.
type CleanupRunner interface {
	Run(ctx context.Context) (*webhookUsecase.CleanupReport, error)
}

// RunCleanupWebhooks sweeps expired webhook status records and orphaned index
// entries, then prints a report in text or JSON format.
func RunCleanupWebhooks(ctx context.Context, format string) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get cleanup use case from container
	cleanupUseCase, err := container.CleanupUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize cleanup use case: %w", err)
	}

	return CleanupWebhooks(ctx, cleanupUseCase, logger, os.Stdout, format)
}

// CleanupWebhooks executes the sweep and writes the report to out.
func CleanupWebhooks(ctx context.Context, useCase CleanupRunner, logger *slog.Logger, out io.Writer, format string) error {
	logger.Info("sweeping webhook statuses")

	report, err := useCase.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep webhook statuses: %w", err)
	}

	// Output result based on format
	if format == "json" {
		if err := outputCleanupJSON(out, report); err != nil {
			return err
		}
	} else {
		outputCleanupText(out, report)
	}

	logger.Info("sweep completed",
		slog.Int("scanned", report.Scanned),
		slog.Int("evicted", report.Evicted),
		slog.Int("orphans_removed", report.Orphans),
	)

	return nil
}

// outputCleanupText writes the report in human-readable text format.
func outputCleanupText(out io.Writer, report *webhookUsecase.CleanupReport) {
	fmt.Fprintf(out, "Scanned %d webhook status record(s): evicted %d expired, removed %d orphaned index entr(y/ies)\n",
		report.Scanned, report.Evicted, report.Orphans)
}

// outputCleanupJSON writes the report in JSON format for machine consumption.
func outputCleanupJSON(out io.Writer, report *webhookUsecase.CleanupReport) error {
	jsonBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(out, string(jsonBytes))
	return nil
}
