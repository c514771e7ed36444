package app

import (
	"fmt"
	"sync"

	"github.com/firmvet/firmvet/internal/dispatch"
	webhookHTTP "github.com/firmvet/firmvet/internal/webhook/http"
	webhookRepository "github.com/firmvet/firmvet/internal/webhook/repository"
	webhookUsecase "github.com/firmvet/firmvet/internal/webhook/usecase"
)

// webhookComponents groups the webhook delivery module dependencies.
type webhookComponents struct {
	statusRepoInit     sync.Once
	deadLetterRepoInit sync.Once
	deliveryInit       sync.Once
	statusInit         sync.Once
	cleanupInit        sync.Once
	handlerInit        sync.Once

	statusRepo     *webhookRepository.RedisStatusRepository
	deadLetterRepo *webhookRepository.RedisDeadLetterRepository
	delivery       *webhookUsecase.DeliveryUseCase
	status         *webhookUsecase.StatusUseCase
	cleanup        *webhookUsecase.CleanupUseCase
	handler        *webhookHTTP.WebhookHandler
}

// webhookTTLPolicy maps the configured retention windows to the repository
// policy.
func (c *Container) webhookTTLPolicy() webhookRepository.TTLPolicy {
	return webhookRepository.TTLPolicy{
		Delivered: c.config.WebhookTTLDelivered,
		Failed:    c.config.WebhookTTLFailed,
		Pending:   c.config.WebhookTTLPending,
	}
}

// StatusRepository returns the Redis webhook status repository.
func (c *Container) StatusRepository() (*webhookRepository.RedisStatusRepository, error) {
	c.webhook.statusRepoInit.Do(func() {
		client, err := c.RedisClient()
		if err != nil {
			c.initErrors["statusRepo"] = fmt.Errorf("failed to get redis client for status repository: %w", err)
			return
		}
		c.webhook.statusRepo = webhookRepository.NewRedisStatusRepository(client, c.webhookTTLPolicy())
	})
	if storedErr, exists := c.initErrors["statusRepo"]; exists {
		return nil, storedErr
	}
	return c.webhook.statusRepo, nil
}

// DeadLetterRepository returns the Redis dead-letter repository.
func (c *Container) DeadLetterRepository() (*webhookRepository.RedisDeadLetterRepository, error) {
	c.webhook.deadLetterRepoInit.Do(func() {
		client, err := c.RedisClient()
		if err != nil {
			c.initErrors["deadLetterRepo"] = fmt.Errorf("failed to get redis client for dead-letter repository: %w", err)
			return
		}
		c.webhook.deadLetterRepo = webhookRepository.NewRedisDeadLetterRepository(client, c.config.DeadLetterTTL)
	})
	if storedErr, exists := c.initErrors["deadLetterRepo"]; exists {
		return nil, storedErr
	}
	return c.webhook.deadLetterRepo, nil
}

// DeliveryUseCase returns the webhook delivery use case.
func (c *Container) DeliveryUseCase() (*webhookUsecase.DeliveryUseCase, error) {
	c.webhook.deliveryInit.Do(func() {
		useCase, err := c.initDeliveryUseCase()
		if err != nil {
			c.initErrors["deliveryUseCase"] = err
			return
		}
		c.webhook.delivery = useCase
	})
	if storedErr, exists := c.initErrors["deliveryUseCase"]; exists {
		return nil, storedErr
	}
	return c.webhook.delivery, nil
}

// StatusUseCase returns the webhook status use case.
func (c *Container) StatusUseCase() (*webhookUsecase.StatusUseCase, error) {
	c.webhook.statusInit.Do(func() {
		statusRepo, err := c.StatusRepository()
		if err != nil {
			c.initErrors["statusUseCase"] = fmt.Errorf("failed to get status repository for status use case: %w", err)
			return
		}
		dispatcher, err := c.Dispatcher()
		if err != nil {
			c.initErrors["statusUseCase"] = fmt.Errorf("failed to get dispatcher for status use case: %w", err)
			return
		}
		c.webhook.status = webhookUsecase.NewStatusUseCase(statusRepo, dispatcher, c.Logger())
	})
	if storedErr, exists := c.initErrors["statusUseCase"]; exists {
		return nil, storedErr
	}
	return c.webhook.status, nil
}

// CleanupUseCase returns the webhook cleanup use case.
func (c *Container) CleanupUseCase() (*webhookUsecase.CleanupUseCase, error) {
	c.webhook.cleanupInit.Do(func() {
		statusRepo, err := c.StatusRepository()
		if err != nil {
			c.initErrors["cleanupUseCase"] = fmt.Errorf("failed to get status repository for cleanup use case: %w", err)
			return
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["cleanupUseCase"] = fmt.Errorf("failed to get business metrics for cleanup use case: %w", err)
			return
		}
		c.webhook.cleanup = webhookUsecase.NewCleanupUseCase(statusRepo, c.webhookTTLPolicy(), businessMetrics, c.Logger())
	})
	if storedErr, exists := c.initErrors["cleanupUseCase"]; exists {
		return nil, storedErr
	}
	return c.webhook.cleanup, nil
}

// WebhookHandler returns the webhook HTTP handler.
func (c *Container) WebhookHandler() (*webhookHTTP.WebhookHandler, error) {
	c.webhook.handlerInit.Do(func() {
		handler, err := c.initWebhookHandler()
		if err != nil {
			c.initErrors["webhookHandler"] = err
			return
		}
		c.webhook.handler = handler
	})
	if storedErr, exists := c.initErrors["webhookHandler"]; exists {
		return nil, storedErr
	}
	return c.webhook.handler, nil
}

// initDeliveryUseCase creates the delivery use case with all its dependencies.
func (c *Container) initDeliveryUseCase() (*webhookUsecase.DeliveryUseCase, error) {
	statusRepo, err := c.StatusRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get status repository for delivery use case: %w", err)
	}

	deadLetterRepo, err := c.DeadLetterRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead-letter repository for delivery use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for delivery use case: %w", err)
	}

	useCaseConfig := webhookUsecase.DeliveryConfig{
		MaxAttempts: c.config.WebhookMaxAttempts,
		Backoff: dispatch.Backoff{
			Base:   c.config.WebhookRetryBaseDelay,
			Max:    c.config.WebhookRetryMaxDelay,
			Jitter: c.config.WebhookRetryJitter,
		},
		Timeout: c.config.WebhookTimeout,
	}

	useCase := webhookUsecase.NewDeliveryUseCase(
		useCaseConfig,
		statusRepo,
		deadLetterRepo,
		nil,
		businessMetrics,
		c.Logger(),
	)

	return useCase, nil
}

// initWebhookHandler creates the webhook HTTP handler with its dependencies.
func (c *Container) initWebhookHandler() (*webhookHTTP.WebhookHandler, error) {
	statusUseCase, err := c.StatusUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get status use case for webhook handler: %w", err)
	}

	cleanupUseCase, err := c.CleanupUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get cleanup use case for webhook handler: %w", err)
	}

	return webhookHTTP.NewWebhookHandler(statusUseCase, cleanupUseCase, c.Logger()), nil
}
