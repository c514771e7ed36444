package app

import (
	"fmt"
	"sync"

	"github.com/firmvet/firmvet/internal/breaker"
	"github.com/firmvet/firmvet/internal/claims/evaluation"
	claimsHTTP "github.com/firmvet/firmvet/internal/claims/http"
	claimsRepository "github.com/firmvet/firmvet/internal/claims/repository"
	claimsUsecase "github.com/firmvet/firmvet/internal/claims/usecase"
	"github.com/firmvet/firmvet/internal/dispatch"
	"github.com/firmvet/firmvet/internal/redisclient"
)

// claimsComponents groups the claim processing module dependencies.
type claimsComponents struct {
	taskRepoInit sync.Once
	breakerInit  sync.Once
	healthInit   sync.Once
	useCaseInit  sync.Once
	handlerInit  sync.Once

	taskRepo *claimsRepository.RedisTaskRepository
	breaker  *breaker.Breaker
	health   *redisclient.Health
	useCase  *claimsUsecase.ClaimUseCase
	handler  *claimsHTTP.ClaimHandler
}

// TaskRepository returns the Redis task state repository. It doubles as the
// dispatcher's state recorder and the task status read model.
func (c *Container) TaskRepository() (*claimsRepository.RedisTaskRepository, error) {
	c.claims.taskRepoInit.Do(func() {
		client, err := c.RedisClient()
		if err != nil {
			c.initErrors["taskRepo"] = fmt.Errorf("failed to get redis client for task repository: %w", err)
			return
		}
		c.claims.taskRepo = claimsRepository.NewRedisTaskRepository(
			client,
			c.config.DispatcherStateRetention,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["taskRepo"]; exists {
		return nil, storedErr
	}
	return c.claims.taskRepo, nil
}

// HealthChecker returns the Redis-backed health checker used by the readiness
// endpoint and the claim worker's pre-flight check.
func (c *Container) HealthChecker() (*redisclient.Health, error) {
	c.claims.healthInit.Do(func() {
		client, err := c.RedisClient()
		if err != nil {
			c.initErrors["healthChecker"] = fmt.Errorf("failed to get redis client for health checker: %w", err)
			return
		}
		c.claims.health = redisclient.NewHealth(client)
	})
	if storedErr, exists := c.initErrors["healthChecker"]; exists {
		return nil, storedErr
	}
	return c.claims.health, nil
}

// EvaluationBreaker returns the circuit breaker guarding claim evaluation.
func (c *Container) EvaluationBreaker() *breaker.Breaker {
	c.claims.breakerInit.Do(func() {
		c.claims.breaker = breaker.New(
			"evaluation",
			c.config.BreakerFailMax,
			c.config.BreakerResetTimeout,
			c.Logger(),
		)
	})
	return c.claims.breaker
}

// ClaimUseCase returns the claim processing use case.
func (c *Container) ClaimUseCase() (*claimsUsecase.ClaimUseCase, error) {
	c.claims.useCaseInit.Do(func() {
		useCase, err := c.initClaimUseCase()
		if err != nil {
			c.initErrors["claimUseCase"] = err
			return
		}
		c.claims.useCase = useCase
	})
	if storedErr, exists := c.initErrors["claimUseCase"]; exists {
		return nil, storedErr
	}
	return c.claims.useCase, nil
}

// ClaimHandler returns the claim HTTP handler.
func (c *Container) ClaimHandler() (*claimsHTTP.ClaimHandler, error) {
	c.claims.handlerInit.Do(func() {
		handler, err := c.initClaimHandler()
		if err != nil {
			c.initErrors["claimHandler"] = err
			return
		}
		c.claims.handler = handler
	})
	if storedErr, exists := c.initErrors["claimHandler"]; exists {
		return nil, storedErr
	}
	return c.claims.handler, nil
}

// initClaimUseCase creates the claim use case with all its dependencies.
func (c *Container) initClaimUseCase() (*claimsUsecase.ClaimUseCase, error) {
	health, err := c.HealthChecker()
	if err != nil {
		return nil, fmt.Errorf("failed to get health checker for claim use case: %w", err)
	}

	dispatcher, err := c.Dispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher for claim use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for claim use case: %w", err)
	}

	useCaseConfig := claimsUsecase.ClaimConfig{
		MaxAttempts: c.config.ClaimMaxAttempts,
		Backoff: dispatch.Backoff{
			Base:   c.config.ClaimRetryBaseDelay,
			Max:    c.config.ClaimRetryMaxDelay,
			Jitter: c.config.ClaimRetryJitter,
		},
	}

	useCase := claimsUsecase.NewClaimUseCase(
		useCaseConfig,
		evaluation.NewRuleEvaluator(c.Logger()),
		c.EvaluationBreaker(),
		health,
		dispatcher,
		businessMetrics,
		c.Logger(),
	)

	return useCase, nil
}

// initClaimHandler creates the claim HTTP handler with its dependencies.
func (c *Container) initClaimHandler() (*claimsHTTP.ClaimHandler, error) {
	useCase, err := c.ClaimUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get claim use case for claim handler: %w", err)
	}

	taskRepo, err := c.TaskRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get task repository for claim handler: %w", err)
	}

	return claimsHTTP.NewClaimHandler(useCase, taskRepo, c.Logger()), nil
}
