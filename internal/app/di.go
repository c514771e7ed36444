// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"

	"github.com/firmvet/firmvet/internal/config"
	"github.com/firmvet/firmvet/internal/dispatch"
	"github.com/firmvet/firmvet/internal/http"
	"github.com/firmvet/firmvet/internal/metrics"
	"github.com/firmvet/firmvet/internal/redisclient"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	redisClient     *redis.Client
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	dispatcher      *dispatch.Dispatcher

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Module components, initialized in di_claims.go and di_webhook.go
	claims  claimsComponents
	webhook webhookComponents

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	redisClientInit     sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	dispatcherInit      sync.Once
	workerInit          sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// RedisClient returns the Redis client backing status records, dead letters
// and task states.
func (c *Container) RedisClient() (*redis.Client, error) {
	c.redisClientInit.Do(func() {
		client, err := redisclient.New(c.config.RedisURL)
		if err != nil {
			c.initErrors["redisClient"] = err
			return
		}
		c.redisClient = client
	})
	if storedErr, exists := c.initErrors["redisClient"]; exists {
		return nil, storedErr
	}
	return c.redisClient, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider. It returns nil
// without error when metrics are disabled in configuration.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	c.metricsProviderInit.Do(func() {
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It falls back to a
// no-op recorder when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		businessMetrics, err := c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		c.businessMetrics = businessMetrics
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Dispatcher returns the in-process job dispatcher. Handler registration
// happens separately, through Worker.
func (c *Container) Dispatcher() (*dispatch.Dispatcher, error) {
	c.dispatcherInit.Do(func() {
		dispatcher, err := c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
			return
		}
		c.dispatcher = dispatcher
	})
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// Worker returns the dispatcher with the claim processing and webhook
// delivery handlers registered, ready to Start.
func (c *Container) Worker() (*dispatch.Dispatcher, error) {
	c.workerInit.Do(func() {
		if err := c.initWorker(); err != nil {
			c.initErrors["worker"] = err
		}
	})
	if storedErr, exists := c.initErrors["worker"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance. It returns nil without
// error when metrics are disabled in configuration.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	c.metricsServerInit.Do(func() {
		server, err := c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		c.metricsServer = server
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Flush the metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close the Redis client if initialized
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return businessMetrics, nil
}

// initDispatcher creates the dispatcher with the Redis task state recorder.
func (c *Container) initDispatcher() (*dispatch.Dispatcher, error) {
	taskRepo, err := c.TaskRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get task repository for dispatcher: %w", err)
	}

	dispatcherConfig := dispatch.Config{
		Workers:        c.config.DispatcherWorkers,
		QueueSize:      c.config.DispatcherQueueSize,
		GiveUpAttempts: c.config.DispatcherGiveUpAttempts,
		StateRetention: c.config.DispatcherStateRetention,
	}

	return dispatch.New(dispatcherConfig, taskRepo, c.Logger()), nil
}

// initWorker registers the job handlers on the dispatcher.
func (c *Container) initWorker() error {
	dispatcher, err := c.Dispatcher()
	if err != nil {
		return fmt.Errorf("failed to get dispatcher for worker: %w", err)
	}

	claimUseCase, err := c.ClaimUseCase()
	if err != nil {
		return fmt.Errorf("failed to get claim use case for worker: %w", err)
	}

	deliveryUseCase, err := c.DeliveryUseCase()
	if err != nil {
		return fmt.Errorf("failed to get delivery use case for worker: %w", err)
	}

	dispatcher.RegisterHandler(claimUseCase)
	dispatcher.RegisterHandler(deliveryUseCase)
	return nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	claimHandler, err := c.ClaimHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get claim handler for http server: %w", err)
	}

	webhookHandler, err := c.WebhookHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook handler for http server: %w", err)
	}

	health, err := c.HealthChecker()
	if err != nil {
		return nil, fmt.Errorf("failed to get health checker for http server: %w", err)
	}

	var meterProvider metric.MeterProvider
	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		meterProvider = provider.MeterProvider()
	}

	server := http.NewServer(
		c.config,
		claimHandler,
		webhookHandler,
		health,
		meterProvider,
		logger,
	)

	return server, nil
}

// initMetricsServer creates the metrics server with its provider.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	server := http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		provider,
	)

	return server, nil
}
