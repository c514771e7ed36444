// Package http provides the HTTP server: routing, middleware and health
// endpoints for the claim processing and webhook delivery APIs.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"

	claimsHTTP "github.com/firmvet/firmvet/internal/claims/http"
	"github.com/firmvet/firmvet/internal/config"
	"github.com/firmvet/firmvet/internal/metrics"
	webhookHTTP "github.com/firmvet/firmvet/internal/webhook/http"
)

// HealthChecker reports whether the backing infrastructure is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes and middleware wired.
func NewServer(
	cfg *config.Config,
	claimHandler *claimsHTTP.ClaimHandler,
	webhookHandler *webhookHTTP.WebhookHandler,
	health HealthChecker,
	meterProvider metric.MeterProvider,
	logger *slog.Logger,
) *Server {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))
	router.Use(gin.Recovery())

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if cfg.RateLimitEnabled {
		router.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, logger))
	}
	if meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(meterProvider, cfg.MetricsNamespace))
	}

	router.GET("/health", HealthHandler())
	router.GET("/ready", ReadinessHandler(health))

	router.POST("/process-claim", claimHandler.ProcessClaimHandler)
	router.GET("/task-status/:task_id", claimHandler.TaskStatusHandler)

	router.GET("/webhook-status/:webhook_id", webhookHandler.GetStatusHandler)
	router.GET("/webhook-statuses", webhookHandler.ListStatusesHandler)
	router.POST("/webhook-statuses/cleanup", webhookHandler.CleanupHandler)
	router.POST("/test-webhook", webhookHandler.TestWebhookHandler)

	return &Server{
		router: router,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
