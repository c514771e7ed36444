// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the server will bind to.
	ServerHost string
	// ServerPort is the port number the server will listen on.
	ServerPort int

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// RedisURL is the connection URL for the Redis instance backing the status
	// store, the dead-letter sink and broker health checks.
	RedisURL string

	// DispatcherWorkers is the number of concurrent workers pulling jobs from
	// the dispatch queue.
	DispatcherWorkers int
	// DispatcherQueueSize is the capacity of the dispatch queue. Enqueue fails
	// fast once the queue is full instead of blocking the caller.
	DispatcherQueueSize int
	// DispatcherGiveUpAttempts is the framework-level attempt ceiling after
	// which the dispatcher stops re-scheduling a job and fires its give-up
	// hook. Set above the worker-level retry budgets so the hook only fires
	// when a worker's own accounting is bypassed.
	DispatcherGiveUpAttempts int
	// DispatcherStateRetention is how long terminal job states are kept for
	// polling before eviction.
	DispatcherStateRetention time.Duration

	// ClaimMaxAttempts is the retry budget for claim processing jobs.
	ClaimMaxAttempts int
	// ClaimRetryBaseDelay is the base delay for claim retry backoff.
	ClaimRetryBaseDelay time.Duration
	// ClaimRetryMaxDelay caps the claim retry backoff delay.
	ClaimRetryMaxDelay time.Duration
	// ClaimRetryJitter is the maximum uniform jitter added to claim backoff.
	ClaimRetryJitter time.Duration

	// WebhookMaxAttempts is the retry budget for webhook delivery jobs.
	WebhookMaxAttempts int
	// WebhookRetryBaseDelay is the base delay for webhook retry backoff.
	WebhookRetryBaseDelay time.Duration
	// WebhookRetryMaxDelay caps the webhook retry backoff delay.
	WebhookRetryMaxDelay time.Duration
	// WebhookRetryJitter is the maximum uniform jitter added to webhook backoff.
	WebhookRetryJitter time.Duration
	// WebhookTimeout bounds a single webhook delivery HTTP POST.
	WebhookTimeout time.Duration

	// WebhookTTLDelivered is the retention window for delivered statuses.
	WebhookTTLDelivered time.Duration
	// WebhookTTLFailed is the retention window for failed statuses.
	WebhookTTLFailed time.Duration
	// WebhookTTLPending is the retention window for pending, in-progress and
	// retrying statuses, so in-flight work survives transient restarts.
	WebhookTTLPending time.Duration
	// DeadLetterTTL is the retention window for dead-letter entries,
	// independent of the originating status record.
	DeadLetterTTL time.Duration

	// BreakerFailMax is the number of consecutive failures that opens the
	// evaluation circuit breaker.
	BreakerFailMax int
	// BreakerResetTimeout is how long the breaker stays open before allowing
	// a half-open probe.
	BreakerResetTimeout time.Duration

	// RateLimitEnabled indicates whether per-client rate limiting is enabled.
	RateLimitEnabled bool
	// RateLimitRequestsPerSec is the number of requests allowed per second per client.
	RateLimitRequestsPerSec float64
	// RateLimitBurst is the burst size for rate limiting.
	RateLimitBurst int

	// CORSEnabled indicates whether CORS is enabled.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Redis
		RedisURL: env.GetString("REDIS_URL", "redis://localhost:6379/0"),

		// Dispatcher
		DispatcherWorkers:        env.GetInt("DISPATCHER_WORKERS", 4),
		DispatcherQueueSize:      env.GetInt("DISPATCHER_QUEUE_SIZE", 1024),
		DispatcherGiveUpAttempts: env.GetInt("DISPATCHER_GIVE_UP_ATTEMPTS", 10),
		DispatcherStateRetention: env.GetDuration("DISPATCHER_STATE_RETENTION_MINUTES", 60, time.Minute),

		// Claim processing retry policy
		ClaimMaxAttempts:    env.GetInt("CLAIM_MAX_ATTEMPTS", 3),
		ClaimRetryBaseDelay: env.GetDuration("CLAIM_RETRY_BASE_DELAY_SECONDS", 2, time.Second),
		ClaimRetryMaxDelay:  env.GetDuration("CLAIM_RETRY_MAX_DELAY_SECONDS", 120, time.Second),
		ClaimRetryJitter:    env.GetDuration("CLAIM_RETRY_JITTER_SECONDS", 1, time.Second),

		// Webhook delivery retry policy
		WebhookMaxAttempts:    env.GetInt("WEBHOOK_MAX_ATTEMPTS", 3),
		WebhookRetryBaseDelay: env.GetDuration("WEBHOOK_RETRY_BASE_DELAY_SECONDS", 5, time.Second),
		WebhookRetryMaxDelay:  env.GetDuration("WEBHOOK_RETRY_MAX_DELAY_SECONDS", 300, time.Second),
		WebhookRetryJitter:    env.GetDuration("WEBHOOK_RETRY_JITTER_SECONDS", 2, time.Second),
		WebhookTimeout:        env.GetDuration("WEBHOOK_TIMEOUT_SECONDS", 10, time.Second),

		// Retention windows
		WebhookTTLDelivered: env.GetDuration("WEBHOOK_TTL_DELIVERED_MINUTES", 30, time.Minute),
		WebhookTTLFailed:    env.GetDuration("WEBHOOK_TTL_FAILED_HOURS", 168, time.Hour),
		WebhookTTLPending:   env.GetDuration("WEBHOOK_TTL_PENDING_HOURS", 168, time.Hour),
		DeadLetterTTL:       env.GetDuration("DEAD_LETTER_TTL_HOURS", 336, time.Hour),

		// Circuit breaker
		BreakerFailMax:      env.GetInt("BREAKER_FAIL_MAX", 5),
		BreakerResetTimeout: env.GetDuration("BREAKER_RESET_TIMEOUT_SECONDS", 60, time.Second),

		// Rate Limiting
		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", false),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 10.0),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 20),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "firmvet"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	case "info", "warn", "error":
		return "release"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}
