package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
				assert.Equal(t, 4, cfg.DispatcherWorkers)
				assert.Equal(t, 1024, cfg.DispatcherQueueSize)
				assert.Equal(t, 3, cfg.WebhookMaxAttempts)
				assert.Equal(t, 5*time.Second, cfg.WebhookRetryBaseDelay)
				assert.Equal(t, 300*time.Second, cfg.WebhookRetryMaxDelay)
				assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
				assert.Equal(t, 30*time.Minute, cfg.WebhookTTLDelivered)
				assert.Equal(t, 168*time.Hour, cfg.WebhookTTLFailed)
				assert.Equal(t, 168*time.Hour, cfg.WebhookTTLPending)
				assert.Equal(t, 336*time.Hour, cfg.DeadLetterTTL)
				assert.Equal(t, 5, cfg.BreakerFailMax)
				assert.Equal(t, 60*time.Second, cfg.BreakerResetTimeout)
				assert.True(t, cfg.MetricsEnabled)
				assert.Equal(t, "firmvet", cfg.MetricsNamespace)
			},
		},
		{
			name: "load custom server configuration",
			envVars: map[string]string{
				"SERVER_HOST": "localhost",
				"SERVER_PORT": "9090",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost", cfg.ServerHost)
				assert.Equal(t, 9090, cfg.ServerPort)
			},
		},
		{
			name: "load custom retry policy",
			envVars: map[string]string{
				"WEBHOOK_MAX_ATTEMPTS":             "5",
				"WEBHOOK_RETRY_BASE_DELAY_SECONDS": "1",
				"WEBHOOK_RETRY_MAX_DELAY_SECONDS":  "60",
				"CLAIM_MAX_ATTEMPTS":               "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5, cfg.WebhookMaxAttempts)
				assert.Equal(t, 1*time.Second, cfg.WebhookRetryBaseDelay)
				assert.Equal(t, 60*time.Second, cfg.WebhookRetryMaxDelay)
				assert.Equal(t, 2, cfg.ClaimMaxAttempts)
			},
		},
		{
			name: "load custom breaker configuration",
			envVars: map[string]string{
				"BREAKER_FAIL_MAX":              "3",
				"BREAKER_RESET_TIMEOUT_SECONDS": "30",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.BreakerFailMax)
				assert.Equal(t, 30*time.Second, cfg.BreakerResetTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			cfg := Load()
			tt.validate(t, cfg)
		})
	}
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"unknown", "release"},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetGinMode())
		})
	}
}
