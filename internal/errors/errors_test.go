package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/firmvet/firmvet/internal/errors"
)

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		base := apperrors.ErrNotFound
		wrapped := apperrors.Wrap(base, "loading webhook status")

		assert.Error(t, wrapped)
		assert.Contains(t, wrapped.Error(), "loading webhook status")
		assert.True(t, apperrors.Is(wrapped, apperrors.ErrNotFound))
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		assert.Nil(t, apperrors.Wrap(nil, "context"))
	})
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "invalid input",
			err:      apperrors.Wrap(apperrors.ErrInvalidInput, "no identifying field"),
			expected: apperrors.TypeValidation,
		},
		{
			name:     "permanent client error",
			err:      apperrors.ErrPermanentClient,
			expected: apperrors.TypePermanentClient,
		},
		{
			name:     "max retries exceeded",
			err:      apperrors.Wrap(apperrors.ErrMaxRetriesExceeded, "webhook delivery"),
			expected: apperrors.TypeMaxRetriesExceeded,
		},
		{
			name:     "dependency unavailable",
			err:      apperrors.ErrDependencyUnavailable,
			expected: apperrors.TypeDependencyUnhealthy,
		},
		{
			name:     "network error",
			err:      apperrors.Wrap(apperrors.ErrNetwork, "connection refused"),
			expected: apperrors.TypeNetwork,
		},
		{
			name:     "circuit open maps to network class",
			err:      apperrors.ErrCircuitOpen,
			expected: apperrors.TypeNetwork,
		},
		{
			name:     "anything else is unexpected",
			err:      stderrors.New("boom"),
			expected: apperrors.TypeUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apperrors.ClassifyType(tt.err))
		})
	}
}
