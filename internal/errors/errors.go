// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers, and to failure
// classifications (retryable vs terminal) by workers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	// Workers never retry this class of error.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDependencyUnavailable indicates a backing dependency (queue broker,
	// status store) is unreachable. Fail fast instead of retrying into a dead
	// dependency.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrCircuitOpen indicates the circuit breaker rejected the call without
	// invoking the protected function.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrNetwork indicates a network-class failure (timeout, connection
	// refused). Retried with exponential backoff up to the attempt budget.
	ErrNetwork = errors.New("network error")

	// ErrPermanentClient indicates a webhook endpoint answered with a 4xx twice.
	// Never retried further.
	ErrPermanentClient = errors.New("permanent client error")

	// ErrMaxRetriesExceeded indicates the retry budget is exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrQueueFull indicates the dispatcher queue cannot accept more jobs.
	ErrQueueFull = errors.New("queue full")
)

// Error type labels used in persisted statuses, dead-letter entries and API
// responses. Kept stable for compatibility with stored records.
const (
	TypeValidation          = "validation_error"
	TypeNetwork             = "network_error"
	TypePermanentClient     = "permanent_client_error"
	TypeUnexpected          = "unexpected_error"
	TypeMaxRetriesExceeded  = "max_retries_exceeded"
	TypeDependencyUnhealthy = "dependency_unavailable"
)

// ClassifyType maps an error to its persisted error-type label.
func ClassifyType(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrInvalidInput):
		return TypeValidation
	case Is(err, ErrPermanentClient):
		return TypePermanentClient
	case Is(err, ErrMaxRetriesExceeded):
		return TypeMaxRetriesExceeded
	case Is(err, ErrDependencyUnavailable):
		return TypeDependencyUnhealthy
	case Is(err, ErrNetwork), Is(err, ErrCircuitOpen):
		return TypeNetwork
	default:
		return TypeUnexpected
	}
}

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
