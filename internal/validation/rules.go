// Package validation provides custom validation rules for the application.
package validation

import (
	"net/url"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/firmvet/firmvet/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty or whitespace-only.
var NotBlank = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_not_blank_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_not_blank", "cannot be blank")
	}
	return nil
})

// WebhookURL validates that a string is an absolute http or https URL.
// Delivery to any other scheme is rejected before a job is created.
var WebhookURL = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_webhook_url_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_webhook_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_webhook_url_scheme", "must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_webhook_url_host", "must include a host")
	}
	return nil
})

// ProcessingMode validates that a string is a recognized evaluation mode.
var ProcessingMode = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_mode_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	switch s {
	case "basic", "extended", "complete":
		return nil
	default:
		return validation.NewError("validation_mode", "must be one of: basic, extended, complete")
	}
})
