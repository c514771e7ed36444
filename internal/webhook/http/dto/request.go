// Package dto provides data transfer objects for the webhook HTTP layer.
package dto

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/firmvet/firmvet/internal/validation"
)

// TestWebhookRequest represents the API request for a manual test delivery.
type TestWebhookRequest struct {
	WebhookURL  string `json:"webhook_url"`
	ReferenceID string `json:"reference_id"`
}

// Validate validates the TestWebhookRequest.
func (r *TestWebhookRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.WebhookURL,
			validation.Required.Error("webhook_url is required"),
			appValidation.WebhookURL,
		),
		validation.Field(&r.ReferenceID,
			validation.Required.Error("reference_id is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("reference_id must be between 1 and 255 characters"),
		),
	)
	return appValidation.WrapValidationError(err)
}
