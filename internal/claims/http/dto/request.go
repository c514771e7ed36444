// Package dto provides data transfer objects for the claims HTTP layer.
package dto

import (
	"encoding/json"

	validation "github.com/jellydator/validation"

	claimsDomain "github.com/firmvet/firmvet/internal/claims/domain"
	"github.com/firmvet/firmvet/internal/claims/usecase"
	appValidation "github.com/firmvet/firmvet/internal/validation"
)

// ProcessClaimRequest represents the API request for processing a claim. The
// named fields are the validated contract; any other key in the request body
// is collected into Extra and passed through to the evaluation untouched.
type ProcessClaimRequest struct {
	ReferenceID     string `json:"reference_id"`
	BusinessName    string `json:"business_name"`
	BusinessRef     string `json:"business_ref"`
	TaxID           string `json:"tax_id"`
	OrganizationCRD string `json:"organization_crd"`
	Mode            string `json:"mode"`
	WebhookURL      string `json:"webhook_url"`

	Extra map[string]any `json:"-"`
}

// knownKeys are the body keys owned by the named fields, everything else is
// passthrough.
var knownKeys = map[string]struct{}{
	"reference_id":     {},
	"business_name":    {},
	"business_ref":     {},
	"tax_id":           {},
	"organization_crd": {},
	"mode":             {},
	"webhook_url":      {},
}

// UnmarshalJSON decodes the named fields and collects unknown keys into Extra.
func (r *ProcessClaimRequest) UnmarshalJSON(data []byte) error {
	type alias ProcessClaimRequest
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range knownKeys {
		delete(all, key)
	}
	if len(all) == 0 {
		all = nil
	}

	*r = ProcessClaimRequest(known)
	r.Extra = all
	return nil
}

// Validate validates the ProcessClaimRequest. The identifying-field rule
// (at least one of business_ref, tax_id, organization_crd) is enforced by the
// use case, not here.
func (r *ProcessClaimRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.ReferenceID,
			validation.Required.Error("reference_id is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("reference_id must be between 1 and 255 characters"),
		),
		validation.Field(&r.Mode,
			validation.Required.Error("mode is required"),
			appValidation.ProcessingMode,
		),
		validation.Field(&r.WebhookURL,
			validation.When(r.WebhookURL != "", appValidation.WebhookURL),
		),
	)
	return appValidation.WrapValidationError(err)
}

// ToProcessPayload converts the request to its use case payload.
func (r *ProcessClaimRequest) ToProcessPayload(correlationID string) *usecase.ProcessPayload {
	return &usecase.ProcessPayload{
		Claim: claimsDomain.Claim{
			ReferenceID:     r.ReferenceID,
			BusinessName:    r.BusinessName,
			BusinessRef:     r.BusinessRef,
			TaxID:           r.TaxID,
			OrganizationCRD: r.OrganizationCRD,
			Extra:           r.Extra,
		},
		Mode:          claimsDomain.Mode(r.Mode),
		WebhookURL:    r.WebhookURL,
		CorrelationID: correlationID,
	}
}
