// Package evaluation implements the built-in rule engine that turns a claim
// into a compliance report. Reviews read the claim's structured fields plus
// well-known passthrough keys; unknown passthrough data is echoed untouched.
package evaluation

import (
	"context"
	"log/slog"
	"time"

	claimsDomain "github.com/firmvet/firmvet/internal/claims/domain"
	apperrors "github.com/firmvet/firmvet/internal/errors"
)

// Section names used in reports.
const (
	SectionSearch       = "search_evaluation"
	SectionRegistration = "registration_status"
	SectionFinancial    = "financial_review"
	SectionLegal        = "legal_review"
)

// Passthrough keys the reviews understand.
const (
	keyRegistrationStatus  = "registration_status"
	keyFinancialDisclosure = "financial_disclosures"
	keyLegalDisclosure     = "legal_disclosures"
)

// RuleEvaluator evaluates claims with fixed compliance rules.
type RuleEvaluator struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewRuleEvaluator creates a new RuleEvaluator.
func NewRuleEvaluator(logger *slog.Logger) *RuleEvaluator {
	return &RuleEvaluator{logger: logger, now: time.Now}
}

// Evaluate runs the reviews selected by the skip flags and assembles the
// report. The claim must already carry at least one identifying field.
func (e *RuleEvaluator) Evaluate(
	ctx context.Context,
	claim *claimsDomain.Claim,
	flags claimsDomain.SkipFlags,
) (*claimsDomain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !claim.HasIdentifier() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "claim has no identifying field")
	}

	report := &claimsDomain.Report{
		ReferenceID:  claim.ReferenceID,
		BusinessName: claim.BusinessName,
		Claim:        claim,
		Sections:     map[string]claimsDomain.Section{},
		GeneratedAt:  e.now().UTC(),
	}

	report.Sections[SectionSearch] = e.searchEvaluation(claim)
	report.Sections[SectionRegistration] = e.registrationStatus(claim)

	if flags.SkipFinancials {
		report.SkippedSections = append(report.SkippedSections, SectionFinancial)
	} else {
		report.Sections[SectionFinancial] = e.disclosureReview(claim, keyFinancialDisclosure, "financial")
	}
	if flags.SkipLegal {
		report.SkippedSections = append(report.SkippedSections, SectionLegal)
	} else {
		report.Sections[SectionLegal] = e.disclosureReview(claim, keyLegalDisclosure, "legal")
	}

	e.finalize(report)

	e.logger.Debug("claim evaluated",
		slog.String("reference_id", claim.ReferenceID),
		slog.Bool("overall_compliance", report.OverallCompliance),
		slog.String("overall_risk_level", report.OverallRiskLevel),
	)
	return report, nil
}

// searchEvaluation checks how strongly the claim identifies a business.
func (e *RuleEvaluator) searchEvaluation(claim *claimsDomain.Claim) claimsDomain.Section {
	section := claimsDomain.Section{Compliance: true, Explanation: "business record resolved"}

	if claim.OrganizationCRD == "" && claim.BusinessRef == "" {
		section.Alerts = append(section.Alerts, claimsDomain.Alert{
			Type:     "WeakIdentification",
			Severity: claimsDomain.SeverityWarning,
			Message:  "record matched by tax id only; supply organization_crd or business_ref for a stronger match",
		})
		section.Explanation = "business record resolved by tax id only"
	}
	return section
}

// registrationStatus verifies the business is in an operable registration
// state. Missing data counts as active; the caller asserts what it knows.
func (e *RuleEvaluator) registrationStatus(claim *claimsDomain.Claim) claimsDomain.Section {
	status, _ := claim.Extra[keyRegistrationStatus].(string)

	switch status {
	case "terminated", "revoked":
		return claimsDomain.Section{
			Compliance:  false,
			Explanation: "registration is " + status,
			Alerts: []claimsDomain.Alert{{
				Type:     "RegistrationTerminated",
				Severity: claimsDomain.SeverityHigh,
				Message:  "business registration is " + status,
			}},
		}
	case "suspended":
		return claimsDomain.Section{
			Compliance:  false,
			Explanation: "registration is suspended",
			Alerts: []claimsDomain.Alert{{
				Type:     "RegistrationSuspended",
				Severity: claimsDomain.SeverityWarning,
				Message:  "business registration is suspended",
			}},
		}
	default:
		return claimsDomain.Section{Compliance: true, Explanation: "registration is active"}
	}
}

// disclosureReview counts reported disclosures of one kind. Any disclosure
// fails the review.
func (e *RuleEvaluator) disclosureReview(claim *claimsDomain.Claim, key, kind string) claimsDomain.Section {
	count := 0
	switch v := claim.Extra[key].(type) {
	case float64:
		count = int(v)
	case int:
		count = v
	}

	if count > 0 {
		return claimsDomain.Section{
			Compliance:  false,
			Explanation: "disclosures on record",
			Alerts: []claimsDomain.Alert{{
				Type:     "DisclosureOnRecord",
				Severity: claimsDomain.SeverityHigh,
				Message:  kind + " disclosures reported for this business",
			}},
		}
	}
	return claimsDomain.Section{Compliance: true, Explanation: "no " + kind + " disclosures on record"}
}

// finalize derives the overall compliance and risk level from the sections.
func (e *RuleEvaluator) finalize(report *claimsDomain.Report) {
	report.OverallCompliance = true
	risk := claimsDomain.RiskLow

	for _, section := range report.Sections {
		if !section.Compliance {
			report.OverallCompliance = false
		}
		for _, alert := range section.Alerts {
			switch alert.Severity {
			case claimsDomain.SeverityHigh:
				risk = claimsDomain.RiskHigh
			case claimsDomain.SeverityWarning:
				if risk == claimsDomain.RiskLow {
					risk = claimsDomain.RiskMedium
				}
			}
		}
	}

	report.OverallRiskLevel = risk
}
