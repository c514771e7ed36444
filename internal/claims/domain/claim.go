// Package domain defines the core models for business compliance claims:
// the claim record itself, processing modes and the evaluation report.
package domain

import (
	"strings"
	"time"
)

// Mode selects which evaluation reviews run for a claim.
type Mode string

// Processing modes, from cheapest to most thorough.
const (
	ModeBasic    Mode = "basic"
	ModeExtended Mode = "extended"
	ModeComplete Mode = "complete"
)

// Valid reports whether the mode is one of the known processing modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeBasic, ModeExtended, ModeComplete:
		return true
	}
	return false
}

// SkipFlags controls which evaluation reviews are skipped for a claim.
type SkipFlags struct {
	SkipFinancials bool
	SkipLegal      bool
}

// SkipFlags maps a processing mode to its fixed review selection. Basic skips
// both optional reviews, extended adds the financial review, complete runs
// everything.
func (m Mode) SkipFlags() SkipFlags {
	switch m {
	case ModeExtended:
		return SkipFlags{SkipFinancials: false, SkipLegal: true}
	case ModeComplete:
		return SkipFlags{SkipFinancials: false, SkipLegal: false}
	default:
		return SkipFlags{SkipFinancials: true, SkipLegal: true}
	}
}

// Claim is one compliance evaluation request. ReferenceID is the caller's
// correlation key; at least one of the identifying fields (BusinessRef, TaxID,
// OrganizationCRD) must be present for an evaluation to be possible. Extra
// carries caller-supplied passthrough fields that are echoed into the report
// but never validated.
type Claim struct {
	ReferenceID     string         `json:"reference_id"`
	BusinessName    string         `json:"business_name,omitempty"`
	BusinessRef     string         `json:"business_ref,omitempty"`
	TaxID           string         `json:"tax_id,omitempty"`
	OrganizationCRD string         `json:"organization_crd,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// HasIdentifier reports whether the claim carries at least one identifying
// field.
func (c *Claim) HasIdentifier() bool {
	return strings.TrimSpace(c.BusinessRef) != "" ||
		strings.TrimSpace(c.TaxID) != "" ||
		strings.TrimSpace(c.OrganizationCRD) != ""
}

// Risk levels assigned by the final evaluation.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Alert flags a finding inside a report section.
type Alert struct {
	Type     string `json:"alert_type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Alert severities, ordered by weight.
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityHigh    = "HIGH"
)

// Section is one evaluated review inside a report.
type Section struct {
	Compliance  bool    `json:"compliance"`
	Explanation string  `json:"explanation"`
	Alerts      []Alert `json:"alerts,omitempty"`
}

// Report is the outcome of evaluating one claim.
type Report struct {
	ReferenceID       string             `json:"reference_id"`
	BusinessName      string             `json:"business_name,omitempty"`
	Claim             *Claim             `json:"claim"`
	Sections          map[string]Section `json:"sections"`
	SkippedSections   []string           `json:"skipped_sections,omitempty"`
	OverallCompliance bool               `json:"overall_compliance"`
	OverallRiskLevel  string             `json:"overall_risk_level"`
	GeneratedAt       time.Time          `json:"generated_at"`
}
