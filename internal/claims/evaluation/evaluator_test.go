package evaluation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claimsDomain "github.com/firmvet/firmvet/internal/claims/domain"
	apperrors "github.com/firmvet/firmvet/internal/errors"
)

func newEvaluator() *RuleEvaluator {
	return NewRuleEvaluator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRuleEvaluator_Evaluate(t *testing.T) {
	t.Run("Success_CompliantBasicMode", func(t *testing.T) {
		e := newEvaluator()
		claim := &claimsDomain.Claim{
			ReferenceID:     "claim-1",
			BusinessName:    "Acme Advisors",
			OrganizationCRD: "123456",
		}

		report, err := e.Evaluate(context.Background(), claim, claimsDomain.ModeBasic.SkipFlags())

		require.NoError(t, err)
		assert.True(t, report.OverallCompliance)
		assert.Equal(t, claimsDomain.RiskLow, report.OverallRiskLevel)
		assert.Contains(t, report.Sections, SectionSearch)
		assert.Contains(t, report.Sections, SectionRegistration)
		assert.NotContains(t, report.Sections, SectionFinancial)
		assert.NotContains(t, report.Sections, SectionLegal)
		assert.ElementsMatch(t, []string{SectionFinancial, SectionLegal}, report.SkippedSections)
	})

	t.Run("Success_CompleteModeRunsAllReviews", func(t *testing.T) {
		e := newEvaluator()
		claim := &claimsDomain.Claim{
			ReferenceID:     "claim-2",
			OrganizationCRD: "123456",
		}

		report, err := e.Evaluate(context.Background(), claim, claimsDomain.ModeComplete.SkipFlags())

		require.NoError(t, err)
		assert.Len(t, report.Sections, 4)
		assert.Empty(t, report.SkippedSections)
	})

	t.Run("Success_ExtendedModeSkipsLegalOnly", func(t *testing.T) {
		e := newEvaluator()
		claim := &claimsDomain.Claim{
			ReferenceID: "claim-3",
			BusinessRef: "BIZ_001",
		}

		report, err := e.Evaluate(context.Background(), claim, claimsDomain.ModeExtended.SkipFlags())

		require.NoError(t, err)
		assert.Contains(t, report.Sections, SectionFinancial)
		assert.NotContains(t, report.Sections, SectionLegal)
		assert.Equal(t, []string{SectionLegal}, report.SkippedSections)
	})

	t.Run("Success_TaxIDOnlyRaisesWarning", func(t *testing.T) {
		e := newEvaluator()
		claim := &claimsDomain.Claim{
			ReferenceID: "claim-4",
			TaxID:       "12-3456789",
		}

		report, err := e.Evaluate(context.Background(), claim, claimsDomain.ModeBasic.SkipFlags())

		require.NoError(t, err)
		assert.True(t, report.OverallCompliance)
		assert.Equal(t, claimsDomain.RiskMedium, report.OverallRiskLevel)
		require.Len(t, report.Sections[SectionSearch].Alerts, 1)
		assert.Equal(t, "WeakIdentification", report.Sections[SectionSearch].Alerts[0].Type)
	})

	t.Run("Success_TerminatedRegistrationFailsCompliance", func(t *testing.T) {
		e := newEvaluator()
		claim := &claimsDomain.Claim{
			ReferenceID:     "claim-5",
			OrganizationCRD: "123456",
			Extra:           map[string]any{"registration_status": "terminated"},
		}

		report, err := e.Evaluate(context.Background(), claim, claimsDomain.ModeBasic.SkipFlags())

		require.NoError(t, err)
		assert.False(t, report.OverallCompliance)
		assert.Equal(t, claimsDomain.RiskHigh, report.OverallRiskLevel)
		assert.False(t, report.Sections[SectionRegistration].Compliance)
	})

	t.Run("Success_DisclosuresFailReviews", func(t *testing.T) {
		e := newEvaluator()
		claim := &claimsDomain.Claim{
			ReferenceID:     "claim-6",
			OrganizationCRD: "123456",
			Extra: map[string]any{
				// JSON numbers arrive as float64.
				"financial_disclosures": float64(2),
				"legal_disclosures":     float64(0),
			},
		}

		report, err := e.Evaluate(context.Background(), claim, claimsDomain.ModeComplete.SkipFlags())

		require.NoError(t, err)
		assert.False(t, report.OverallCompliance)
		assert.Equal(t, claimsDomain.RiskHigh, report.OverallRiskLevel)
		assert.False(t, report.Sections[SectionFinancial].Compliance)
		assert.True(t, report.Sections[SectionLegal].Compliance)
	})

	t.Run("Error_NoIdentifyingField", func(t *testing.T) {
		e := newEvaluator()
		claim := &claimsDomain.Claim{ReferenceID: "claim-7", BusinessName: "Acme"}

		_, err := e.Evaluate(context.Background(), claim, claimsDomain.ModeBasic.SkipFlags())

		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
