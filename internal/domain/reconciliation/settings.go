package reconciliation

import (
	"fmt"
	"math"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	// DefaultSuggestionLimit is the number of candidates offered to a reviewer
	DefaultSuggestionLimit = 3
	// MaxSuggestionLimit caps SuggestionLimit so a misconfigured host cannot request the whole pool
	MaxSuggestionLimit = 50
)

// ReconciliationSettings controls one reconciliation session.
// It is passed by value so sessions for different accounts can run
// concurrently with different tolerances.
type ReconciliationSettings struct {
	UseAutomaticMatching            bool            `json:"use_automatic_matching"`
	AmountTolerance                 decimal.Decimal `json:"amount_tolerance"`
	DateToleranceDays               int             `json:"date_tolerance_days"`
	MinimumConfidenceScore          float64         `json:"minimum_confidence_score"`
	RequireManualApproval           bool            `json:"require_manual_approval"`
	CreateAdjustmentsForDifferences bool            `json:"create_adjustments_for_differences"`

	// AdjustmentThreshold is the absolute amount below which a Needs-Review
	// pair is reported as a PartialAmountMismatch. It is a reporting
	// threshold and never widens the matching tolerance.
	AdjustmentThreshold decimal.Decimal `json:"adjustment_threshold"`
	// SuggestionLimit is the top-N handed to reviewers
	SuggestionLimit int `json:"suggestion_limit"`
}

// DefaultSettings returns the documented defaults
func DefaultSettings() ReconciliationSettings {
	return ReconciliationSettings{
		UseAutomaticMatching:            true,
		AmountTolerance:                 decimal.RequireFromString("1.00"),
		DateToleranceDays:               3,
		MinimumConfidenceScore:          0.80,
		RequireManualApproval:           false,
		CreateAdjustmentsForDifferences: false,
		AdjustmentThreshold:             decimal.RequireFromString("0.05"),
		SuggestionLimit:                 DefaultSuggestionLimit,
	}
}

// Validate rejects malformed settings before a session starts
func (s ReconciliationSettings) Validate() error {
	if s.AmountTolerance.IsNegative() {
		return shared.NewValidationError(fmt.Sprintf("amount tolerance must not be negative, got %s", s.AmountTolerance))
	}
	if s.DateToleranceDays < 0 {
		return shared.NewValidationError(fmt.Sprintf("date tolerance must not be negative, got %d", s.DateToleranceDays))
	}
	if math.IsNaN(s.MinimumConfidenceScore) || s.MinimumConfidenceScore < 0 || s.MinimumConfidenceScore > 1 {
		return shared.NewValidationError(fmt.Sprintf("minimum confidence score must be within [0,1], got %v", s.MinimumConfidenceScore))
	}
	if s.AdjustmentThreshold.IsNegative() {
		return shared.NewValidationError(fmt.Sprintf("adjustment threshold must not be negative, got %s", s.AdjustmentThreshold))
	}
	if s.SuggestionLimit < 0 || s.SuggestionLimit > MaxSuggestionLimit {
		return shared.NewValidationError(fmt.Sprintf("suggestion limit must be within [0,%d], got %d", MaxSuggestionLimit, s.SuggestionLimit))
	}
	return nil
}

// suggestionLimit returns the effective top-N; zero falls back to the default
func (s ReconciliationSettings) suggestionLimit() int {
	if s.SuggestionLimit <= 0 {
		return DefaultSuggestionLimit
	}
	return s.SuggestionLimit
}
