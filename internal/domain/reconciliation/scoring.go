package reconciliation

import (
	"math"

	"github.com/erp/reconciler/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// MatchType classifies how a pair was matched
type MatchType string

const (
	MatchTypeExact MatchType = "EXACT"
	MatchTypeFuzzy MatchType = "FUZZY"
	// MatchTypeManualOnly marks a scored pair below the confidence threshold.
	// It may be suggested to a reviewer but never assigned automatically.
	MatchTypeManualOnly MatchType = "MANUAL_ONLY"
	// MatchTypeManual marks an operator-created match
	MatchTypeManual MatchType = "MANUAL"
)

// IsValid checks if the match type is valid
func (t MatchType) IsValid() bool {
	switch t {
	case MatchTypeExact, MatchTypeFuzzy, MatchTypeManualOnly, MatchTypeManual:
		return true
	}
	return false
}

// String returns the string representation
func (t MatchType) String() string {
	return string(t)
}

// Scoring weights
const (
	AmountWeight    = 0.5
	DateWeight      = 0.3
	ReferenceWeight = 0.2

	// ExactReferenceThreshold is the reference similarity an Exact match needs
	ExactReferenceThreshold = 0.8

	// confidence is rounded to four decimals
	confidenceScale = 1e4
)

// ScoredCandidate is a candidate with its confidence breakdown
type ScoredCandidate struct {
	Candidate
	AmountScore    float64
	DateScore      float64
	ReferenceScore float64
	Confidence     float64
	MatchType      MatchType
}

// AutoEligible reports whether the pair may be assigned automatically
func (c ScoredCandidate) AutoEligible() bool {
	return c.MatchType == MatchTypeExact || c.MatchType == MatchTypeFuzzy
}

// combinedDelta is |amount delta| + |date delta| used as the assignment tie-break
func (c ScoredCandidate) combinedDelta() decimal.Decimal {
	return c.AmountDelta.Abs().Add(decimal.NewFromInt(int64(absInt(c.DateDeltaDays))))
}

// ScoringModel combines amount, date and reference closeness into a confidence
type ScoringModel struct {
	strategy.BaseStrategy
}

// NewScoringModel creates the weighted scoring model
func NewScoringModel() *ScoringModel {
	return &ScoringModel{
		BaseStrategy: strategy.NewBaseStrategy(
			"weighted_amount_date_reference",
			strategy.StrategyTypeScoring,
			"0.5 amount + 0.3 date + 0.2 reference similarity",
		),
	}
}

// Score computes confidence and match type for one candidate
func (m *ScoringModel) Score(line *BankStatementLine, c Candidate, settings ReconciliationSettings) ScoredCandidate {
	amountScore := AmountScore(c.AmountDelta, settings.AmountTolerance)
	dateScore := DateScore(c.DateDeltaDays, settings.DateToleranceDays)
	refScore := m.referenceScore(line, c)

	confidence := clamp01(math.Round((AmountWeight*amountScore+DateWeight*dateScore+ReferenceWeight*refScore)*confidenceScale) / confidenceScale)

	sc := ScoredCandidate{
		Candidate:      c,
		AmountScore:    amountScore,
		DateScore:      dateScore,
		ReferenceScore: refScore,
		Confidence:     confidence,
	}
	switch {
	case confidence < settings.MinimumConfidenceScore:
		sc.MatchType = MatchTypeManualOnly
	case c.AmountDelta.IsZero() && c.DateDeltaDays == 0 && refScore >= ExactReferenceThreshold:
		sc.MatchType = MatchTypeExact
	default:
		sc.MatchType = MatchTypeFuzzy
	}
	return sc
}

// ScoreAll scores candidates and orders them by confidence, then by combined
// delta, then by transaction date and ID
func (m *ScoringModel) ScoreAll(line *BankStatementLine, candidates []Candidate, settings ReconciliationSettings) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, m.Score(line, c, settings))
	}
	sortScored(scored)
	return scored
}

// the line reference is compared against both the transaction reference and
// its description; banks often put the invoice number in either
func (m *ScoringModel) referenceScore(line *BankStatementLine, c Candidate) float64 {
	return max(
		ReferenceSimilarity(line.Reference, c.Transaction.Reference),
		ReferenceSimilarity(line.Reference, c.Transaction.Description),
	)
}
