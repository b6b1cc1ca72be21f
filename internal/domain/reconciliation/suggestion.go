package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchSuggestion is a scored candidate offered to a reviewer.
// It is a transport value and is never persisted as a match.
type MatchSuggestion struct {
	Rank                 int             `json:"rank"`
	LineID               uuid.UUID       `json:"line_id"`
	TransactionID        uuid.UUID       `json:"transaction_id"`
	TransactionAmount    decimal.Decimal `json:"transaction_amount"`
	TransactionDate      time.Time       `json:"transaction_date"`
	TransactionReference string          `json:"transaction_reference"`
	Confidence           float64         `json:"confidence"`
	MatchType            MatchType       `json:"match_type"`
	AmountDelta          decimal.Decimal `json:"amount_delta"`
	DateDeltaDays        int             `json:"date_delta_days"`
}

func newSuggestion(lineID uuid.UUID, rank int, c ScoredCandidate) MatchSuggestion {
	return MatchSuggestion{
		Rank:                 rank,
		LineID:               lineID,
		TransactionID:        c.Transaction.ID,
		TransactionAmount:    c.Transaction.Amount,
		TransactionDate:      c.Transaction.TransactionDate,
		TransactionReference: c.Transaction.Reference,
		Confidence:           c.Confidence,
		MatchType:            c.MatchType,
		AmountDelta:          c.AmountDelta,
		DateDeltaDays:        c.DateDeltaDays,
	}
}

// topSuggestions converts the first limit candidates, already sorted, into ranked suggestions
func topSuggestions(lineID uuid.UUID, candidates []ScoredCandidate, limit int) []MatchSuggestion {
	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]MatchSuggestion, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, newSuggestion(lineID, i+1, candidates[i]))
	}
	return out
}
