package reconciliation

import (
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunReconciliationCommand starts an automatic pass over one statement
type RunReconciliationCommand struct {
	StatementID string `json:"statement_id" validate:"required,uuid"`
	// Settings overrides the configured defaults for this run only
	Settings *reconciliation.ReconciliationSettings `json:"settings,omitempty"`
}

// SuggestMatchesQuery asks for reviewer suggestions for one line
type SuggestMatchesQuery struct {
	LineID string `json:"line_id" validate:"required,uuid"`
}

// CreateManualMatchCommand records an operator pairing
type CreateManualMatchCommand struct {
	LineID        string `json:"line_id" validate:"required,uuid"`
	TransactionID string `json:"transaction_id" validate:"required,uuid"`
	UserID        string `json:"user_id" validate:"required,max=128"`
	Reason        string `json:"reason" validate:"max=500"`
}

// UndoMatchCommand revokes a match
type UndoMatchCommand struct {
	MatchID string `json:"match_id" validate:"required,uuid"`
	UserID  string `json:"user_id" validate:"required,max=128"`
}

// ListMatchesQuery lists the match history of a statement
type ListMatchesQuery struct {
	StatementID string `json:"statement_id" validate:"required,uuid"`
	ActiveOnly  bool   `json:"active_only"`
}

// MatchResponse represents a match in API responses
type MatchResponse struct {
	ID               uuid.UUID       `json:"id"`
	StatementID      uuid.UUID       `json:"statement_id"`
	AccountID        uuid.UUID       `json:"account_id"`
	ReconciliationID *uuid.UUID      `json:"reconciliation_id,omitempty"`
	LineID           uuid.UUID       `json:"line_id"`
	TransactionID    uuid.UUID       `json:"transaction_id"`
	Confidence       float64         `json:"confidence"`
	MatchType        string          `json:"match_type"`
	AmountDelta      decimal.Decimal `json:"amount_delta"`
	DateDeltaDays    int             `json:"date_delta_days"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	Reason           string          `json:"reason,omitempty"`
	Active           bool            `json:"active"`
	RevokedBy        string          `json:"revoked_by,omitempty"`
	RevokedAt        *time.Time      `json:"revoked_at,omitempty"`
}

// DiscrepancyResponse represents a discrepancy in API responses
type DiscrepancyResponse struct {
	ID               uuid.UUID       `json:"id"`
	Category         string          `json:"category"`
	LineID           *uuid.UUID      `json:"line_id,omitempty"`
	TransactionID    *uuid.UUID      `json:"transaction_id,omitempty"`
	AmountDifference decimal.Decimal `json:"amount_difference"`
	Description      string          `json:"description"`
}

// ReconciliationResponse represents a finalized run in API responses
type ReconciliationResponse struct {
	ID            uuid.UUID                                      `json:"id"`
	StatementID   uuid.UUID                                      `json:"statement_id"`
	AccountID     uuid.UUID                                      `json:"account_id"`
	SupersedesID  *uuid.UUID                                     `json:"supersedes_id,omitempty"`
	Status        string                                         `json:"status"`
	Settings      reconciliation.ReconciliationSettings          `json:"settings"`
	Summary       reconciliation.ReconciliationSummary           `json:"summary"`
	Matches       []MatchResponse                                `json:"matches"`
	Discrepancies []DiscrepancyResponse                          `json:"discrepancies"`
	Suggestions   map[uuid.UUID][]reconciliation.MatchSuggestion `json:"suggestions,omitempty"`
	StartedAt     time.Time                                      `json:"started_at"`
	FinalizedAt   *time.Time                                     `json:"finalized_at,omitempty"`
}

// ToMatchResponse converts a domain match to a response
func ToMatchResponse(m *reconciliation.ReconciliationMatch) MatchResponse {
	return MatchResponse{
		ID:               m.ID,
		StatementID:      m.StatementID,
		AccountID:        m.AccountID,
		ReconciliationID: m.ReconciliationID,
		LineID:           m.LineID,
		TransactionID:    m.TransactionID,
		Confidence:       m.Confidence,
		MatchType:        m.MatchType.String(),
		AmountDelta:      m.AmountDelta,
		DateDeltaDays:    m.DateDeltaDays,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
		Reason:           m.Reason,
		Active:           m.IsActive(),
		RevokedBy:        m.RevokedBy,
		RevokedAt:        m.RevokedAt,
	}
}

// ToMatchResponses converts a list of domain matches
func ToMatchResponses(matches []reconciliation.ReconciliationMatch) []MatchResponse {
	responses := make([]MatchResponse, len(matches))
	for i := range matches {
		responses[i] = ToMatchResponse(&matches[i])
	}
	return responses
}

// ToReconciliationResponse converts a domain reconciliation to a response
func ToReconciliationResponse(r *reconciliation.Reconciliation) *ReconciliationResponse {
	discrepancies := make([]DiscrepancyResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = DiscrepancyResponse{
			ID:               d.ID,
			Category:         string(d.Category),
			LineID:           d.LineID,
			TransactionID:    d.TransactionID,
			AmountDifference: d.AmountDifference,
			Description:      d.Description,
		}
	}
	return &ReconciliationResponse{
		ID:            r.ID,
		StatementID:   r.StatementID,
		AccountID:     r.AccountID,
		SupersedesID:  r.SupersedesID,
		Status:        string(r.Status),
		Settings:      r.Settings,
		Summary:       r.Summary,
		Matches:       ToMatchResponses(r.Matches),
		Discrepancies: discrepancies,
		StartedAt:     r.StartedAt,
		FinalizedAt:   r.FinalizedAt,
	}
}
