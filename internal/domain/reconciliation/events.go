package reconciliation

import (
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeReconciliationCompleted = "ReconciliationCompleted"
	EventTypeMatchCreated            = "MatchCreated"
	EventTypeMatchRevoked            = "MatchRevoked"
)

const (
	aggregateTypeReconciliation = "Reconciliation"
	aggregateTypeMatch          = "ReconciliationMatch"
)

// ReconciliationCompletedEvent is raised when a run is finalized
type ReconciliationCompletedEvent struct {
	shared.BaseDomainEvent
	ReconciliationID   uuid.UUID       `json:"reconciliation_id"`
	StatementID        uuid.UUID       `json:"statement_id"`
	AccountID          uuid.UUID       `json:"account_id"`
	SupersedesID       *uuid.UUID      `json:"supersedes_id,omitempty"`
	AutoMatched        int             `json:"auto_matched"`
	NeedsReview        int             `json:"needs_review"`
	Unmatched          int             `json:"unmatched"`
	NewMatches         int             `json:"new_matches"`
	Discrepancies      int             `json:"discrepancies"`
	ResidualDifference decimal.Decimal `json:"residual_difference"`
}

// EventType returns the event type name
func (e *ReconciliationCompletedEvent) EventType() string {
	return EventTypeReconciliationCompleted
}

// NewReconciliationCompletedEvent creates a new ReconciliationCompletedEvent
func NewReconciliationCompletedEvent(r *Reconciliation, at time.Time) *ReconciliationCompletedEvent {
	return &ReconciliationCompletedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeReconciliationCompleted, aggregateTypeReconciliation, r.ID, at),
		ReconciliationID:   r.ID,
		StatementID:        r.StatementID,
		AccountID:          r.AccountID,
		SupersedesID:       r.SupersedesID,
		AutoMatched:        r.Summary.AutoMatched,
		NeedsReview:        r.Summary.NeedsReview,
		Unmatched:          r.Summary.Unmatched,
		NewMatches:         r.Summary.NewMatches,
		Discrepancies:      len(r.Discrepancies),
		ResidualDifference: r.Summary.ResidualDifference.Amount(),
	}
}

// MatchCreatedEvent is raised when an operator records a manual match
type MatchCreatedEvent struct {
	shared.BaseDomainEvent
	MatchID       uuid.UUID       `json:"match_id"`
	StatementID   uuid.UUID       `json:"statement_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	LineID        uuid.UUID       `json:"line_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	MatchType     MatchType       `json:"match_type"`
	Confidence    float64         `json:"confidence"`
	AmountDelta   decimal.Decimal `json:"amount_delta"`
	CreatedBy     string          `json:"created_by"`
	Reason        string          `json:"reason,omitempty"`
}

// EventType returns the event type name
func (e *MatchCreatedEvent) EventType() string {
	return EventTypeMatchCreated
}

// NewMatchCreatedEvent creates a new MatchCreatedEvent
func NewMatchCreatedEvent(m *ReconciliationMatch) *MatchCreatedEvent {
	return &MatchCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMatchCreated, aggregateTypeMatch, m.ID, m.CreatedAt),
		MatchID:         m.ID,
		StatementID:     m.StatementID,
		AccountID:       m.AccountID,
		LineID:          m.LineID,
		TransactionID:   m.TransactionID,
		MatchType:       m.MatchType,
		Confidence:      m.Confidence,
		AmountDelta:     m.AmountDelta,
		CreatedBy:       m.CreatedBy,
		Reason:          m.Reason,
	}
}

// MatchRevokedEvent is raised when a match is undone
type MatchRevokedEvent struct {
	shared.BaseDomainEvent
	MatchID       uuid.UUID `json:"match_id"`
	StatementID   uuid.UUID `json:"statement_id"`
	AccountID     uuid.UUID `json:"account_id"`
	LineID        uuid.UUID `json:"line_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	RevokedBy     string    `json:"revoked_by"`
	RevokedAt     time.Time `json:"revoked_at"`
}

// EventType returns the event type name
func (e *MatchRevokedEvent) EventType() string {
	return EventTypeMatchRevoked
}

// NewMatchRevokedEvent creates a new MatchRevokedEvent
func NewMatchRevokedEvent(m *ReconciliationMatch) *MatchRevokedEvent {
	revokedAt := time.Now()
	if m.RevokedAt != nil {
		revokedAt = *m.RevokedAt
	}
	return &MatchRevokedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMatchRevoked, aggregateTypeMatch, m.ID, revokedAt),
		MatchID:         m.ID,
		StatementID:     m.StatementID,
		AccountID:       m.AccountID,
		LineID:          m.LineID,
		TransactionID:   m.TransactionID,
		RevokedBy:       m.RevokedBy,
		RevokedAt:       revokedAt,
	}
}
