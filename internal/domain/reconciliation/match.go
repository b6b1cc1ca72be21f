package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SystemCreator is the creator recorded on automatic matches
const SystemCreator = "system"

// ReconciliationMatch is a confirmed pairing of a statement line and an
// internal transaction. Matches are append-only: undo sets the revocation
// marker and never deletes the record.
type ReconciliationMatch struct {
	ID               uuid.UUID
	StatementID      uuid.UUID
	AccountID        uuid.UUID
	ReconciliationID *uuid.UUID // nil for manual matches
	LineID           uuid.UUID
	TransactionID    uuid.UUID
	Confidence       float64
	MatchType        MatchType
	AmountDelta      decimal.Decimal
	DateDeltaDays    int
	CreatedBy        string
	CreatedAt        time.Time
	Reason           string
	RevokedAt        *time.Time
	RevokedBy        string
	Version          int
}

func newMatch(statement *BankStatement, line *BankStatementLine, sc ScoredCandidate, matchType MatchType, createdBy string, at time.Time) ReconciliationMatch {
	return ReconciliationMatch{
		ID:            uuid.New(),
		StatementID:   statement.ID,
		AccountID:     statement.AccountID,
		LineID:        line.ID,
		TransactionID: sc.Transaction.ID,
		Confidence:    sc.Confidence,
		MatchType:     matchType,
		AmountDelta:   sc.AmountDelta,
		DateDeltaDays: sc.DateDeltaDays,
		CreatedBy:     createdBy,
		CreatedAt:     at,
		Version:       1,
	}
}

// IsActive reports whether the match has not been revoked
func (m *ReconciliationMatch) IsActive() bool {
	return m.RevokedAt == nil
}

// IsAutomatic reports whether the engine created the match
func (m *ReconciliationMatch) IsAutomatic() bool {
	return m.CreatedBy == SystemCreator
}

// Revoke sets the revocation marker. It returns false when the match was
// already revoked, leaving the original marker untouched.
func (m *ReconciliationMatch) Revoke(userID string, at time.Time) bool {
	if !m.IsActive() {
		return false
	}
	m.RevokedAt = &at
	m.RevokedBy = userID
	return true
}

// ActiveMatches filters out revoked matches
func ActiveMatches(matches []ReconciliationMatch) []ReconciliationMatch {
	active := make([]ReconciliationMatch, 0, len(matches))
	for _, m := range matches {
		if m.IsActive() {
			active = append(active, m)
		}
	}
	return active
}
