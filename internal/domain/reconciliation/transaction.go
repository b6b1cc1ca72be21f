package reconciliation

import (
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InternalTransaction is one ledger movement recorded by the ledger subsystem.
// The engine only ever flips its reconciliation flag.
type InternalTransaction struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	Amount          decimal.Decimal
	TransactionDate time.Time
	Reference       string
	Description     string
	IsReconciled    bool
	MatchID         *uuid.UUID
	Version         int
}

// NewInternalTransaction creates an unreconciled transaction
func NewInternalTransaction(accountID uuid.UUID, amount decimal.Decimal, date time.Time, reference, description string) *InternalTransaction {
	return &InternalTransaction{
		ID:              uuid.New(),
		AccountID:       accountID,
		Amount:          amount,
		TransactionDate: date,
		Reference:       reference,
		Description:     description,
		Version:         1,
	}
}

// MarkAsReconciled claims the transaction for a match
func (t *InternalTransaction) MarkAsReconciled(matchID uuid.UUID) error {
	if t.IsReconciled {
		return shared.NewConflictError(fmt.Sprintf("transaction %s is already reconciled", t.ID))
	}
	t.IsReconciled = true
	t.MatchID = &matchID
	return nil
}

// Unmark releases the transaction from the given match.
// Releasing a transaction that is not reconciled is a no-op.
func (t *InternalTransaction) Unmark(matchID uuid.UUID) error {
	if !t.IsReconciled {
		return nil
	}
	if t.MatchID != nil && *t.MatchID != matchID {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("transaction %s is claimed by match %s, not %s", t.ID, *t.MatchID, matchID))
	}
	t.IsReconciled = false
	t.MatchID = nil
	return nil
}

// sameSign reports whether a and b are both debits, both credits, or both zero
func sameSign(a, b decimal.Decimal) bool {
	return a.Sign() == b.Sign()
}
