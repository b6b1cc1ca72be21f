package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
)

// UndoRequest carries a match and both of its sides
type UndoRequest struct {
	Match       *ReconciliationMatch
	Statement   *BankStatement
	Line        *BankStatementLine
	Transaction *InternalTransaction
	UserID      string
	Now         time.Time
}

// UndoOutcome is the state to persist for an undo.
// Changed is false when the match was already revoked.
type UndoOutcome struct {
	Match       *ReconciliationMatch
	Statement   *BankStatement
	Line        *BankStatementLine
	Transaction *InternalTransaction
	Changed     bool
	Events      []shared.DomainEvent
}

// UndoHandler revokes matches
type UndoHandler struct{}

// NewUndoHandler creates an undo handler
func NewUndoHandler() *UndoHandler {
	return &UndoHandler{}
}

// Undo revokes the match and returns both sides to unreconciled.
// Undoing a revoked match is a no-op.
func (h *UndoHandler) Undo(req UndoRequest) (*UndoOutcome, error) {
	if req.Match == nil {
		return nil, shared.NewValidationError("match is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, shared.NewValidationError("user id is required to undo a match")
	}
	out := &UndoOutcome{
		Match:       req.Match,
		Statement:   req.Statement,
		Line:        req.Line,
		Transaction: req.Transaction,
	}
	if !req.Match.IsActive() {
		return out, nil
	}
	if req.Line == nil || req.Transaction == nil {
		return nil, shared.NewValidationError("line and transaction are required")
	}
	if req.Line.ID != req.Match.LineID || req.Transaction.ID != req.Match.TransactionID {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("line or transaction does not belong to match %s", req.Match.ID))
	}

	if err := req.Transaction.Unmark(req.Match.ID); err != nil {
		return nil, err
	}
	req.Match.Revoke(strings.TrimSpace(req.UserID), req.Now)
	req.Line.Reopen()
	if req.Statement != nil {
		req.Statement.RefreshStatus()
	}

	out.Changed = true
	out.Events = []shared.DomainEvent{NewMatchRevokedEvent(req.Match)}
	return out, nil
}
