package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
)

// ManualMatchRequest carries the state re-read at call time for an
// operator-initiated match
type ManualMatchRequest struct {
	Account     *BankAccountConfig
	Statement   *BankStatement
	Line        *BankStatementLine
	Transaction *InternalTransaction
	// ActiveLineMatch and ActiveTransactionMatch are the non-revoked matches
	// currently holding either side, nil when unclaimed
	ActiveLineMatch        *ReconciliationMatch
	ActiveTransactionMatch *ReconciliationMatch
	UserID                 string
	Reason                 string
	Settings               ReconciliationSettings
	Now                    time.Time
}

// ManualMatchOutcome is the state to persist for a manual match
type ManualMatchOutcome struct {
	Match       *ReconciliationMatch
	Statement   *BankStatement
	Line        *BankStatementLine
	Transaction *InternalTransaction
	Events      []shared.DomainEvent
}

// ManualMatchHandler validates and records operator matches
type ManualMatchHandler struct {
	scorer *ScoringModel
}

// NewManualMatchHandler creates a manual match handler
func NewManualMatchHandler(scorer *ScoringModel) *ManualMatchHandler {
	if scorer == nil {
		scorer = NewScoringModel()
	}
	return &ManualMatchHandler{scorer: scorer}
}

// Create pairs the line and transaction. Deltas and confidence are computed
// the same way as for automatic matches but the type is always Manual.
// Either side already being claimed is a conflict.
func (h *ManualMatchHandler) Create(req ManualMatchRequest) (*ManualMatchOutcome, error) {
	if err := h.validate(req); err != nil {
		return nil, err
	}
	line, txn := req.Line, req.Transaction

	if req.ActiveLineMatch != nil || !line.Status.IsOpen() {
		return nil, shared.NewConflictError(fmt.Sprintf("statement line %s is already matched", line.ID))
	}
	if req.ActiveTransactionMatch != nil || txn.IsReconciled {
		return nil, shared.NewConflictError(fmt.Sprintf("transaction %s is already reconciled", txn.ID))
	}

	scored := h.scorer.Score(line, newCandidate(line, txn), req.Settings)
	match := newMatch(req.Statement, line, scored, MatchTypeManual, strings.TrimSpace(req.UserID), req.Now)
	match.Reason = strings.TrimSpace(req.Reason)

	if err := line.MarkManuallyMatched(); err != nil {
		return nil, err
	}
	if err := txn.MarkAsReconciled(match.ID); err != nil {
		return nil, err
	}
	req.Statement.RefreshStatus()

	return &ManualMatchOutcome{
		Match:       &match,
		Statement:   req.Statement,
		Line:        line,
		Transaction: txn,
		Events:      []shared.DomainEvent{NewMatchCreatedEvent(&match)},
	}, nil
}

func (h *ManualMatchHandler) validate(req ManualMatchRequest) error {
	if req.Account == nil || req.Statement == nil || req.Line == nil || req.Transaction == nil {
		return shared.NewValidationError("account, statement, line and transaction are required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return shared.NewValidationError("user id is required for a manual match")
	}
	if strings.EqualFold(strings.TrimSpace(req.UserID), SystemCreator) {
		return shared.NewValidationError(fmt.Sprintf("user id %q is reserved for automatic matches", SystemCreator))
	}
	if err := req.Settings.Validate(); err != nil {
		return err
	}
	if err := req.Account.ensureReconcilable(); err != nil {
		return err
	}
	if req.Line.StatementID != req.Statement.ID {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("statement line %s does not belong to statement %s", req.Line.ID, req.Statement.ID))
	}
	if req.Statement.AccountID != req.Account.ID {
		return accountMismatch(req.Account.ID, "statement", req.Statement.ID)
	}
	if req.Transaction.AccountID != req.Account.ID {
		return accountMismatch(req.Account.ID, "transaction", req.Transaction.ID)
	}
	if !sameSign(req.Line.Amount, req.Transaction.Amount) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot match %s line with %s transaction", signName(req.Line.Amount.Sign()), signName(req.Transaction.Amount.Sign())))
	}
	return nil
}

func signName(sign int) string {
	switch {
	case sign < 0:
		return "debit"
	case sign > 0:
		return "credit"
	}
	return "zero"
}
