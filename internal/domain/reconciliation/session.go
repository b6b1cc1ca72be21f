package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
)

// SessionInput is everything one session needs, loaded once up front
type SessionInput struct {
	Account      *BankAccountConfig
	Statement    *BankStatement
	Transactions []*InternalTransaction
	Settings     ReconciliationSettings
	// PreviousID is the latest earlier run on the statement, if any
	PreviousID *uuid.UUID
	Now        time.Time
}

// SessionResult is the outcome of a session, persisted as one batch
type SessionResult struct {
	Reconciliation *Reconciliation
	Statement      *BankStatement
	Outcomes       []LineOutcome
	// UpdatedLines are the open lines the session settled
	UpdatedLines []*BankStatementLine
	// ClaimedTransactions are the transactions taken by new matches
	ClaimedTransactions []*InternalTransaction
}

// Suggestions returns reviewer suggestions keyed by line ID
func (r *SessionResult) Suggestions() map[uuid.UUID][]MatchSuggestion {
	out := make(map[uuid.UUID][]MatchSuggestion)
	for _, o := range r.Outcomes {
		if len(o.Suggestions) > 0 {
			out[o.Line.ID] = o.Suggestions
		}
	}
	return out
}

// CountByDecision tallies outcomes
func (r *SessionResult) CountByDecision() map[Decision]int {
	counts := make(map[Decision]int, 3)
	for _, o := range r.Outcomes {
		counts[o.Decision]++
	}
	return counts
}

// ReconciliationSession reconciles one statement against one account's pool
type ReconciliationSession struct {
	engine        *MatchDecisionEngine
	discrepancies *DiscrepancyCalculator
}

// NewReconciliationSession creates a session runner; a nil engine uses defaults
func NewReconciliationSession(engine *MatchDecisionEngine) *ReconciliationSession {
	if engine == nil {
		engine = NewMatchDecisionEngine()
	}
	return &ReconciliationSession{
		engine:        engine,
		discrepancies: NewDiscrepancyCalculator(),
	}
}

// Engine returns the decision engine
func (s *ReconciliationSession) Engine() *MatchDecisionEngine {
	return s.engine
}

// Run performs the automatic pass in memory. It mutates the statement lines
// and transactions it settles; callers discard them if persisting fails.
// Lines already matched by an earlier run or an operator are left alone.
func (s *ReconciliationSession) Run(ctx context.Context, in SessionInput) (*SessionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.Settings.Validate(); err != nil {
		return nil, err
	}
	if in.Account == nil || in.Statement == nil {
		return nil, shared.NewValidationError("account and statement are required")
	}
	if in.Statement.AccountID != in.Account.ID {
		return nil, accountMismatch(in.Account.ID, "statement", in.Statement.ID)
	}
	if err := in.Account.ensureReconcilable(); err != nil {
		return nil, err
	}
	if in.Statement.Currency != in.Account.Currency {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("statement currency %s differs from account currency %s", in.Statement.Currency, in.Account.Currency))
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	pool := NewTransactionPool(in.Account.ID, in.Transactions)
	open := in.Statement.OpenLines()

	outcomes, err := s.engine.Decide(open, pool, in.Settings)
	if err != nil {
		return nil, fmt.Errorf("decide lines: %w", err)
	}

	rec := NewReconciliation(in.Statement, in.Settings, in.PreviousID, now)
	claimed := make(map[uuid.UUID]bool)
	var claimedTxns []*InternalTransaction

	for _, o := range outcomes {
		switch o.Decision {
		case DecisionAutoMatched:
			match := newMatch(in.Statement, o.Line, *o.Match, o.Match.MatchType, SystemCreator, now)
			if err := rec.AddMatch(match); err != nil {
				return nil, err
			}
			if err := o.Line.MarkAutoMatched(); err != nil {
				return nil, err
			}
			if err := o.Match.Transaction.MarkAsReconciled(match.ID); err != nil {
				return nil, err
			}
			claimed[o.Match.Transaction.ID] = true
			claimedTxns = append(claimedTxns, o.Match.Transaction)
		case DecisionNeedsReview:
			if err := o.Line.MarkDisputed(); err != nil {
				return nil, err
			}
		default:
			if err := o.Line.MarkUnmatched(); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range s.discrepancies.Calculate(outcomes, pool, in.Statement.Period(), claimed, in.Settings) {
		if err := rec.AddDiscrepancy(d); err != nil {
			return nil, err
		}
	}

	in.Statement.RefreshStatus()
	if err := rec.Finalize(in.Statement, now); err != nil {
		return nil, err
	}

	return &SessionResult{
		Reconciliation:      rec,
		Statement:           in.Statement,
		Outcomes:            outcomes,
		UpdatedLines:        open,
		ClaimedTransactions: claimedTxns,
	}, nil
}
