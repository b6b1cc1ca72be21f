package reconciliation

import (
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ReconciliationStatus represents the lifecycle of one engine run
type ReconciliationStatus string

const (
	ReconciliationStatusInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconciliationStatusFinalized  ReconciliationStatus = "FINALIZED"
)

// ReconciliationSummary holds counts and totals of a finalized run.
// Every statement line is counted in exactly one of AutoMatched,
// ManuallyMatched, NeedsReview and Unmatched.
type ReconciliationSummary struct {
	TotalLines             int `json:"total_lines"`
	AutoMatched            int `json:"auto_matched"`
	ManuallyMatched        int `json:"manually_matched"`
	NeedsReview            int `json:"needs_review"`
	Unmatched              int `json:"unmatched"`
	NewMatches             int `json:"new_matches"`
	UnmatchedLedgerEntries int `json:"unmatched_ledger_entries"`
	PartialMismatches      int `json:"partial_mismatches"`

	StatementTotal       valueobject.Money `json:"statement_total"`
	MatchedTotal         valueobject.Money `json:"matched_total"`
	UnmatchedBankTotal   valueobject.Money `json:"unmatched_bank_total"`
	UnmatchedLedgerTotal valueobject.Money `json:"unmatched_ledger_total"`
	// ResidualDifference is the sum of all discrepancy differences
	ResidualDifference valueobject.Money `json:"residual_difference"`
}

// Reconciliation is one run of the engine over one statement.
// It is immutable once finalized; a newer run supersedes it.
type Reconciliation struct {
	shared.BaseAggregateRoot
	StatementID   uuid.UUID
	AccountID     uuid.UUID
	SupersedesID  *uuid.UUID
	Settings      ReconciliationSettings
	Status        ReconciliationStatus
	Matches       []ReconciliationMatch
	Discrepancies []ReconciliationDiscrepancy
	Summary       ReconciliationSummary
	StartedAt     time.Time
	FinalizedAt   *time.Time

	lineIDs map[uuid.UUID]bool
	txnIDs  map[uuid.UUID]bool
}

// NewReconciliation starts a run for statement
func NewReconciliation(statement *BankStatement, settings ReconciliationSettings, supersedes *uuid.UUID, now time.Time) *Reconciliation {
	return &Reconciliation{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(now),
		StatementID:       statement.ID,
		AccountID:         statement.AccountID,
		SupersedesID:      supersedes,
		Settings:          settings,
		Status:            ReconciliationStatusInProgress,
		StartedAt:         now,
	}
}

// IsFinalized reports whether the run is closed
func (r *Reconciliation) IsFinalized() bool {
	return r.Status == ReconciliationStatusFinalized
}

// AddMatch records a match, rejecting any that would share a line or
// transaction with another active match of this run
func (r *Reconciliation) AddMatch(m ReconciliationMatch) error {
	if r.IsFinalized() {
		return shared.NewDomainError(shared.CodeInvalidState, "reconciliation is finalized")
	}
	if r.lineIDs == nil {
		r.rebuildIndex()
	}
	if m.IsActive() {
		if r.lineIDs[m.LineID] {
			return shared.NewConflictError(fmt.Sprintf("statement line %s already matched in this run", m.LineID))
		}
		if r.txnIDs[m.TransactionID] {
			return shared.NewConflictError(fmt.Sprintf("transaction %s already matched in this run", m.TransactionID))
		}
		r.lineIDs[m.LineID] = true
		r.txnIDs[m.TransactionID] = true
	}
	id := r.ID
	m.ReconciliationID = &id
	r.Matches = append(r.Matches, m)
	return nil
}

// AddDiscrepancy records a discrepancy
func (r *Reconciliation) AddDiscrepancy(d ReconciliationDiscrepancy) error {
	if r.IsFinalized() {
		return shared.NewDomainError(shared.CodeInvalidState, "reconciliation is finalized")
	}
	if !d.Category.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("invalid discrepancy category %q", d.Category))
	}
	d.ReconciliationID = r.ID
	r.Discrepancies = append(r.Discrepancies, d)
	return nil
}

// ActiveMatches returns the non-revoked matches of the run
func (r *Reconciliation) ActiveMatches() []ReconciliationMatch {
	return ActiveMatches(r.Matches)
}

// Finalize computes the summary from the settled statement and closes the run
func (r *Reconciliation) Finalize(statement *BankStatement, now time.Time) error {
	if r.IsFinalized() {
		return shared.NewDomainError(shared.CodeInvalidState, "reconciliation is already finalized")
	}
	if statement.ID != r.StatementID {
		return shared.NewDomainError(shared.CodeInvalidState, "statement does not belong to this reconciliation")
	}
	r.Summary = summarize(statement, r.Matches, r.Discrepancies)
	r.Status = ReconciliationStatusFinalized
	r.FinalizedAt = &now
	r.Touch(now)
	r.AddDomainEvent(NewReconciliationCompletedEvent(r, now))
	return nil
}

// RestoreIndex rebuilds the uniqueness index after loading from storage
func (r *Reconciliation) RestoreIndex() {
	r.rebuildIndex()
}

func (r *Reconciliation) rebuildIndex() {
	r.lineIDs = make(map[uuid.UUID]bool, len(r.Matches))
	r.txnIDs = make(map[uuid.UUID]bool, len(r.Matches))
	for _, m := range r.Matches {
		if m.IsActive() {
			r.lineIDs[m.LineID] = true
			r.txnIDs[m.TransactionID] = true
		}
	}
}

func summarize(statement *BankStatement, matches []ReconciliationMatch, discrepancies []ReconciliationDiscrepancy) ReconciliationSummary {
	cur := statement.Currency
	s := ReconciliationSummary{
		TotalLines:           len(statement.Lines),
		StatementTotal:       valueobject.Zero(cur),
		MatchedTotal:         valueobject.Zero(cur),
		UnmatchedBankTotal:   valueobject.Zero(cur),
		UnmatchedLedgerTotal: valueobject.Zero(cur),
		ResidualDifference:   valueobject.Zero(cur),
	}
	for _, l := range statement.Lines {
		s.StatementTotal = s.StatementTotal.AddAmount(l.Amount)
		switch l.Status {
		case LineStatusAutoMatched:
			s.AutoMatched++
			s.MatchedTotal = s.MatchedTotal.AddAmount(l.Amount)
		case LineStatusManuallyMatched:
			s.ManuallyMatched++
			s.MatchedTotal = s.MatchedTotal.AddAmount(l.Amount)
		case LineStatusDisputed:
			s.NeedsReview++
		default:
			s.Unmatched++
		}
	}
	s.NewMatches = len(ActiveMatches(matches))
	for _, d := range discrepancies {
		s.ResidualDifference = s.ResidualDifference.AddAmount(d.AmountDifference)
		switch d.Category {
		case DiscrepancyUnmatchedBankLine:
			s.UnmatchedBankTotal = s.UnmatchedBankTotal.AddAmount(d.AmountDifference)
		case DiscrepancyUnmatchedLedgerEntry:
			s.UnmatchedLedgerEntries++
			s.UnmatchedLedgerTotal = s.UnmatchedLedgerTotal.AddAmount(d.AmountDifference.Neg())
		case DiscrepancyPartialAmountMismatch:
			s.PartialMismatches++
		}
	}
	return s
}
