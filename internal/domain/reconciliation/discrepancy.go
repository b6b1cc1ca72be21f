package reconciliation

import (
	"fmt"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscrepancyCategory classifies an unresolved residual
type DiscrepancyCategory string

const (
	DiscrepancyUnmatchedBankLine     DiscrepancyCategory = "UNMATCHED_BANK_LINE"
	DiscrepancyUnmatchedLedgerEntry  DiscrepancyCategory = "UNMATCHED_LEDGER_ENTRY"
	DiscrepancyPartialAmountMismatch DiscrepancyCategory = "PARTIAL_AMOUNT_MISMATCH"
)

// IsValid checks if the category is valid
func (c DiscrepancyCategory) IsValid() bool {
	switch c {
	case DiscrepancyUnmatchedBankLine, DiscrepancyUnmatchedLedgerEntry, DiscrepancyPartialAmountMismatch:
		return true
	}
	return false
}

// ReconciliationDiscrepancy is a residual left after matching.
// AmountDifference is signed: a bank line contributes its amount, a ledger
// entry the negation of its amount, and a partial mismatch line minus transaction.
type ReconciliationDiscrepancy struct {
	ID               uuid.UUID
	ReconciliationID uuid.UUID
	LineID           *uuid.UUID
	TransactionID    *uuid.UUID
	AmountDifference decimal.Decimal
	Category         DiscrepancyCategory
	Description      string
}

// DiscrepancyCalculator derives discrepancies once every line is settled
type DiscrepancyCalculator struct{}

// NewDiscrepancyCalculator creates a discrepancy calculator
func NewDiscrepancyCalculator() *DiscrepancyCalculator {
	return &DiscrepancyCalculator{}
}

// Calculate emits line discrepancies in outcome order followed by ledger
// discrepancies in pool order. claimed holds the transaction IDs taken by
// matches during the session. Auto-matched lines never produce a discrepancy.
// Only ledger entries dated inside period are reported; the pool reaches past
// it by the date tolerance and those entries belong to the neighbouring statement.
func (c *DiscrepancyCalculator) Calculate(outcomes []LineOutcome, pool *TransactionPool, period shared.DateWindow, claimed map[uuid.UUID]bool, settings ReconciliationSettings) []ReconciliationDiscrepancy {
	var out []ReconciliationDiscrepancy
	adjusted := make(map[uuid.UUID]bool)

	for _, o := range outcomes {
		switch o.Decision {
		case DecisionAutoMatched:
			continue
		case DecisionNeedsReview:
			if d, ok := c.partialMismatch(o, claimed, adjusted, settings); ok {
				out = append(out, d)
				continue
			}
		}
		lineID := o.Line.ID
		out = append(out, ReconciliationDiscrepancy{
			ID:               uuid.New(),
			LineID:           &lineID,
			AmountDifference: o.Line.Amount,
			Category:         DiscrepancyUnmatchedBankLine,
			Description:      fmt.Sprintf("bank line #%d %s has no match", o.Line.Sequence, o.Line.Amount.StringFixed(2)),
		})
	}

	for _, txn := range pool.Transactions() {
		if claimed[txn.ID] || adjusted[txn.ID] || !period.Contains(txn.TransactionDate) {
			continue
		}
		txnID := txn.ID
		out = append(out, ReconciliationDiscrepancy{
			ID:               uuid.New(),
			TransactionID:    &txnID,
			AmountDifference: txn.Amount.Neg(),
			Category:         DiscrepancyUnmatchedLedgerEntry,
			Description:      fmt.Sprintf("ledger entry %q %s has no bank line", txn.Reference, txn.Amount.StringFixed(2)),
		})
	}
	return out
}

// partialMismatch reports the top suggestion of a Needs-Review line when its
// non-zero amount delta is under the adjustment threshold. A transaction is reported
// against at most one line.
func (c *DiscrepancyCalculator) partialMismatch(o LineOutcome, claimed, adjusted map[uuid.UUID]bool, settings ReconciliationSettings) (ReconciliationDiscrepancy, bool) {
	if !settings.CreateAdjustmentsForDifferences || len(o.Suggestions) == 0 {
		return ReconciliationDiscrepancy{}, false
	}
	top := o.Suggestions[0]
	if claimed[top.TransactionID] || adjusted[top.TransactionID] {
		return ReconciliationDiscrepancy{}, false
	}
	if top.AmountDelta.IsZero() || !top.AmountDelta.Abs().LessThan(settings.AdjustmentThreshold) {
		return ReconciliationDiscrepancy{}, false
	}
	adjusted[top.TransactionID] = true
	lineID, txnID := o.Line.ID, top.TransactionID
	return ReconciliationDiscrepancy{
		ID:               uuid.New(),
		LineID:           &lineID,
		TransactionID:    &txnID,
		AmountDifference: top.AmountDelta,
		Category:         DiscrepancyPartialAmountMismatch,
		Description: fmt.Sprintf("bank line #%d differs from %q by %s",
			o.Line.Sequence, top.TransactionReference, top.AmountDelta.StringFixed(2)),
	}, true
}
