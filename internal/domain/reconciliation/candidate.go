package reconciliation

import (
	"sort"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Candidate is an internal transaction within tolerance of a statement line
type Candidate struct {
	Transaction *InternalTransaction
	// AmountDelta is line amount minus transaction amount
	AmountDelta decimal.Decimal
	// DateDeltaDays is the absolute number of calendar days between the two dates
	DateDeltaDays int
}

// TransactionPool is an account's unreconciled transactions, sorted by date then ID
type TransactionPool struct {
	accountID uuid.UUID
	txns      []*InternalTransaction
}

// NewTransactionPool keeps the unreconciled transactions of accountID,
// drops duplicates and sorts them by (date, ID)
func NewTransactionPool(accountID uuid.UUID, txns []*InternalTransaction) *TransactionPool {
	seen := make(map[uuid.UUID]struct{}, len(txns))
	kept := make([]*InternalTransaction, 0, len(txns))
	for _, t := range txns {
		if t == nil || t.AccountID != accountID || t.IsReconciled {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		kept = append(kept, t)
	}
	sort.Slice(kept, func(i, j int) bool {
		return transactionLess(kept[i], kept[j])
	})
	return &TransactionPool{accountID: accountID, txns: kept}
}

// AccountID returns the account the pool belongs to
func (p *TransactionPool) AccountID() uuid.UUID {
	return p.accountID
}

// Transactions returns the pool in (date, ID) order
func (p *TransactionPool) Transactions() []*InternalTransaction {
	return p.txns
}

// Len returns the pool size
func (p *TransactionPool) Len() int {
	return len(p.txns)
}

// Window returns the transactions dated within days of date
func (p *TransactionPool) Window(date time.Time, days int) []*InternalTransaction {
	day := shared.TruncateToDate(date)
	from := day.AddDate(0, 0, -days)
	to := day.AddDate(0, 0, days)
	start := sort.Search(len(p.txns), func(i int) bool {
		return !shared.TruncateToDate(p.txns[i].TransactionDate).Before(from)
	})
	end := start
	for end < len(p.txns) && !shared.TruncateToDate(p.txns[end].TransactionDate).After(to) {
		end++
	}
	return p.txns[start:end]
}

func transactionLess(a, b *InternalTransaction) bool {
	da, db := shared.TruncateToDate(a.TransactionDate), shared.TruncateToDate(b.TransactionDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return a.ID.String() < b.ID.String()
}

// CandidateGenerator produces the bounded candidate set of a statement line
type CandidateGenerator struct{}

// NewCandidateGenerator creates a candidate generator
func NewCandidateGenerator() *CandidateGenerator {
	return &CandidateGenerator{}
}

// Generate returns candidates for line in pool order. A candidate must have
// the same sign as the line and lie within both tolerances.
func (g *CandidateGenerator) Generate(line *BankStatementLine, pool *TransactionPool, settings ReconciliationSettings) []Candidate {
	var candidates []Candidate
	for _, txn := range pool.Window(line.ValueDate, settings.DateToleranceDays) {
		if txn.IsReconciled || !sameSign(line.Amount, txn.Amount) {
			continue
		}
		c := newCandidate(line, txn)
		if !WithinTolerance(c.AmountDelta, c.DateDeltaDays, settings) {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

func newCandidate(line *BankStatementLine, txn *InternalTransaction) Candidate {
	return Candidate{
		Transaction:   txn,
		AmountDelta:   line.Amount.Sub(txn.Amount),
		DateDeltaDays: absInt(DaysBetween(line.ValueDate, txn.TransactionDate)),
	}
}
