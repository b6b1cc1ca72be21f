package reconciliation

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineStatus is the reconciliation state of a statement line
type LineStatus string

const (
	LineStatusUnmatched       LineStatus = "UNMATCHED"
	LineStatusAutoMatched     LineStatus = "AUTO_MATCHED"
	LineStatusManuallyMatched LineStatus = "MANUALLY_MATCHED"
	// LineStatusDisputed marks a line that needs review
	LineStatusDisputed LineStatus = "DISPUTED"
)

// IsValid checks if the status is valid
func (s LineStatus) IsValid() bool {
	switch s {
	case LineStatusUnmatched, LineStatusAutoMatched, LineStatusManuallyMatched, LineStatusDisputed:
		return true
	}
	return false
}

// IsOpen reports whether the engine or an operator may still act on the line
func (s LineStatus) IsOpen() bool {
	return s == LineStatusUnmatched || s == LineStatusDisputed
}

// IsMatched reports whether the line is claimed by a match
func (s LineStatus) IsMatched() bool {
	return s == LineStatusAutoMatched || s == LineStatusManuallyMatched
}

// String returns the string representation
func (s LineStatus) String() string {
	return string(s)
}

// StatementStatus is the rollup of all line statuses
type StatementStatus string

const (
	StatementStatusOpen                StatementStatus = "OPEN"
	StatementStatusPartiallyReconciled StatementStatus = "PARTIALLY_RECONCILED"
	StatementStatusReconciled          StatementStatus = "RECONCILED"
)

// BankStatementLine is one reported bank movement
type BankStatementLine struct {
	ID          uuid.UUID
	StatementID uuid.UUID
	Sequence    int // import order, used as the final assignment tie-break
	Amount      decimal.Decimal
	ValueDate   time.Time
	Reference   string
	Description string
	Status      LineStatus
	Version     int
}

// NewBankStatementLine creates an unmatched line
func NewBankStatementLine(sequence int, amount decimal.Decimal, valueDate time.Time, reference, description string) *BankStatementLine {
	return &BankStatementLine{
		ID:          uuid.New(),
		Sequence:    sequence,
		Amount:      amount,
		ValueDate:   valueDate,
		Reference:   reference,
		Description: description,
		Status:      LineStatusUnmatched,
		Version:     1,
	}
}

// MarkAutoMatched moves an open line to AUTO_MATCHED
func (l *BankStatementLine) MarkAutoMatched() error {
	return l.transition(LineStatusAutoMatched)
}

// MarkManuallyMatched moves an open line to MANUALLY_MATCHED
func (l *BankStatementLine) MarkManuallyMatched() error {
	return l.transition(LineStatusManuallyMatched)
}

// MarkDisputed flags an open line for review
func (l *BankStatementLine) MarkDisputed() error {
	return l.transition(LineStatusDisputed)
}

// MarkUnmatched leaves an open line unmatched
func (l *BankStatementLine) MarkUnmatched() error {
	return l.transition(LineStatusUnmatched)
}

// Reopen returns a matched line to UNMATCHED after its match was revoked
func (l *BankStatementLine) Reopen() {
	l.Status = LineStatusUnmatched
}

func (l *BankStatementLine) transition(to LineStatus) error {
	if !l.Status.IsOpen() {
		return shared.NewConflictError(
			fmt.Sprintf("statement line %s is already %s", l.ID, l.Status))
	}
	l.Status = to
	return nil
}

// BankStatement is one imported statement for one account and period.
// Lines are immutable after import apart from their status.
type BankStatement struct {
	shared.BaseAggregateRoot
	AccountID      uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Currency       valueobject.Currency
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Status         StatementStatus
	Lines          []*BankStatementLine
}

// NewBankStatement creates a statement and adopts its lines.
// Lines are ordered by Sequence; a zero Sequence is assigned from position.
func NewBankStatement(accountID uuid.UUID, periodStart, periodEnd time.Time, currency valueobject.Currency, opening, closing decimal.Decimal, lines []*BankStatementLine) (*BankStatement, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewValidationError("account id is required")
	}
	if periodEnd.Before(periodStart) {
		return nil, shared.NewValidationError("statement period end is before its start")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	s := &BankStatement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AccountID:         accountID,
		PeriodStart:       shared.TruncateToDate(periodStart),
		PeriodEnd:         shared.TruncateToDate(periodEnd),
		Currency:          currency,
		OpeningBalance:    opening,
		ClosingBalance:    closing,
		Status:            StatementStatusOpen,
	}
	seen := make(map[int]bool, len(lines))
	for i, line := range lines {
		if line.Sequence == 0 {
			line.Sequence = i + 1
		}
		if seen[line.Sequence] {
			return nil, shared.NewValidationError(fmt.Sprintf("duplicate line sequence %d", line.Sequence))
		}
		seen[line.Sequence] = true
		line.StatementID = s.ID
	}
	s.Lines = lines
	s.sortLines()
	return s, nil
}

func (s *BankStatement) sortLines() {
	sort.SliceStable(s.Lines, func(i, j int) bool {
		return s.Lines[i].Sequence < s.Lines[j].Sequence
	})
}

// Line returns the line with the given ID
func (s *BankStatement) Line(id uuid.UUID) (*BankStatementLine, bool) {
	for _, l := range s.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// OpenLines returns the lines the engine may still act on, in import order
func (s *BankStatement) OpenLines() []*BankStatementLine {
	open := make([]*BankStatementLine, 0, len(s.Lines))
	for _, l := range s.Lines {
		if l.Status.IsOpen() {
			open = append(open, l)
		}
	}
	return open
}

// TotalAmount sums all line amounts
func (s *BankStatement) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Amount)
	}
	return total
}

// BalanceDifference is closing - opening - sum(lines); non-zero means the
// statement itself is internally inconsistent
func (s *BankStatement) BalanceDifference() decimal.Decimal {
	return s.ClosingBalance.Sub(s.OpeningBalance).Sub(s.TotalAmount())
}

// Period is the statement's own date range, without any tolerance
func (s *BankStatement) Period() shared.DateWindow {
	return shared.NewDateWindow(s.PeriodStart, s.PeriodEnd)
}

// CandidateWindow is the date range covering every line, widened by the date tolerance
func (s *BankStatement) CandidateWindow(toleranceDays, paddingDays int) shared.DateWindow {
	from, to := s.PeriodStart, s.PeriodEnd
	for _, l := range s.Lines {
		d := shared.TruncateToDate(l.ValueDate)
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	return shared.NewDateWindow(from, to).Widen(toleranceDays + paddingDays)
}

// RefreshStatus recomputes the statement rollup from its lines
func (s *BankStatement) RefreshStatus() StatementStatus {
	s.Status = RollupStatus(s.Lines)
	return s.Status
}

// RollupStatus derives a statement status from line statuses
func RollupStatus(lines []*BankStatementLine) StatementStatus {
	matched := 0
	for _, l := range lines {
		if l.Status.IsMatched() {
			matched++
		}
	}
	switch {
	case len(lines) > 0 && matched == len(lines):
		return StatementStatusReconciled
	case matched > 0:
		return StatementStatusPartiallyReconciled
	default:
		return StatementStatusOpen
	}
}
