package reconciliation

import (
	"testing"
	"time"

	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var testNow = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestAccount(t *testing.T) *BankAccountConfig {
	t.Helper()
	acc, err := NewBankAccountConfig("CHASE", "000123456789", valueobject.USD)
	require.NoError(t, err)
	return acc
}

func newLine(seq int, amount string, date time.Time, ref string) *BankStatementLine {
	return NewBankStatementLine(seq, dec(amount), date, ref, "")
}

func newTxn(acc *BankAccountConfig, amount string, date time.Time, ref string) *InternalTransaction {
	return NewInternalTransaction(acc.ID, dec(amount), date, ref, "")
}

func newTestStatement(t *testing.T, acc *BankAccountConfig, lines ...*BankStatementLine) *BankStatement {
	t.Helper()
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	stmt, err := NewBankStatement(acc.ID, day(2025, 3, 1), day(2025, 3, 31), valueobject.USD, dec("10000.00"), dec("10000.00").Add(total), lines)
	require.NoError(t, err)
	return stmt
}

// fuzzySettings widens the default tolerances for near-miss scenarios
func fuzzySettings() ReconciliationSettings {
	s := DefaultSettings()
	s.AmountTolerance = dec("5.00")
	s.DateToleranceDays = 3
	s.MinimumConfidenceScore = 0.6
	return s
}
