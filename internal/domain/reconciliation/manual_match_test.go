package reconciliation

import (
	"testing"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualFixture struct {
	acc  *BankAccountConfig
	stmt *BankStatement
	line *BankStatementLine
	txn  *InternalTransaction
}

func newManualFixture(t *testing.T) manualFixture {
	acc := newTestAccount(t)
	line := newLine(1, "1250.00", day(2025, 3, 10), "INV-4471")
	return manualFixture{
		acc:  acc,
		stmt: newTestStatement(t, acc, line),
		line: line,
		txn:  newTxn(acc, "1240.00", day(2025, 3, 20), "unrelated"),
	}
}

func (f manualFixture) request() ManualMatchRequest {
	return ManualMatchRequest{
		Account:     f.acc,
		Statement:   f.stmt,
		Line:        f.line,
		Transaction: f.txn,
		UserID:      "alice",
		Reason:      "confirmed with customer",
		Settings:    DefaultSettings(),
		Now:         testNow,
	}
}

func TestManualMatchHandler_Create(t *testing.T) {
	t.Run("records a manual match regardless of closeness", func(t *testing.T) {
		f := newManualFixture(t)

		out, err := NewManualMatchHandler(nil).Create(f.request())

		require.NoError(t, err)
		m := out.Match
		assert.Equal(t, MatchTypeManual, m.MatchType)
		assert.Equal(t, "alice", m.CreatedBy)
		assert.Equal(t, "confirmed with customer", m.Reason)
		assert.Nil(t, m.ReconciliationID)
		assert.True(t, m.AmountDelta.Equal(dec("10.00")))
		assert.Equal(t, 10, m.DateDeltaDays)
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 1.0)
		assert.Equal(t, testNow, m.CreatedAt)

		assert.Equal(t, LineStatusManuallyMatched, f.line.Status)
		assert.True(t, f.txn.IsReconciled)
		assert.Equal(t, m.ID, *f.txn.MatchID)
		assert.Equal(t, StatementStatusReconciled, f.stmt.Status)

		require.Len(t, out.Events, 1)
		assert.Equal(t, EventTypeMatchCreated, out.Events[0].EventType())
	})

	t.Run("claimed line is a conflict", func(t *testing.T) {
		f := newManualFixture(t)
		req := f.request()
		req.ActiveLineMatch = &ReconciliationMatch{ID: uuid.New()}

		_, err := NewManualMatchHandler(nil).Create(req)

		assert.True(t, shared.IsConflict(err))
		assert.Equal(t, LineStatusUnmatched, f.line.Status)
		assert.False(t, f.txn.IsReconciled)
	})

	t.Run("matched line status is a conflict", func(t *testing.T) {
		f := newManualFixture(t)
		f.line.Status = LineStatusAutoMatched

		_, err := NewManualMatchHandler(nil).Create(f.request())

		assert.True(t, shared.IsConflict(err))
	})

	t.Run("reconciled transaction is a conflict", func(t *testing.T) {
		f := newManualFixture(t)
		require.NoError(t, f.txn.MarkAsReconciled(uuid.New()))

		_, err := NewManualMatchHandler(nil).Create(f.request())

		assert.True(t, shared.IsConflict(err))
		assert.Equal(t, LineStatusUnmatched, f.line.Status)
	})

	t.Run("claimed transaction is a conflict", func(t *testing.T) {
		f := newManualFixture(t)
		req := f.request()
		req.ActiveTransactionMatch = &ReconciliationMatch{ID: uuid.New()}

		_, err := NewManualMatchHandler(nil).Create(req)

		assert.True(t, shared.IsConflict(err))
	})

	t.Run("foreign transaction is invalid state", func(t *testing.T) {
		f := newManualFixture(t)
		f.txn.AccountID = uuid.New()

		_, err := NewManualMatchHandler(nil).Create(f.request())

		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("opposite sign is invalid state", func(t *testing.T) {
		f := newManualFixture(t)
		f.txn.Amount = dec("-1250.00")

		_, err := NewManualMatchHandler(nil).Create(f.request())

		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("inactive account is invalid state", func(t *testing.T) {
		f := newManualFixture(t)
		f.acc.Deactivate()

		_, err := NewManualMatchHandler(nil).Create(f.request())

		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("user id is required", func(t *testing.T) {
		f := newManualFixture(t)
		req := f.request()
		req.UserID = "  "

		_, err := NewManualMatchHandler(nil).Create(req)

		assert.True(t, shared.IsValidation(err))
	})

	t.Run("system user id is reserved", func(t *testing.T) {
		for _, user := range []string{SystemCreator, " System "} {
			f := newManualFixture(t)
			req := f.request()
			req.UserID = user

			_, err := NewManualMatchHandler(nil).Create(req)

			assert.True(t, shared.IsValidation(err), "user %q", user)
			assert.Equal(t, LineStatusUnmatched, req.Line.Status)
			assert.False(t, req.Transaction.IsReconciled)
		}
	})
}
