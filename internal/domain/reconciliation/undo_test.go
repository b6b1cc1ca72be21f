package reconciliation

import (
	"testing"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndoHandler_Undo(t *testing.T) {
	t.Run("revokes and releases both sides", func(t *testing.T) {
		f := newManualFixture(t)
		created, err := NewManualMatchHandler(nil).Create(f.request())
		require.NoError(t, err)

		out, err := NewUndoHandler().Undo(UndoRequest{
			Match: created.Match, Statement: f.stmt, Line: f.line, Transaction: f.txn,
			UserID: "bob", Now: testNow.Add(1),
		})

		require.NoError(t, err)
		assert.True(t, out.Changed)
		assert.False(t, created.Match.IsActive())
		assert.Equal(t, "bob", created.Match.RevokedBy)
		assert.Equal(t, LineStatusUnmatched, f.line.Status)
		assert.False(t, f.txn.IsReconciled)
		assert.Nil(t, f.txn.MatchID)
		assert.Equal(t, StatementStatusOpen, f.stmt.Status)
		require.Len(t, out.Events, 1)
		assert.Equal(t, EventTypeMatchRevoked, out.Events[0].EventType())
	})

	t.Run("undo is idempotent", func(t *testing.T) {
		f := newManualFixture(t)
		created, err := NewManualMatchHandler(nil).Create(f.request())
		require.NoError(t, err)
		req := UndoRequest{Match: created.Match, Statement: f.stmt, Line: f.line, Transaction: f.txn, UserID: "bob", Now: testNow}
		_, err = NewUndoHandler().Undo(req)
		require.NoError(t, err)
		revokedAt := *created.Match.RevokedAt

		req.UserID = "carol"
		req.Now = testNow.Add(3600)
		again, err := NewUndoHandler().Undo(req)

		require.NoError(t, err)
		assert.False(t, again.Changed)
		assert.Empty(t, again.Events)
		assert.Equal(t, "bob", created.Match.RevokedBy)
		assert.Equal(t, revokedAt, *created.Match.RevokedAt)
	})

	t.Run("undo then manual match reproduces the pair", func(t *testing.T) {
		f := newManualFixture(t)
		first, err := NewManualMatchHandler(nil).Create(f.request())
		require.NoError(t, err)
		_, err = NewUndoHandler().Undo(UndoRequest{Match: first.Match, Statement: f.stmt, Line: f.line, Transaction: f.txn, UserID: "bob", Now: testNow})
		require.NoError(t, err)

		req := f.request()
		req.UserID = "dave"
		second, err := NewManualMatchHandler(nil).Create(req)

		require.NoError(t, err)
		assert.NotEqual(t, first.Match.ID, second.Match.ID)
		assert.Equal(t, first.Match.LineID, second.Match.LineID)
		assert.Equal(t, first.Match.TransactionID, second.Match.TransactionID)
		assert.True(t, first.Match.AmountDelta.Equal(second.Match.AmountDelta))
		assert.Equal(t, first.Match.DateDeltaDays, second.Match.DateDeltaDays)
		assert.Equal(t, first.Match.MatchType, second.Match.MatchType)
		assert.Equal(t, "dave", second.Match.CreatedBy)
		assert.True(t, second.Match.IsActive())
	})

	t.Run("mismatched sides are rejected", func(t *testing.T) {
		f := newManualFixture(t)
		created, err := NewManualMatchHandler(nil).Create(f.request())
		require.NoError(t, err)
		stranger := newTxn(f.acc, "1.00", day(2025, 3, 1), "")

		_, err = NewUndoHandler().Undo(UndoRequest{Match: created.Match, Line: f.line, Transaction: stranger, UserID: "bob", Now: testNow})

		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.True(t, created.Match.IsActive())
	})

	t.Run("transaction held by another match is rejected", func(t *testing.T) {
		f := newManualFixture(t)
		created, err := NewManualMatchHandler(nil).Create(f.request())
		require.NoError(t, err)
		other := uuid.New()
		f.txn.MatchID = &other

		_, err = NewUndoHandler().Undo(UndoRequest{Match: created.Match, Line: f.line, Transaction: f.txn, UserID: "bob", Now: testNow})

		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.True(t, created.Match.IsActive())
		assert.Equal(t, LineStatusManuallyMatched, f.line.Status)
	})
}
