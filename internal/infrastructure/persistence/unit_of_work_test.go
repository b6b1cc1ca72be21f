package persistence

import (
	"context"
	"testing"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type repos struct {
	statements      *GormStatementRepository
	transactions    *GormTransactionRepository
	matches         *GormMatchRepository
	reconciliations *GormReconciliationRepository
	uow             *GormUnitOfWork
}

func newRepos(db *gorm.DB) repos {
	return repos{
		statements:      NewGormStatementRepository(db),
		transactions:    NewGormTransactionRepository(db),
		matches:         NewGormMatchRepository(db),
		reconciliations: NewGormReconciliationRepository(db),
		uow:             NewGormUnitOfWork(db),
	}
}

func runSession(t *testing.T, r repos, fx fixture) *reconciliation.SessionResult {
	t.Helper()
	ctx := context.Background()
	stmt, err := r.statements.FindByID(ctx, fx.statement.ID)
	require.NoError(t, err)
	txns, err := r.transactions.FindUnreconciled(ctx, fx.account.ID, stmt.CandidateWindow(3, 0))
	require.NoError(t, err)

	res, err := reconciliation.NewReconciliationSession(nil).Run(ctx, reconciliation.SessionInput{
		Account:      fx.account,
		Statement:    stmt,
		Transactions: txns,
		Settings:     reconciliation.DefaultSettings(),
		Now:          testNow,
	})
	require.NoError(t, err)
	return res
}

func TestGormUnitOfWork_SaveSession(t *testing.T) {
	db := setupTestDB(t)
	r := newRepos(db)
	ctx := context.Background()
	fx := seed(t, db)

	res := runSession(t, r, fx)
	require.NoError(t, r.uow.SaveSession(ctx, res))
	assert.Equal(t, 2, res.Statement.Version)

	t.Run("persists the run with matches and discrepancies", func(t *testing.T) {
		rec, err := r.reconciliations.FindLatestByStatement(ctx, fx.statement.ID)
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, res.Reconciliation.ID, rec.ID)
		assert.True(t, rec.IsFinalized())
		assert.Len(t, rec.Matches, 2)
		require.Len(t, rec.Discrepancies, 1)
		assert.Equal(t, reconciliation.DiscrepancyUnmatchedLedgerEntry, rec.Discrepancies[0].Category)
		assert.True(t, rec.Discrepancies[0].AmountDifference.Equal(dec("-300")))
		assert.Equal(t, 2, rec.Summary.AutoMatched)
		assert.Equal(t, reconciliation.DefaultSettings().SuggestionLimit, rec.Settings.SuggestionLimit)
		assert.True(t, rec.Settings.AmountTolerance.Equal(dec("1.00")))
	})

	t.Run("claims lines and transactions", func(t *testing.T) {
		stmt, err := r.statements.FindByID(ctx, fx.statement.ID)
		require.NoError(t, err)
		assert.Equal(t, reconciliation.StatementStatusReconciled, stmt.Status)
		for _, l := range stmt.Lines {
			assert.Equal(t, reconciliation.LineStatusAutoMatched, l.Status)
			assert.Equal(t, 2, l.Version)

			m, err := r.matches.FindActiveByLine(ctx, l.ID)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, reconciliation.SystemCreator, m.CreatedBy)
		}

		txn, err := r.transactions.FindByID(ctx, fx.txns[0].ID)
		require.NoError(t, err)
		assert.True(t, txn.IsReconciled)
		require.NotNil(t, txn.MatchID)

		byTxn, err := r.matches.FindActiveByTransaction(ctx, txn.ID)
		require.NoError(t, err)
		require.NotNil(t, byTxn)
		assert.Equal(t, *txn.MatchID, byTxn.ID)
	})

	t.Run("lists matches by statement", func(t *testing.T) {
		matches, err := r.matches.FindByStatement(ctx, fx.statement.ID)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
}

func TestGormUnitOfWork_StaleSessionConflicts(t *testing.T) {
	db := setupTestDB(t)
	r := newRepos(db)
	ctx := context.Background()
	fx := seed(t, db)

	first := runSession(t, r, fx)
	second := runSession(t, r, fx)

	require.NoError(t, r.uow.SaveSession(ctx, first))
	err := r.uow.SaveSession(ctx, second)
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	_, err = r.reconciliations.FindByID(ctx, second.Reconciliation.ID)
	assert.True(t, shared.IsNotFound(err), "the losing batch writes nothing")

	matches, err := r.matches.FindByStatement(ctx, fx.statement.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestGormUnitOfWork_ManualMatchAndUndo(t *testing.T) {
	db := setupTestDB(t)
	r := newRepos(db)
	ctx := context.Background()
	fx := seed(t, db)

	stmt, err := r.statements.FindByID(ctx, fx.statement.ID)
	require.NoError(t, err)
	line := stmt.Lines[0]
	txn, err := r.transactions.FindByID(ctx, fx.txns[0].ID)
	require.NoError(t, err)

	created, err := reconciliation.NewManualMatchHandler(nil).Create(reconciliation.ManualMatchRequest{
		Account:     fx.account,
		Statement:   stmt,
		Line:        line,
		Transaction: txn,
		UserID:      "alice",
		Reason:      "confirmed with ACME",
		Settings:    reconciliation.DefaultSettings(),
		Now:         testNow,
	})
	require.NoError(t, err)
	require.NoError(t, r.uow.SaveManualMatch(ctx, created))

	stored, err := r.matches.FindActiveByLine(ctx, line.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, reconciliation.MatchTypeManual, stored.MatchType)
	assert.Equal(t, "alice", stored.CreatedBy)
	assert.Equal(t, "confirmed with ACME", stored.Reason)

	persistedLine, err := r.statements.FindLineByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.LineStatusManuallyMatched, persistedLine.Status)

	t.Run("undo revokes and releases both sides", func(t *testing.T) {
		undone, err := reconciliation.NewUndoHandler().Undo(reconciliation.UndoRequest{
			Match:       stored,
			Statement:   stmt,
			Line:        line,
			Transaction: txn,
			UserID:      "bob",
			Now:         testNow,
		})
		require.NoError(t, err)
		require.True(t, undone.Changed)
		require.NoError(t, r.uow.SaveUndo(ctx, undone))

		active, err := r.matches.FindActiveByLine(ctx, line.ID)
		require.NoError(t, err)
		assert.Nil(t, active)

		history, err := r.matches.FindByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.False(t, history.IsActive())
		assert.Equal(t, "bob", history.RevokedBy)

		released, err := r.transactions.FindByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.False(t, released.IsReconciled)
		assert.Nil(t, released.MatchID)

		reopened, err := r.statements.FindLineByID(ctx, line.ID)
		require.NoError(t, err)
		assert.Equal(t, reconciliation.LineStatusUnmatched, reopened.Status)
	})

	t.Run("a second undo with a stale copy conflicts", func(t *testing.T) {
		stale := *stored
		stale.RevokedAt = nil
		stale.RevokedBy = ""
		stale.Version = 1
		staleLine := *line
		staleTxn := *txn
		staleTxn.IsReconciled = true
		staleTxn.MatchID = &stale.ID

		undone, err := reconciliation.NewUndoHandler().Undo(reconciliation.UndoRequest{
			Match:       &stale,
			Line:        &staleLine,
			Transaction: &staleTxn,
			UserID:      "carol",
			Now:         testNow,
		})
		require.NoError(t, err)
		err = r.uow.SaveUndo(ctx, undone)
		assert.True(t, shared.IsConflict(err))
	})
}
