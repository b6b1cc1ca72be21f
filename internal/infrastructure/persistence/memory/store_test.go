package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store     *Store
	account   *reconciliation.BankAccountConfig
	statement *reconciliation.BankStatement
	txns      []*reconciliation.InternalTransaction
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	acc, err := reconciliation.NewBankAccountConfig("CHASE", "000123456789", valueobject.USD)
	require.NoError(t, err)
	lines := []*reconciliation.BankStatementLine{
		reconciliation.NewBankStatementLine(1, decimal.RequireFromString("1250.00"), day(10), "INV-4471", ""),
		reconciliation.NewBankStatementLine(2, decimal.RequireFromString("-89.90"), day(12), "CARD-0091", ""),
	}
	stmt, err := reconciliation.NewBankStatement(acc.ID, day(1), day(31), valueobject.USD, decimal.Zero, decimal.RequireFromString("1160.10"), lines)
	require.NoError(t, err)
	txns := []*reconciliation.InternalTransaction{
		reconciliation.NewInternalTransaction(acc.ID, decimal.RequireFromString("1250.00"), day(10), "INV-4471", ""),
		reconciliation.NewInternalTransaction(acc.ID, decimal.RequireFromString("-89.90"), day(12), "CARD-0091", ""),
	}

	s := NewStore()
	require.NoError(t, s.Seed(context.Background(),
		[]*reconciliation.BankAccountConfig{acc},
		[]*reconciliation.BankStatement{stmt},
		txns))
	return fixture{store: s, account: acc, statement: stmt, txns: txns}
}

func (fx fixture) session(t *testing.T) *reconciliation.SessionResult {
	t.Helper()
	ctx := context.Background()
	stmt, err := fx.store.Statements().FindByID(ctx, fx.statement.ID)
	require.NoError(t, err)
	txns, err := fx.store.Transactions().FindUnreconciled(ctx, fx.account.ID, stmt.CandidateWindow(3, 0))
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

func TestStore_ReadsReturnCopies(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	stmt, err := fx.store.Statements().FindByID(ctx, fx.statement.ID)
	require.NoError(t, err)
	stmt.Lines[0].Status = reconciliation.LineStatusAutoMatched

	again, err := fx.store.Statements().FindByID(ctx, fx.statement.ID)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.LineStatusUnmatched, again.Lines[0].Status)
	assert.Len(t, again.Lines, 2)
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Accounts().FindByID(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))
	_, err = s.Statements().FindLineByID(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))
	_, err = s.Matches().FindByID(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))

	m, err := s.Matches().FindActiveByLine(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, m)
	rec, err := s.Reconciliations().FindLatestByStatement(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_SaveSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res := fx.session(t)
	require.NoError(t, fx.store.UnitOfWork().SaveSession(ctx, res))

	rec, err := fx.store.Reconciliations().FindLatestByStatement(ctx, fx.statement.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, res.Reconciliation.ID, rec.ID)
	assert.Len(t, rec.Matches, 2)

	stmt, err := fx.store.Statements().FindByID(ctx, fx.statement.ID)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StatementStatusReconciled, stmt.Status)
	assert.Equal(t, 2, stmt.Version)

	pool, err := fx.store.Transactions().FindUnreconciled(ctx, fx.account.ID, shared.NewDateWindow(day(1), day(31)))
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func TestStore_StaleWritesConflict(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, second := fx.session(t), fx.session(t)
	require.NoError(t, fx.store.UnitOfWork().SaveSession(ctx, first))

	err := fx.store.UnitOfWork().SaveSession(ctx, second)
	assert.True(t, shared.IsConflict(err))

	_, err = fx.store.Reconciliations().FindByID(ctx, second.Reconciliation.ID)
	assert.True(t, shared.IsNotFound(err))
}

// TestStore_ConcurrentManualMatches races operators for the same line;
// exactly one write wins
func TestStore_ConcurrentManualMatches(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	lineID := fx.statement.Lines[0].ID

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stmt, err := fx.store.Statements().FindByID(ctx, fx.statement.ID)
			if err != nil {
				return
			}
			line, _ := stmt.Line(lineID)
			txn, err := fx.store.Transactions().FindByID(ctx, fx.txns[0].ID)
			if err != nil {
				return
			}
			out, err := reconciliation.NewManualMatchHandler(nil).Create(reconciliation.ManualMatchRequest{
				Account: fx.account, Statement: stmt, Line: line, Transaction: txn,
				UserID: "op", Settings: reconciliation.DefaultSettings(), Now: testNow,
			})
			if err == nil {
				err = fx.store.UnitOfWork().SaveManualMatch(ctx, out)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case shared.IsConflict(err):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflicts)

	matches, err := fx.store.Matches().FindByStatement(ctx, fx.statement.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestStore_Undo(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	res := fx.session(t)
	require.NoError(t, fx.store.UnitOfWork().SaveSession(ctx, res))

	m := res.Reconciliation.Matches[0]
	load := func() *reconciliation.UndoRequest {
		match, err := fx.store.Matches().FindByID(ctx, m.ID)
		require.NoError(t, err)
		stmt, err := fx.store.Statements().FindByID(ctx, m.StatementID)
		require.NoError(t, err)
		line, _ := stmt.Line(m.LineID)
		txn, err := fx.store.Transactions().FindByID(ctx, m.TransactionID)
		require.NoError(t, err)
		return &reconciliation.UndoRequest{Match: match, Statement: stmt, Line: line, Transaction: txn, UserID: "bob", Now: testNow}
	}

	first, second := load(), load()
	out, err := reconciliation.NewUndoHandler().Undo(*first)
	require.NoError(t, err)
	require.NoError(t, fx.store.UnitOfWork().SaveUndo(ctx, out))

	staleOut, err := reconciliation.NewUndoHandler().Undo(*second)
	require.NoError(t, err)
	assert.True(t, shared.IsConflict(fx.store.UnitOfWork().SaveUndo(ctx, staleOut)))

	again, err := reconciliation.NewUndoHandler().Undo(*load())
	require.NoError(t, err)
	assert.False(t, again.Changed, "undoing a revoked match is a no-op")
	require.NoError(t, fx.store.UnitOfWork().SaveUndo(ctx, again))

	rec, err := fx.store.Reconciliations().FindByID(ctx, res.Reconciliation.ID)
	require.NoError(t, err)
	assert.Len(t, rec.ActiveMatches(), 1)

	active, err := fx.store.Matches().FindActiveByLine(ctx, m.LineID)
	require.NoError(t, err)
	assert.Nil(t, active)
	stmt, err := fx.store.Statements().FindByID(ctx, m.StatementID)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StatementStatusPartiallyReconciled, stmt.Status)
}
