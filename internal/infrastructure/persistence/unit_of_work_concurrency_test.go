package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockUnitOfWork creates a unit of work over a mocked postgres connection
func newMockUnitOfWork(t *testing.T) (*GormUnitOfWork, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormUnitOfWork(gormDB), mock, mockDB
}

func newManualOutcome(t *testing.T) *reconciliation.ManualMatchOutcome {
	t.Helper()
	acc, err := reconciliation.NewBankAccountConfig("CHASE", "000123456789", valueobject.USD)
	require.NoError(t, err)
	line := reconciliation.NewBankStatementLine(1, dec("1250.00"), day(10), "INV-4471", "")
	stmt, err := reconciliation.NewBankStatement(acc.ID, day(1), day(31), valueobject.USD, dec("0"), dec("1250.00"), []*reconciliation.BankStatementLine{line})
	require.NoError(t, err)
	txn := reconciliation.NewInternalTransaction(acc.ID, dec("1250.00"), day(10), "INV-4471", "")

	out, err := reconciliation.NewManualMatchHandler(nil).Create(reconciliation.ManualMatchRequest{
		Account:     acc,
		Statement:   stmt,
		Line:        line,
		Transaction: txn,
		UserID:      "alice",
		Settings:    reconciliation.DefaultSettings(),
		Now:         testNow,
	})
	require.NoError(t, err)
	return out
}

// TestGormUnitOfWork_VersionConditionalUpdates checks that every write is
// conditioned on the loaded version and a zero-row update aborts the batch
func TestGormUnitOfWork_VersionConditionalUpdates(t *testing.T) {
	t.Run("commits when every row is still on its loaded version", func(t *testing.T) {
		uow, mock, mockDB := newMockUnitOfWork(t)
		defer mockDB.Close()
		out := newManualOutcome(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bank_statements" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "bank_statement_lines" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "internal_transactions" SET .* WHERE id = \$\d+ AND version = \$\d+ AND is_reconciled = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "reconciliation_matches"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, uow.SaveManualMatch(context.Background(), out))
		assert.Equal(t, 2, out.Statement.Version)
		assert.Equal(t, 2, out.Line.Version)
		assert.Equal(t, 2, out.Transaction.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the line moved on", func(t *testing.T) {
		uow, mock, mockDB := newMockUnitOfWork(t)
		defer mockDB.Close()
		out := newManualOutcome(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bank_statements" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "bank_statement_lines" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := uow.SaveManualMatch(context.Background(), out)
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
		assert.Equal(t, 1, out.Line.Version, "versions only advance after commit")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the transaction was claimed elsewhere", func(t *testing.T) {
		uow, mock, mockDB := newMockUnitOfWork(t)
		defer mockDB.Close()
		out := newManualOutcome(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bank_statements" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "bank_statement_lines" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "internal_transactions" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := uow.SaveManualMatch(context.Background(), out)
		assert.True(t, shared.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("undo that changed nothing issues no statements", func(t *testing.T) {
		uow, mock, mockDB := newMockUnitOfWork(t)
		defer mockDB.Close()

		require.NoError(t, uow.SaveUndo(context.Background(), &reconciliation.UndoOutcome{Changed: false}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
