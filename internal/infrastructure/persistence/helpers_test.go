package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	account   *reconciliation.BankAccountConfig
	statement *reconciliation.BankStatement
	txns      []*reconciliation.InternalTransaction
}

// seed stores an account, a two-line March statement and three ledger entries:
// one exact match per line plus an unrelated entry
func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	ctx := context.Background()

	acc, err := reconciliation.NewBankAccountConfig("CHASE", "000123456789", valueobject.USD)
	require.NoError(t, err)
	require.NoError(t, NewGormAccountRepository(db).Save(ctx, acc))

	lines := []*reconciliation.BankStatementLine{
		reconciliation.NewBankStatementLine(1, dec("1250.00"), day(10), "INV-4471", "ACME payment"),
		reconciliation.NewBankStatementLine(2, dec("-89.90"), day(12), "CARD-0091", "Office supplies"),
	}
	stmt, err := reconciliation.NewBankStatement(acc.ID, day(1), day(31), valueobject.USD, dec("1000.00"), dec("2160.10"), lines)
	require.NoError(t, err)
	require.NoError(t, NewGormStatementRepository(db).Save(ctx, stmt))

	txns := []*reconciliation.InternalTransaction{
		reconciliation.NewInternalTransaction(acc.ID, dec("1250.00"), day(10), "INV-4471", "ACME"),
		reconciliation.NewInternalTransaction(acc.ID, dec("-89.90"), day(12), "CARD-0091", "Supplies"),
		reconciliation.NewInternalTransaction(acc.ID, dec("300.00"), day(25), "DEP-7", "Deposit"),
	}
	txnRepo := NewGormTransactionRepository(db)
	for _, txn := range txns {
		require.NoError(t, txnRepo.Save(ctx, txn))
	}
	return fixture{account: acc, statement: stmt, txns: txns}
}
