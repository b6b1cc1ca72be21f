//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/migration"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupPostgresDB starts a PostgreSQL container, applies the embedded
// migrations and returns a GORM connection to it.
// Run with: go test -tags integration ./internal/infrastructure/persistence/...
func setupPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("reconciler_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	// the migrator closes the connection it was given
	migrateDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(migrateDB)
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, m.Close())

	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestPostgres_SaveSession(t *testing.T) {
	db := setupPostgresDB(t)
	r := newRepos(db)
	ctx := context.Background()
	fx := seed(t, db)

	res := runSession(t, r, fx)
	stale := runSession(t, r, fx)
	require.NoError(t, r.uow.SaveSession(ctx, res))

	rec, err := r.reconciliations.FindLatestByStatement(ctx, fx.statement.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, res.Reconciliation.ID, rec.ID)
	assert.Len(t, rec.Matches, 2)
	require.Len(t, rec.Discrepancies, 1)
	assert.True(t, rec.Discrepancies[0].AmountDifference.Equal(dec("-300")))

	// jsonb columns
	assert.True(t, rec.Settings.AmountTolerance.Equal(dec("1.00")))
	assert.Equal(t, reconciliation.DefaultSettings().DateToleranceDays, rec.Settings.DateToleranceDays)
	assert.Equal(t, 2, rec.Summary.AutoMatched)
	assert.True(t, rec.Summary.ResidualDifference.Amount().Equal(dec("-300")))

	err = r.uow.SaveSession(ctx, stale)
	assert.True(t, shared.IsConflict(err), "unexpected error: %v", err)
}

func TestPostgres_ActiveMatchIndexes(t *testing.T) {
	db := setupPostgresDB(t)
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
		Settings:    reconciliation.DefaultSettings(),
		Now:         testNow,
	})
	require.NoError(t, err)
	require.NoError(t, r.uow.SaveManualMatch(ctx, created))

	insertMatch := func(lineID, txnID uuid.UUID) error {
		dup := *created.Match
		dup.ID = uuid.New()
		dup.LineID = lineID
		dup.TransactionID = txnID
		return db.WithContext(ctx).Create(models.ReconciliationMatchModelFromDomain(&dup)).Error
	}

	t.Run("second active match on the transaction is rejected", func(t *testing.T) {
		err := insertMatch(stmt.Lines[1].ID, txn.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "unexpected error: %v", err)
		assert.True(t, shared.IsConflict(translateError(err, "match")))
	})

	t.Run("second active match on the line is rejected", func(t *testing.T) {
		err := insertMatch(line.ID, fx.txns[2].ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "unexpected error: %v", err)
	})

	t.Run("a revoked match frees the pair", func(t *testing.T) {
		stored, err := r.matches.FindActiveByLine(ctx, line.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)

		undone, err := reconciliation.NewUndoHandler().Undo(reconciliation.UndoRequest{
			Match:       stored,
			Statement:   stmt,
			Line:        line,
			Transaction: txn,
			UserID:      "bob",
			Now:         testNow,
		})
		require.NoError(t, err)
		require.NoError(t, r.uow.SaveUndo(ctx, undone))

		again, err := reconciliation.NewManualMatchHandler(nil).Create(reconciliation.ManualMatchRequest{
			Account:     fx.account,
			Statement:   stmt,
			Line:        line,
			Transaction: txn,
			UserID:      "bob",
			Settings:    reconciliation.DefaultSettings(),
			Now:         testNow,
		})
		require.NoError(t, err)
		require.NoError(t, r.uow.SaveManualMatch(ctx, again))

		history, err := r.matches.FindByStatement(ctx, fx.statement.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})
}
