package persistence

import (
	"context"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTransactionRepository implements reconciliation.TransactionRepository
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID finds a transaction by ID
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.InternalTransaction, error) {
	var model models.InternalTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "transaction "+id.String())
	}
	return model.ToDomain(), nil
}

// FindUnreconciled returns the account's unreconciled transactions dated inside window
func (r *GormTransactionRepository) FindUnreconciled(ctx context.Context, accountID uuid.UUID, window shared.DateWindow) ([]*reconciliation.InternalTransaction, error) {
	var rows []models.InternalTransactionModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND is_reconciled = ?", accountID, false).
		Where("transaction_date >= ? AND transaction_date < ?", window.From, window.To.AddDate(0, 0, 1)).
		Order("transaction_date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err, "unreconciled transactions")
	}
	txns := make([]*reconciliation.InternalTransaction, 0, len(rows))
	for i := range rows {
		txns = append(txns, rows[i].ToDomain())
	}
	return txns, nil
}

// Save creates or updates a transaction as recorded by the ledger
func (r *GormTransactionRepository) Save(ctx context.Context, txn *reconciliation.InternalTransaction) error {
	model := models.InternalTransactionModelFromDomain(txn)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"amount", "transaction_date", "reference", "description",
				"is_reconciled", "match_id", "version", "updated_at",
			}),
		}).
		Create(model).Error
	return translateError(err, "transaction "+txn.ID.String())
}

var _ reconciliation.TransactionRepository = (*GormTransactionRepository)(nil)
