package persistence

import (
	"context"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAccountRepository implements reconciliation.AccountRepository
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID finds an account configuration by ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.BankAccountConfig, error) {
	var model models.BankAccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "bank account "+id.String())
	}
	return model.ToDomain(), nil
}

// Save creates or updates an account configuration.
// Bank code and account number are never rewritten.
func (r *GormAccountRepository) Save(ctx context.Context, account *reconciliation.BankAccountConfig) error {
	model := models.BankAccountModelFromDomain(account)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"currency", "is_active", "updated_at"}),
		}).
		Create(model).Error
	return translateError(err, "bank account "+account.ID.String())
}

var _ reconciliation.AccountRepository = (*GormAccountRepository)(nil)
