package persistence

import (
	"context"
	"errors"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReconciliationRepository implements reconciliation.ReconciliationRepository
type GormReconciliationRepository struct {
	db *gorm.DB
}

// NewGormReconciliationRepository creates a new GormReconciliationRepository
func NewGormReconciliationRepository(db *gorm.DB) *GormReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

func (r *GormReconciliationRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Matches", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Discrepancies", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID finds a run with its matches and discrepancies
func (r *GormReconciliationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.Reconciliation, error) {
	var model models.ReconciliationModel
	if err := r.withChildren(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "reconciliation "+id.String())
	}
	return model.ToDomain(), nil
}

// FindLatestByStatement returns the newest run of a statement, or nil
func (r *GormReconciliationRepository) FindLatestByStatement(ctx context.Context, statementID uuid.UUID) (*reconciliation.Reconciliation, error) {
	var model models.ReconciliationModel
	err := r.withChildren(ctx).
		Where("statement_id = ?", statementID).
		Order("started_at DESC, created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "latest reconciliation")
	}
	return model.ToDomain(), nil
}

var _ reconciliation.ReconciliationRepository = (*GormReconciliationRepository)(nil)
