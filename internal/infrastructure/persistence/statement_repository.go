package persistence

import (
	"context"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStatementRepository implements reconciliation.StatementRepository
type GormStatementRepository struct {
	db *gorm.DB
}

// NewGormStatementRepository creates a new GormStatementRepository
func NewGormStatementRepository(db *gorm.DB) *GormStatementRepository {
	return &GormStatementRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC")
}

// FindByID finds a statement with its lines ordered by sequence
func (r *GormStatementRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.BankStatement, error) {
	var model models.BankStatementModel
	err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err, "bank statement "+id.String())
	}
	return model.ToDomain(), nil
}

// FindLineByID finds a single statement line
func (r *GormStatementRepository) FindLineByID(ctx context.Context, lineID uuid.UUID) (*reconciliation.BankStatementLine, error) {
	var model models.BankStatementLineModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", lineID).Error; err != nil {
		return nil, translateError(err, "statement line "+lineID.String())
	}
	return model.ToDomain(), nil
}

// Save stores a newly imported statement with its lines
func (r *GormStatementRepository) Save(ctx context.Context, statement *reconciliation.BankStatement) error {
	model := models.BankStatementModelFromDomain(statement)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Create(model).Error; err != nil {
			return translateError(err, "bank statement "+statement.ID.String())
		}
		if len(model.Lines) == 0 {
			return nil
		}
		if err := tx.Create(&model.Lines).Error; err != nil {
			return translateError(err, "statement lines")
		}
		return nil
	})
}

var _ reconciliation.StatementRepository = (*GormStatementRepository)(nil)
