package persistence

import (
	"context"
	"errors"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMatchRepository implements reconciliation.MatchRepository
type GormMatchRepository struct {
	db *gorm.DB
}

// NewGormMatchRepository creates a new GormMatchRepository
func NewGormMatchRepository(db *gorm.DB) *GormMatchRepository {
	return &GormMatchRepository{db: db}
}

// FindByID finds a match, revoked or not
func (r *GormMatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.ReconciliationMatch, error) {
	var model models.ReconciliationMatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "match "+id.String())
	}
	m := model.ToDomain()
	return &m, nil
}

// FindActiveByLine returns the non-revoked match holding the line, or nil
func (r *GormMatchRepository) FindActiveByLine(ctx context.Context, lineID uuid.UUID) (*reconciliation.ReconciliationMatch, error) {
	return r.findActive(ctx, "line_id = ?", lineID)
}

// FindActiveByTransaction returns the non-revoked match holding the transaction, or nil
func (r *GormMatchRepository) FindActiveByTransaction(ctx context.Context, txnID uuid.UUID) (*reconciliation.ReconciliationMatch, error) {
	return r.findActive(ctx, "transaction_id = ?", txnID)
}

func (r *GormMatchRepository) findActive(ctx context.Context, cond string, id uuid.UUID) (*reconciliation.ReconciliationMatch, error) {
	var model models.ReconciliationMatchModel
	err := r.db.WithContext(ctx).
		Where(cond, id).
		Where("revoked_at IS NULL").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "active match")
	}
	m := model.ToDomain()
	return &m, nil
}

// FindByStatement returns every match of a statement ordered by creation
func (r *GormMatchRepository) FindByStatement(ctx context.Context, statementID uuid.UUID) ([]reconciliation.ReconciliationMatch, error) {
	var rows []models.ReconciliationMatchModel
	err := r.db.WithContext(ctx).
		Where("statement_id = ?", statementID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err, "statement matches")
	}
	matches := make([]reconciliation.ReconciliationMatch, 0, len(rows))
	for i := range rows {
		matches = append(matches, rows[i].ToDomain())
	}
	return matches, nil
}

var _ reconciliation.MatchRepository = (*GormMatchRepository)(nil)
