package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUnitOfWork implements reconciliation.UnitOfWork. Each outcome is
// written in one transaction; every row it touches is updated on the version
// it was loaded with, so a concurrent writer makes the whole batch fail with
// a conflict and nothing is written.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// SaveSession writes the reconciliation, its matches and discrepancies,
// the settled lines and the claimed transactions
func (u *GormUnitOfWork) SaveSession(ctx context.Context, result *reconciliation.SessionResult) error {
	rec := result.Reconciliation
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc().UTC()
		if err := updateStatement(tx, result.Statement, now); err != nil {
			return err
		}
		for _, line := range result.UpdatedLines {
			if err := updateLine(tx, line, now); err != nil {
				return err
			}
		}
		for _, txn := range result.ClaimedTransactions {
			if err := claimTransaction(tx, txn, now); err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Create(models.ReconciliationModelFromDomain(rec)).Error; err != nil {
			return translateError(err, "reconciliation "+rec.ID.String())
		}
		if len(rec.Matches) > 0 {
			rows := make([]*models.ReconciliationMatchModel, 0, len(rec.Matches))
			for i := range rec.Matches {
				rows = append(rows, models.ReconciliationMatchModelFromDomain(&rec.Matches[i]))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return translateError(err, "session matches")
			}
		}
		if len(rec.Discrepancies) > 0 {
			rows := make([]*models.ReconciliationDiscrepancyModel, 0, len(rec.Discrepancies))
			for i := range rec.Discrepancies {
				rows = append(rows, models.ReconciliationDiscrepancyModelFromDomain(&rec.Discrepancies[i], i))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return translateError(err, "discrepancies")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	result.Statement.Version++
	for _, line := range result.UpdatedLines {
		line.Version++
	}
	for _, txn := range result.ClaimedTransactions {
		txn.Version++
	}
	return nil
}

// SaveManualMatch writes a manual match and claims both sides
func (u *GormUnitOfWork) SaveManualMatch(ctx context.Context, outcome *reconciliation.ManualMatchOutcome) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc().UTC()
		if err := updateStatement(tx, outcome.Statement, now); err != nil {
			return err
		}
		if err := updateLine(tx, outcome.Line, now); err != nil {
			return err
		}
		if err := claimTransaction(tx, outcome.Transaction, now); err != nil {
			return err
		}
		if err := tx.Create(models.ReconciliationMatchModelFromDomain(outcome.Match)).Error; err != nil {
			return translateError(err, "match for line "+outcome.Line.ID.String())
		}
		return nil
	})
	if err != nil {
		return err
	}

	outcome.Statement.Version++
	outcome.Line.Version++
	outcome.Transaction.Version++
	return nil
}

// SaveUndo writes the revocation and releases both sides.
// An outcome that changed nothing is not written.
func (u *GormUnitOfWork) SaveUndo(ctx context.Context, outcome *reconciliation.UndoOutcome) error {
	if !outcome.Changed {
		return nil
	}
	m := outcome.Match
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc().UTC()
		result := tx.Model(&models.ReconciliationMatchModel{}).
			Where("id = ? AND version = ? AND revoked_at IS NULL", m.ID, m.Version).
			Updates(map[string]any{
				"revoked_at": m.RevokedAt.UTC(),
				"revoked_by": m.RevokedBy,
				"version":    m.Version + 1,
			})
		if err := checkAffected(result, "match "+m.ID.String()); err != nil {
			return err
		}
		if outcome.Statement != nil {
			if err := updateStatement(tx, outcome.Statement, now); err != nil {
				return err
			}
		}
		if err := updateLine(tx, outcome.Line, now); err != nil {
			return err
		}
		return releaseTransaction(tx, outcome.Transaction, now)
	})
	if err != nil {
		return err
	}

	m.Version++
	if outcome.Statement != nil {
		outcome.Statement.Version++
	}
	outcome.Line.Version++
	outcome.Transaction.Version++
	return nil
}

func updateStatement(tx *gorm.DB, s *reconciliation.BankStatement, now time.Time) error {
	result := tx.Model(&models.BankStatementModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]any{
			"status":     s.Status,
			"version":    s.Version + 1,
			"updated_at": now,
		})
	return checkAffected(result, fmt.Sprintf("bank statement %s", s.ID))
}

func updateLine(tx *gorm.DB, l *reconciliation.BankStatementLine, now time.Time) error {
	result := tx.Model(&models.BankStatementLineModel{}).
		Where("id = ? AND version = ?", l.ID, l.Version).
		Updates(map[string]any{
			"status":     l.Status,
			"version":    l.Version + 1,
			"updated_at": now,
		})
	return checkAffected(result, fmt.Sprintf("statement line %s", l.ID))
}

func claimTransaction(tx *gorm.DB, t *reconciliation.InternalTransaction, now time.Time) error {
	result := tx.Model(&models.InternalTransactionModel{}).
		Where("id = ? AND version = ? AND is_reconciled = ?", t.ID, t.Version, false).
		Updates(map[string]any{
			"is_reconciled": true,
			"match_id":      t.MatchID,
			"version":       t.Version + 1,
			"updated_at":    now,
		})
	return checkAffected(result, fmt.Sprintf("transaction %s", t.ID))
}

func releaseTransaction(tx *gorm.DB, t *reconciliation.InternalTransaction, now time.Time) error {
	result := tx.Model(&models.InternalTransactionModel{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]any{
			"is_reconciled": false,
			"match_id":      nil,
			"version":       t.Version + 1,
			"updated_at":    now,
		})
	return checkAffected(result, fmt.Sprintf("transaction %s", t.ID))
}

var _ reconciliation.UnitOfWork = (*GormUnitOfWork)(nil)
