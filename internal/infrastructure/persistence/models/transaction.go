package models

import (
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InternalTransactionModel is the persistence model for ledger transactions
type InternalTransactionModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_internal_txn_account_date,priority:1"`
	TransactionDate time.Time       `gorm:"not null;index:idx_internal_txn_account_date,priority:2"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reference       string          `gorm:"type:varchar(140)"`
	Description     string          `gorm:"type:text"`
	IsReconciled    bool            `gorm:"not null;index"`
	MatchID         *uuid.UUID      `gorm:"type:uuid"`
	Version         int             `gorm:"not null;default:1"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InternalTransactionModel) TableName() string {
	return "internal_transactions"
}

// ToDomain converts the persistence model to a domain entity
func (m *InternalTransactionModel) ToDomain() *reconciliation.InternalTransaction {
	return &reconciliation.InternalTransaction{
		ID:              m.ID,
		AccountID:       m.AccountID,
		Amount:          m.Amount,
		TransactionDate: m.TransactionDate.UTC(),
		Reference:       m.Reference,
		Description:     m.Description,
		IsReconciled:    m.IsReconciled,
		MatchID:         m.MatchID,
		Version:         m.Version,
	}
}

// InternalTransactionModelFromDomain creates a persistence model from a domain entity
func InternalTransactionModelFromDomain(t *reconciliation.InternalTransaction) *InternalTransactionModel {
	return &InternalTransactionModel{
		ID:              t.ID,
		AccountID:       t.AccountID,
		Amount:          t.Amount,
		TransactionDate: utc(t.TransactionDate),
		Reference:       t.Reference,
		Description:     t.Description,
		IsReconciled:    t.IsReconciled,
		MatchID:         t.MatchID,
		Version:         t.Version,
	}
}
