package models

import (
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
)

// BankAccountModel is the persistence model for reconciled bank accounts
type BankAccountModel struct {
	BaseModel
	BankCode      string `gorm:"type:varchar(20);not null;uniqueIndex:idx_bank_account_number,priority:1"`
	AccountNumber string `gorm:"type:varchar(64);not null;uniqueIndex:idx_bank_account_number,priority:2"`
	Currency      string `gorm:"type:varchar(3);not null"`
	IsActive      bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return "bank_accounts"
}

// ToDomain converts the persistence model to a domain entity
func (m *BankAccountModel) ToDomain() *reconciliation.BankAccountConfig {
	return &reconciliation.BankAccountConfig{
		BaseEntity:    m.BaseModel.ToDomain(),
		BankCode:      m.BankCode,
		AccountNumber: m.AccountNumber,
		Currency:      valueobject.Currency(m.Currency),
		IsActive:      m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain entity
func (m *BankAccountModel) FromDomain(a *reconciliation.BankAccountConfig) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.BankCode = a.BankCode
	m.AccountNumber = a.AccountNumber
	m.Currency = string(a.Currency)
	m.IsActive = a.IsActive
}

// BankAccountModelFromDomain creates a persistence model from a domain entity
func BankAccountModelFromDomain(a *reconciliation.BankAccountConfig) *BankAccountModel {
	m := &BankAccountModel{}
	m.FromDomain(a)
	return m
}
