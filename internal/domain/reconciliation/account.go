package reconciliation

import (
	"fmt"
	"strings"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// BankAccountConfig identifies one reconciled bank account.
// BankCode and AccountNumber are immutable; only IsActive changes.
type BankAccountConfig struct {
	shared.BaseEntity
	BankCode      string
	AccountNumber string
	Currency      valueobject.Currency
	IsActive      bool
}

// NewBankAccountConfig creates an active account configuration
func NewBankAccountConfig(bankCode, accountNumber string, currency valueobject.Currency) (*BankAccountConfig, error) {
	bankCode = strings.TrimSpace(bankCode)
	accountNumber = strings.TrimSpace(accountNumber)
	if bankCode == "" {
		return nil, shared.NewValidationError("bank code cannot be empty")
	}
	if accountNumber == "" {
		return nil, shared.NewValidationError("account number cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &BankAccountConfig{
		BaseEntity:    shared.NewBaseEntity(),
		BankCode:      bankCode,
		AccountNumber: accountNumber,
		Currency:      currency,
		IsActive:      true,
	}, nil
}

// Activate enables reconciliation for the account
func (a *BankAccountConfig) Activate() {
	a.IsActive = true
}

// Deactivate disables reconciliation for the account
func (a *BankAccountConfig) Deactivate() {
	a.IsActive = false
}

// DisplayName returns "BANK/number" with all but the last four digits masked
func (a *BankAccountConfig) DisplayName() string {
	num := a.AccountNumber
	if len(num) > 4 {
		num = strings.Repeat("*", len(num)-4) + num[len(num)-4:]
	}
	return fmt.Sprintf("%s/%s", a.BankCode, num)
}

// ensureReconcilable returns INVALID_STATE for inactive accounts
func (a *BankAccountConfig) ensureReconcilable() error {
	if !a.IsActive {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("bank account %s is inactive", a.DisplayName()))
	}
	return nil
}

func accountMismatch(accountID uuid.UUID, what string, id uuid.UUID) error {
	return shared.NewDomainError(shared.CodeInvalidState,
		fmt.Sprintf("%s %s does not belong to account %s", what, id, accountID))
}
