package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/reconciler/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps driver errors onto domain errors. Unique violations
// on the active-match indexes surface as conflicts.
func translateError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError(fmt.Sprintf("%s not found", what))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewConflictError(fmt.Sprintf("%s already exists or is already claimed", what))
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// checkAffected turns a zero-row conditional update into a conflict
func checkAffected(result *gorm.DB, what string) error {
	if result.Error != nil {
		return translateError(result.Error, what)
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError(fmt.Sprintf("%s was modified by another process", what))
	}
	return nil
}
