package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewConflictError("line already claimed")
		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("persist session: %w", NewNotFoundError("statement not found"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.True(t, IsNotFound(err))
		assert.False(t, IsConflict(err))
	})

	t.Run("plain errors never match", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, IsNotFound(err))
		assert.False(t, IsConflict(err))
		assert.False(t, IsValidation(err))
	})
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(NewValidationError("negative tolerance")))
	assert.True(t, IsValidation(NewDomainError(CodeInvalidInput, "bad id")))
	assert.False(t, IsValidation(ErrInvalidState))
}
