package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyType_IsValid(t *testing.T) {
	for _, st := range AllStrategyTypes() {
		assert.True(t, st.IsValid(), st.String())
	}
	assert.False(t, StrategyType("pricing").IsValid())
	assert.False(t, StrategyType("").IsValid())
}

func TestBaseStrategy(t *testing.T) {
	s := NewBaseStrategy("greedy", StrategyTypeAssignment, "highest confidence first")
	assert.Equal(t, "greedy", s.Name())
	assert.Equal(t, StrategyTypeAssignment, s.Type())
	assert.Equal(t, "highest confidence first", s.Description())
}
