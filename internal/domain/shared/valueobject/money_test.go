package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("US")
	assert.Error(t, err)
	_, err = ParseCurrency("U$D")
	assert.Error(t, err)
}

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.RequireFromString("1250.00"), USD)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromInt(1250)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(1), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("1,250", USD)
		assert.Error(t, err)
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustNewMoney(decimal.RequireFromString("100.10"), USD)
	b := MustNewMoney(decimal.RequireFromString("-0.10"), USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "100.00 USD", sum.String())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.RequireFromString("100.20")))

	assert.True(t, b.IsNegative())
	assert.True(t, b.Abs().Equals(MustNewMoney(decimal.RequireFromString("0.10"), USD)))
	assert.True(t, a.Negate().IsNegative())
	assert.True(t, Zero(USD).AddAmount(decimal.NewFromInt(3)).Equals(MustNewMoney(decimal.NewFromInt(3), USD)))

	_, err = a.Add(Zero(EUR))
	assert.Error(t, err)
	_, err = a.Subtract(Zero(EUR))
	assert.Error(t, err)
}

func TestMoney_JSON(t *testing.T) {
	m := MustNewMoney(decimal.RequireFromString("12.34"), EUR)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.34","currency":"EUR"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equals(m))
}
