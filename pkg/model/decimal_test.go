package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceRoundsToPrecision(t *testing.T) {
	t.Parallel()

	p, err := ParsePrice("100.12345", 2)
	require.NoError(t, err)
	assert.Equal(t, "100.12", p.Decimal.String())
}

func TestQuantityRejectsNegative(t *testing.T) {
	t.Parallel()

	_, err := NewQuantity(decimal.NewFromFloat(-1), 8)
	assert.Error(t, err)
}

func TestMinQuantity(t *testing.T) {
	t.Parallel()

	a, _ := NewQuantity(decimal.NewFromFloat(1.5), 8)
	b, _ := NewQuantity(decimal.NewFromFloat(0.5), 8)
	assert.True(t, MinQuantity(a, b).Equal(b))
	assert.True(t, MinQuantity(b, a).Equal(b))
}

func TestMoneyArithmeticSameCurrency(t *testing.T) {
	t.Parallel()

	a := NewMoney(decimal.NewFromFloat(10), USD)
	b := NewMoney(decimal.NewFromFloat(3.5), USD)

	assert.Equal(t, "13.50", a.Add(b).Decimal.StringFixed(2))
	assert.Equal(t, "6.50", a.Sub(b).Decimal.StringFixed(2))
}

func TestMoneyArithmeticMismatchedCurrencyPanics(t *testing.T) {
	t.Parallel()

	a := NewMoney(decimal.NewFromFloat(10), USD)
	b := NewMoney(decimal.NewFromFloat(10), BTC)

	assert.Panics(t, func() {
		a.Add(b)
	})
}
