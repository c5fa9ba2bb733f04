package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"init to submitted", OrderStatusInitialized, OrderStatusSubmitted, true},
		{"init to denied", OrderStatusInitialized, OrderStatusDenied, true},
		{"init to filled skips states", OrderStatusInitialized, OrderStatusFilled, false},
		{"accepted to partially filled", OrderStatusAccepted, OrderStatusPartiallyFilled, true},
		{"filled is terminal", OrderStatusFilled, OrderStatusCanceled, false},
		{"triggered to filled", OrderStatusTriggered, OrderStatusFilled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestOrderTransitionRejectsInvalidEdge(t *testing.T) {
	t.Parallel()

	o := &Order{Status: OrderStatusInitialized}
	err := o.Transition(OrderStatusFilled, 1)
	assert.Error(t, err)
	assert.Equal(t, OrderStatusInitialized, o.Status, "status must not change on an illegal transition")
}

func TestOrderApplyFillAccumulatesAvgPx(t *testing.T) {
	t.Parallel()

	qty, err := NewQuantity(decimal.NewFromInt(10), 8)
	require.NoError(t, err)

	o := &Order{
		Status:   OrderStatusAccepted,
		Quantity: qty,
	}

	fill1, _ := NewQuantity(decimal.NewFromInt(4), 8)
	px1, _ := ParsePrice("100", 2)
	require.NoError(t, o.ApplyFill(fill1, px1, 2, 1))
	assert.Equal(t, OrderStatusPartiallyFilled, o.Status)

	fill2, _ := NewQuantity(decimal.NewFromInt(6), 8)
	px2, _ := ParsePrice("110", 2)
	require.NoError(t, o.ApplyFill(fill2, px2, 2, 2))
	assert.Equal(t, OrderStatusFilled, o.Status)

	// avg = (4*100 + 6*110) / 10 = 106
	assert.Equal(t, "106.00", o.AvgPx.Decimal.StringFixed(2))
}

func TestOrderApplyFillRejectsOverfill(t *testing.T) {
	t.Parallel()

	qty, _ := NewQuantity(decimal.NewFromInt(1), 8)
	o := &Order{Status: OrderStatusAccepted, Quantity: qty}

	over, _ := NewQuantity(decimal.NewFromInt(2), 8)
	px, _ := ParsePrice("1", 2)
	err := o.ApplyFill(over, px, 2, 1)
	assert.Error(t, err)
}
