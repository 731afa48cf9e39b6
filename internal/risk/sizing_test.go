package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/junghoon-woo/danta/internal/domain"
)

func TestMacroMultiplier(t *testing.T) {
	tests := []struct {
		change float64
		want   float64
	}{
		{-5.0, 0.3},
		{-3.0, 0.3},
		{-2.5, 0.5},
		{-2.0, 0.5},
		{-1.5, 0.7},
		{-1.0, 0.7},
		{-0.99, 1.0},
		{0.0, 1.0},
		{2.4, 1.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MacroMultiplier(tt.change), "change %.2f", tt.change)
	}
}

func TestBudget_MinOfConfigAndCashSplit(t *testing.T) {
	p := domain.UserPolicy{MaxHoldings: 5, PerTickerBudget: 1_000_000}

	// Cash split across free slots exceeds the ceiling.
	assert.Equal(t, 1_000_000.0, Budget(p, 10_000_000, 2, 1.0))

	// Cash split is the binding constraint: 1.5M over 3 free slots.
	assert.Equal(t, 500_000.0, Budget(p, 1_500_000, 2, 1.0))

	// All slots taken still divides by one, not zero.
	assert.Equal(t, 1_000_000.0, Budget(p, 2_000_000, 5, 1.0))

	// Macro multiplier scales the result.
	assert.Equal(t, 500_000.0, Budget(p, 10_000_000, 2, 0.5))

	// No configured ceiling leaves the cash split.
	open := domain.UserPolicy{MaxHoldings: 4}
	assert.Equal(t, 2_500_000.0, Budget(open, 10_000_000, 0, 1.0))

	assert.Zero(t, Budget(p, 0, 0, 1.0))
	assert.Zero(t, Budget(p, -500, 0, 1.0))
}

func TestQuantity(t *testing.T) {
	assert.Equal(t, int64(14), Quantity(1_000_000, 70_000))
	assert.Equal(t, int64(1), Quantity(70_000, 70_000))
	assert.Equal(t, int64(0), Quantity(69_999, 70_000))
	assert.Equal(t, int64(0), Quantity(1_000_000, 0), "no price, no order")
	assert.Equal(t, int64(0), Quantity(0, 70_000))
}
