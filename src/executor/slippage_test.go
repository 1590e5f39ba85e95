package executor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSlippageBudgetNeutralUrgency(t *testing.T) {
	cfg := DefaultSlippageConfig()

	// base 5 bps + 2% vol * 0.5 = 100 bps, capped at 50 bps
	budget := cfg.Budget(decimal.NewFromInt(100), decimal.NewFromFloat(0.02), 5)
	assert.True(t, budget.Equal(decimal.NewFromFloat(0.5)), "got %s", budget)
}

func TestSlippageBudgetLowVolatility(t *testing.T) {
	cfg := DefaultSlippageConfig()

	// base 5 + 0.1% vol * 0.5 = 10 bps, under the cap
	budget := cfg.Budget(decimal.NewFromInt(100), decimal.NewFromFloat(0.001), 5)
	assert.True(t, budget.Equal(decimal.NewFromFloat(0.1)), "got %s", budget)
}

func TestSlippageBudgetUrgencyAdjustment(t *testing.T) {
	cfg := DefaultSlippageConfig()

	low := cfg.Budget(decimal.NewFromInt(100), decimal.NewFromFloat(0.001), 1)
	high := cfg.Budget(decimal.NewFromInt(100), decimal.NewFromFloat(0.001), 9)

	// urgency 1 subtracts 8 bps, urgency 9 adds 8 bps
	assert.True(t, low.Equal(decimal.NewFromFloat(0.02)), "got %s", low)
	assert.True(t, high.Equal(decimal.NewFromFloat(0.18)), "got %s", high)
}
