package executor

import (
	"github.com/shopspring/decimal"
)

const bpsFactor = 10000

// SlippageConfig controls the slippage budget granted to an order before
// its limit price is flagged as out of range.
type SlippageConfig struct {
	BaseBps          decimal.Decimal
	MaxBps           decimal.Decimal
	VolatilityFactor decimal.Decimal
	UrgencyBps       decimal.Decimal
}

func DefaultSlippageConfig() SlippageConfig {
	return SlippageConfig{
		BaseBps:          decimal.NewFromInt(5),
		MaxBps:           decimal.NewFromInt(50),
		VolatilityFactor: decimal.NewFromFloat(0.5),
		UrgencyBps:       decimal.NewFromInt(2),
	}
}

// Budget returns the tolerable slippage in price units for the given
// market price, volatility (e.g. ATR over price) and urgency level
// (1-10, 5 is neutral). The total is capped at MaxBps.
func (c SlippageConfig) Budget(price, volatility decimal.Decimal, urgencyLevel int) decimal.Decimal {
	volAdjustment := volatility.Mul(decimal.NewFromInt(bpsFactor)).Mul(c.VolatilityFactor)
	urgencyAdjustment := decimal.NewFromInt(int64(urgencyLevel - 5)).Mul(c.UrgencyBps)

	totalBps := c.BaseBps.Add(volAdjustment).Add(urgencyAdjustment)
	if totalBps.GreaterThan(c.MaxBps) {
		totalBps = c.MaxBps
	}

	return price.Mul(totalBps).Div(decimal.NewFromInt(bpsFactor))
}
