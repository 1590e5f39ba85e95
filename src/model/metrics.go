package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution quality ratings, keyed off absolute slippage.
const (
	QualityExcellent = "EXCELLENT" // < 5 bps
	QualityGood      = "GOOD"      // 5-15 bps
	QualityFair      = "FAIR"      // 15-30 bps
	QualityPoor      = "POOR"      // >= 30 bps
)

var bpsFactor = decimal.NewFromInt(10000)

// ExecutionMetrics holds the derived quality numbers for one order,
// computed once filling is final.
type ExecutionMetrics struct {
	OrderID        string          `gorm:"primaryKey;size:64;column:order_id" json:"order_id"`
	StrategyID     string          `gorm:"size:100;index" json:"strategy_id"`
	Symbol         string          `gorm:"size:50;index" json:"symbol"`
	Side           string          `gorm:"size:10" json:"side"`
	TotalQuantity  decimal.Decimal `gorm:"type:numeric" json:"total_quantity"`
	FilledQuantity decimal.Decimal `gorm:"type:numeric" json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `gorm:"type:numeric" json:"avg_fill_price"`
	DecisionPrice  decimal.Decimal `gorm:"type:numeric" json:"decision_price"`
	ArrivalPrice   decimal.Decimal `gorm:"type:numeric" json:"arrival_price"`

	SlippageBps                decimal.Decimal `gorm:"type:numeric" json:"slippage_bps"`
	FillRate                   decimal.Decimal `gorm:"type:numeric" json:"fill_rate"`
	MarketImpactBps            decimal.Decimal `gorm:"type:numeric" json:"market_impact_bps"`
	ImplementationShortfallBps decimal.Decimal `gorm:"type:numeric" json:"implementation_shortfall_bps"`

	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	FirstFillTimeSeconds float64 `json:"first_fill_time_seconds"`

	TotalCommission decimal.Decimal `gorm:"type:numeric" json:"total_commission"`
	TotalCost       decimal.Decimal `gorm:"type:numeric" json:"total_cost"`

	QualityRating string    `gorm:"size:20" json:"quality_rating"`
	CompletedAt   time.Time `json:"completed_at"`
}

// TableName allows you to control the exact table name for execution metrics.
func (ExecutionMetrics) TableName() string {
	return "execution_metrics"
}

// Calculate derives fill rate, slippage, market impact, implementation
// shortfall, total cost and the quality rating from the raw fields.
func (m *ExecutionMetrics) Calculate() {
	if m.TotalQuantity.IsPositive() {
		m.FillRate = m.FilledQuantity.Div(m.TotalQuantity).Mul(decimal.NewFromInt(100)).Round(2)
	}

	// Slippage against the decision price, sign flipped for sells so that
	// a positive number always means worse than intended.
	if m.DecisionPrice.IsPositive() && m.AvgFillPrice.IsPositive() {
		diff := m.AvgFillPrice.Sub(m.DecisionPrice)
		if m.Side == SideSell {
			diff = diff.Neg()
		}
		m.SlippageBps = diff.Div(m.DecisionPrice).Mul(bpsFactor).Round(2)
	}

	// Market impact uses the same formula against the arrival price.
	if m.ArrivalPrice.IsPositive() && m.AvgFillPrice.IsPositive() {
		diff := m.AvgFillPrice.Sub(m.ArrivalPrice)
		if m.Side == SideSell {
			diff = diff.Neg()
		}
		m.MarketImpactBps = diff.Div(m.ArrivalPrice).Mul(bpsFactor).Round(2)
	}

	// Implementation shortfall: cost-inclusive deviation of the executed
	// value from the decision-price value.
	if m.DecisionPrice.IsPositive() && m.FilledQuantity.IsPositive() {
		decisionValue := m.DecisionPrice.Mul(m.FilledQuantity)
		actualValue := m.AvgFillPrice.Mul(m.FilledQuantity).Add(m.TotalCommission)
		diff := actualValue.Sub(decisionValue)
		if m.Side == SideSell {
			diff = diff.Neg()
		}
		m.ImplementationShortfallBps = diff.Div(decisionValue).Mul(bpsFactor).Round(2)
	}

	m.TotalCost = m.TotalCommission.Add(
		m.SlippageBps.Abs().Div(bpsFactor).Mul(m.DecisionPrice).Mul(m.FilledQuantity))

	m.QualityRating = qualityRating(m.SlippageBps)
}

func qualityRating(slippageBps decimal.Decimal) string {
	abs := slippageBps.Abs()
	switch {
	case abs.LessThan(decimal.NewFromInt(5)):
		return QualityExcellent
	case abs.LessThan(decimal.NewFromInt(15)):
		return QualityGood
	case abs.LessThan(decimal.NewFromInt(30)):
		return QualityFair
	default:
		return QualityPoor
	}
}
