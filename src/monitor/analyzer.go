package monitor

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"executioncore/src/model"
)

// aggregate is one moving-average bucket of execution outcomes.
type aggregate struct {
	TotalOrders    int64           `json:"total_orders"`
	AvgSlippageBps decimal.Decimal `json:"avg_slippage_bps"`
	AvgFillRate    decimal.Decimal `json:"avg_fill_rate"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
}

func newAggregate() *aggregate {
	return &aggregate{
		AvgSlippageBps: decimal.Zero,
		AvgFillRate:    decimal.Zero,
		TotalVolume:    decimal.Zero,
	}
}

func (a *aggregate) add(m *model.ExecutionMetrics) {
	n := decimal.NewFromInt(a.TotalOrders)
	next := decimal.NewFromInt(a.TotalOrders + 1)

	a.AvgSlippageBps = a.AvgSlippageBps.Mul(n).Add(m.SlippageBps).Div(next)
	a.AvgFillRate = a.AvgFillRate.Mul(n).Add(m.FillRate).Div(next)
	a.TotalVolume = a.TotalVolume.Add(m.FilledQuantity)
	a.TotalOrders++
}

// RankingEntry pairs a grouping key with its average slippage.
type RankingEntry struct {
	Key            string          `json:"key"`
	AvgSlippageBps decimal.Decimal `json:"avg_slippage_bps"`
}

// HourEntry pairs an hour of day with its average slippage.
type HourEntry struct {
	Hour           int             `json:"hour"`
	AvgSlippageBps decimal.Decimal `json:"avg_slippage_bps"`
}

// QualityReport summarizes execution quality over a period.
type QualityReport struct {
	Period              string          `json:"period"`
	TotalOrders         int             `json:"total_orders"`
	AvgSlippageBps      decimal.Decimal `json:"avg_slippage_bps"`
	AvgFillRate         decimal.Decimal `json:"avg_fill_rate"`
	TotalVolume         decimal.Decimal `json:"total_volume"`
	QualityDistribution map[string]int  `json:"quality_distribution"`
	BestStrategy        *RankingEntry   `json:"best_strategy,omitempty"`
	WorstSymbol         *RankingEntry   `json:"worst_symbol,omitempty"`
	BestTradingHour     *HourEntry      `json:"best_trading_hour,omitempty"`
}

// Analyzer aggregates finalized execution metrics by strategy, symbol
// and hour of day. Not safe for concurrent use; the Monitor serializes
// access.
type Analyzer struct {
	history       []*model.ExecutionMetrics
	strategyStats map[string]*aggregate
	symbolStats   map[string]*aggregate
	hourlyStats   map[int]*aggregate
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		strategyStats: make(map[string]*aggregate),
		symbolStats:   make(map[string]*aggregate),
		hourlyStats:   make(map[int]*aggregate),
	}
}

// AddExecution folds one finalized order into the aggregates. Strategy
// grouping uses the metrics' strategy id; hour grouping uses the
// completion timestamp.
func (a *Analyzer) AddExecution(m *model.ExecutionMetrics) {
	a.history = append(a.history, m)

	strategy := m.StrategyID
	if strategy == "" {
		strategy = "unknown"
	}
	if a.strategyStats[strategy] == nil {
		a.strategyStats[strategy] = newAggregate()
	}
	a.strategyStats[strategy].add(m)

	if a.symbolStats[m.Symbol] == nil {
		a.symbolStats[m.Symbol] = newAggregate()
	}
	a.symbolStats[m.Symbol].add(m)

	hour := m.CompletedAt.Hour()
	if a.hourlyStats[hour] == nil {
		a.hourlyStats[hour] = newAggregate()
	}
	a.hourlyStats[hour].add(m)
}

// StrategyRanking lists strategies best first (lowest average slippage).
func (a *Analyzer) StrategyRanking() []RankingEntry {
	ranking := make([]RankingEntry, 0, len(a.strategyStats))
	for strategy, stats := range a.strategyStats {
		ranking = append(ranking, RankingEntry{Key: strategy, AvgSlippageBps: stats.AvgSlippageBps})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if !ranking[i].AvgSlippageBps.Equal(ranking[j].AvgSlippageBps) {
			return ranking[i].AvgSlippageBps.LessThan(ranking[j].AvgSlippageBps)
		}
		return ranking[i].Key < ranking[j].Key
	})
	return ranking
}

// SymbolRanking lists symbols worst first (highest average slippage).
func (a *Analyzer) SymbolRanking() []RankingEntry {
	ranking := make([]RankingEntry, 0, len(a.symbolStats))
	for symbol, stats := range a.symbolStats {
		ranking = append(ranking, RankingEntry{Key: symbol, AvgSlippageBps: stats.AvgSlippageBps})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if !ranking[i].AvgSlippageBps.Equal(ranking[j].AvgSlippageBps) {
			return ranking[i].AvgSlippageBps.GreaterThan(ranking[j].AvgSlippageBps)
		}
		return ranking[i].Key < ranking[j].Key
	})
	return ranking
}

// BestTradingHours lists hours best first (lowest average slippage).
func (a *Analyzer) BestTradingHours() []HourEntry {
	ranking := make([]HourEntry, 0, len(a.hourlyStats))
	for hour, stats := range a.hourlyStats {
		ranking = append(ranking, HourEntry{Hour: hour, AvgSlippageBps: stats.AvgSlippageBps})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if !ranking[i].AvgSlippageBps.Equal(ranking[j].AvgSlippageBps) {
			return ranking[i].AvgSlippageBps.LessThan(ranking[j].AvgSlippageBps)
		}
		return ranking[i].Hour < ranking[j].Hour
	})
	return ranking
}

// QualityDistribution counts finalized orders per quality rating.
func (a *Analyzer) QualityDistribution() map[string]int {
	distribution := make(map[string]int)
	for _, m := range a.history {
		distribution[m.QualityRating]++
	}
	return distribution
}

// Report summarizes the given period ("daily", "weekly" or "monthly").
// When the period holds no executions, the whole history is summarized
// instead.
func (a *Analyzer) Report(period string, now time.Time) *QualityReport {
	if len(a.history) == 0 {
		return &QualityReport{Period: period, QualityDistribution: map[string]int{}}
	}

	var cutoff time.Time
	switch period {
	case "weekly":
		cutoff = now.Add(-7 * 24 * time.Hour)
	case "monthly":
		cutoff = now.Add(-30 * 24 * time.Hour)
	default:
		period = "daily"
		cutoff = now.Add(-24 * time.Hour)
	}

	recent := make([]*model.ExecutionMetrics, 0, len(a.history))
	for _, m := range a.history {
		if m.CompletedAt.After(cutoff) {
			recent = append(recent, m)
		}
	}
	if len(recent) == 0 {
		recent = a.history
	}

	totalSlippage := decimal.Zero
	totalFillRate := decimal.Zero
	totalVolume := decimal.Zero
	distribution := make(map[string]int)
	for _, m := range recent {
		totalSlippage = totalSlippage.Add(m.SlippageBps)
		totalFillRate = totalFillRate.Add(m.FillRate)
		totalVolume = totalVolume.Add(m.FilledQuantity)
		distribution[m.QualityRating]++
	}
	count := decimal.NewFromInt(int64(len(recent)))

	report := &QualityReport{
		Period:              period,
		TotalOrders:         len(recent),
		AvgSlippageBps:      totalSlippage.Div(count).Round(2),
		AvgFillRate:         totalFillRate.Div(count).Round(2),
		TotalVolume:         totalVolume,
		QualityDistribution: distribution,
	}

	if strategies := a.StrategyRanking(); len(strategies) > 0 {
		report.BestStrategy = &strategies[0]
	}
	if symbols := a.SymbolRanking(); len(symbols) > 0 {
		report.WorstSymbol = &symbols[0]
	}
	if hours := a.BestTradingHours(); len(hours) > 0 {
		report.BestTradingHour = &hours[0]
	}
	return report
}
