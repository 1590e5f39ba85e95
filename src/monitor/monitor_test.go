package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executioncore/src/model"
)

func monitorConfig() Config {
	return Config{
		FillTimeout:         300 * time.Second,
		PartialStall:        120 * time.Second,
		PriceDeviation:      0.02,
		DuplicateWindow:     60 * time.Second,
		SweepInterval:       10 * time.Second,
		SlippageWarningBps:  20,
		SlippageCriticalBps: 50,
		FillRateWarning:     80,
		FillRateCritical:    50,
	}
}

func filledOrder(orderID string, total, filled int64, avgPrice float64, submittedAgo, completedAgo time.Duration, now time.Time) *model.Order {
	submitted := now.Add(-submittedAgo)
	completed := now.Add(-completedAgo)
	return &model.Order{
		OrderID:        orderID,
		SignalID:       "sig-1",
		Symbol:         "AAPL",
		Side:           model.SideBuy,
		TotalQuantity:  decimal.NewFromInt(total),
		FilledQuantity: decimal.NewFromInt(filled),
		AvgPrice:       decimal.NewFromFloat(avgPrice),
		OrderType:      model.OrderTypeMarket,
		Algorithm:      model.AlgorithmImmediate,
		Status:         model.OrderStatusFilled,
		SubmittedAt:    &submitted,
		CompletedAt:    &completed,
		Metadata:       map[string]any{"strategy_id": "momentum_v1"},
	}
}

func fillReport(orderID string, execID string, qty int64, price float64, ts time.Time) *model.ExecutionReport {
	return &model.ExecutionReport{
		ReportID:   "rep-" + execID,
		OrderID:    orderID,
		SliceID:    "slc-1",
		ExecID:     execID,
		Symbol:     "AAPL",
		Side:       model.SideBuy,
		Quantity:   decimal.NewFromInt(qty),
		Price:      decimal.NewFromFloat(price),
		Timestamp:  ts,
		Venue:      "mock",
		Commission: decimal.Zero,
	}
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []*model.Alert
}

func (r *alertRecorder) record(alert *model.Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	r.mu.Unlock()
}

func (r *alertRecorder) byCategory(category string) []*model.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Alert
	for _, a := range r.alerts {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

func TestFinalizeOrderComputesMetrics(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	// bought at 150.15 against a 150.00 decision price: 10 bps slippage
	order := filledOrder("ord-1", 100, 100, 150.15, 30*time.Second, 0, now)
	metrics := m.FinalizeOrder(order, decimal.NewFromInt(150))

	assert.True(t, metrics.SlippageBps.Equal(decimal.NewFromInt(10)), "got %s", metrics.SlippageBps)
	assert.True(t, metrics.FillRate.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, model.QualityGood, metrics.QualityRating)
	assert.InDelta(t, 30.0, metrics.ExecutionTimeSeconds, 1e-9)
	assert.Equal(t, "momentum_v1", metrics.StrategyID)
}

func TestQualityRatingBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		name     string
		avgPrice float64
		want     string
	}{
		{"excellent under 5bps", 150.06, model.QualityExcellent}, // 4 bps
		{"good at 5bps", 150.075, model.QualityGood},             // exactly 5 bps
		{"fair at 15bps", 150.225, model.QualityFair},            // exactly 15 bps
		{"poor at 30bps", 150.45, model.QualityPoor},             // exactly 30 bps
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))
			order := filledOrder("ord-"+tc.name, 100, 100, tc.avgPrice, 30*time.Second, 0, now)
			metrics := m.FinalizeOrder(order, decimal.NewFromInt(150))
			assert.Equal(t, tc.want, metrics.QualityRating)
		})
	}
}

func TestLowFillRateRaisesCriticalAlert(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	recorder := &alertRecorder{}
	m := NewMonitor(nil, monitorConfig(),
		WithClock(func() time.Time { return now }),
		WithAlertHook(recorder.record))

	// 40% filled is below the 50% critical threshold
	order := filledOrder("ord-1", 1000, 400, 150, 60*time.Second, 0, now)
	order.Status = model.OrderStatusPartiallyFilled
	m.FinalizeOrder(order, decimal.NewFromInt(150))

	alerts := recorder.byCategory(model.AlertCategoryFillRate)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertLevelCritical, alerts[0].Level)
}

func TestHighSlippageRaisesWarningThenCritical(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	recorder := &alertRecorder{}
	m := NewMonitor(nil, monitorConfig(),
		WithClock(func() time.Time { return now }),
		WithAlertHook(recorder.record))

	// 30 bps is above warning (20) but below critical (50)
	warn := filledOrder("ord-warn", 100, 100, 150.45, 30*time.Second, 0, now)
	m.FinalizeOrder(warn, decimal.NewFromInt(150))

	// 60 bps crosses the critical threshold
	crit := filledOrder("ord-crit", 100, 100, 150.90, 30*time.Second, 0, now)
	m.FinalizeOrder(crit, decimal.NewFromInt(150))

	alerts := recorder.byCategory(model.AlertCategorySlippage)
	require.Len(t, alerts, 2)
	assert.Equal(t, model.AlertLevelWarning, alerts[0].Level)
	assert.Equal(t, model.AlertLevelCritical, alerts[1].Level)
}

func TestDuplicateFillDetected(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	recorder := &alertRecorder{}
	m := NewMonitor(nil, monitorConfig(),
		WithClock(func() time.Time { return now }),
		WithAlertHook(recorder.record))

	order := filledOrder("ord-1", 100, 100, 150, 30*time.Second, 0, now)
	order.Status = model.OrderStatusPartiallyFilled

	report := fillReport("ord-1", "exec-1", 50, 150, now)
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))

	anomalies := m.Anomalies("", 10)
	require.Len(t, anomalies, 1)
	assert.Equal(t, model.AnomalyDuplicateFill, anomalies[0].AnomalyType)
	assert.Equal(t, model.SeverityHigh, anomalies[0].Severity)

	alerts := recorder.byCategory(model.AlertCategoryAnomaly)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertLevelError, alerts[0].Level)
}

func TestPriceAnomalyDetected(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	// fill price 5% away from the quoted market
	order := filledOrder("ord-1", 100, 100, 157.50, 30*time.Second, 0, now)
	report := fillReport("ord-1", "exec-1", 100, 157.50, now)
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))

	anomalies := m.Anomalies("", 10)
	require.Len(t, anomalies, 1)
	assert.Equal(t, model.AnomalyPriceAnomaly, anomalies[0].AnomalyType)
}

func TestResolveAnomaly(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	order := filledOrder("ord-1", 100, 100, 157.50, 30*time.Second, 0, now)
	report := fillReport("ord-1", "exec-1", 100, 157.50, now)
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))

	anomalies := m.Anomalies("", 10)
	require.Len(t, anomalies, 1)
	id := anomalies[0].AnomalyID

	assert.True(t, m.ResolveAnomaly(id, "bad quote upstream"))

	resolved := m.Anomalies(model.AnomalyStatusResolved, 10)
	require.Len(t, resolved, 1)
	assert.Equal(t, "bad quote upstream", resolved[0].Resolution)
	require.NotNil(t, resolved[0].ResolvedAt)
	assert.Equal(t, now, *resolved[0].ResolvedAt)

	// already resolved and unknown ids are both conflicts
	assert.False(t, m.ResolveAnomaly(id, "again"))
	assert.False(t, m.ResolveAnomaly("missing", "nope"))
}

func TestSweepDetectsDelayedFillAndStall(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	// submitted 400s ago, still partially filled, last fill 200s ago
	order := filledOrder("ord-1", 1000, 100, 150, 400*time.Second, 0, now)
	order.Status = model.OrderStatusPartiallyFilled
	order.Slices = []model.OrderSlice{{
		SliceID: "slc-1",
		Fills: []model.Fill{{
			ExecID:    "exec-1",
			Quantity:  decimal.NewFromInt(100),
			Price:     decimal.NewFromInt(150),
			Timestamp: now.Add(-200 * time.Second),
		}},
	}}

	report := fillReport("ord-1", "exec-1", 100, 150, now.Add(-200*time.Second))
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))

	m.CheckActiveOrders()

	types := make(map[string]bool)
	for _, anomaly := range m.Anomalies("", 10) {
		types[anomaly.AnomalyType] = true
	}
	assert.True(t, types[model.AnomalyDelayedFill])
	assert.True(t, types[model.AnomalyPartialStall])
}

func TestRepeatedSweepsKeepSingleAnomalyEntry(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	recorder := &alertRecorder{}
	m := NewMonitor(nil, monitorConfig(),
		WithClock(func() time.Time { return now }),
		WithAlertHook(recorder.record))

	order := filledOrder("ord-1", 1000, 100, 150, 400*time.Second, 0, now)
	order.Status = model.OrderStatusPartiallyFilled
	order.Slices = []model.OrderSlice{{
		SliceID: "slc-1",
		Fills: []model.Fill{{
			ExecID:    "exec-1",
			Quantity:  decimal.NewFromInt(100),
			Price:     decimal.NewFromInt(150),
			Timestamp: now.Add(-200 * time.Second),
		}},
	}}

	report := fillReport("ord-1", "exec-1", 100, 150, now.Add(-200*time.Second))
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))

	m.CheckActiveOrders()
	m.CheckActiveOrders()
	m.CheckActiveOrders()

	anomalies := m.Anomalies("", 10)
	require.Len(t, anomalies, 2)
	assert.Len(t, recorder.byCategory(model.AlertCategoryAnomaly), 2)

	// a resolved condition that persists reopens its entry instead of
	// adding another
	for _, anomaly := range anomalies {
		require.True(t, m.ResolveAnomaly(anomaly.AnomalyID, "noted"))
	}
	m.CheckActiveOrders()

	anomalies = m.Anomalies("", 10)
	require.Len(t, anomalies, 2)
	for _, anomaly := range anomalies {
		assert.Equal(t, model.AnomalyStatusOpen, anomaly.Status)
		assert.Empty(t, anomaly.Resolution)
		assert.Nil(t, anomaly.ResolvedAt)
	}
}

func TestSweepSkipsTerminalOrders(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	order := filledOrder("ord-1", 100, 100, 150, 400*time.Second, 0, now)
	report := fillReport("ord-1", "exec-1", 100, 150, now)
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))

	m.CheckActiveOrders()
	assert.Empty(t, m.Anomalies("", 10))
}

func TestFinalizeRemovesFromActiveOrders(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	order := filledOrder("ord-1", 100, 100, 150, 30*time.Second, 0, now)
	report := fillReport("ord-1", "exec-1", 100, 150, now)
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))
	require.Len(t, m.ActiveOrders(), 1)

	m.FinalizeOrder(order, decimal.NewFromInt(150))
	assert.Empty(t, m.ActiveOrders())

	metrics, ok := m.OrderMetrics("ord-1")
	require.True(t, ok)
	assert.Equal(t, model.QualityExcellent, metrics.QualityRating)
}

func TestDashboardSummary(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	order := filledOrder("ord-1", 100, 100, 150.45, 30*time.Second, 0, now)
	report := fillReport("ord-1", "exec-1", 100, 150.45, now)
	m.OnExecutionReport(report, order, decimal.NewFromInt(150))
	m.FinalizeOrder(order, decimal.NewFromInt(150))

	dashboard := m.Dashboard()
	assert.Equal(t, int64(1), dashboard.ReportsProcessed)
	assert.NotZero(t, dashboard.TotalAlerts)
	assert.Empty(t, dashboard.ActiveOrders)
	require.NotNil(t, dashboard.QualityReport)
	assert.Equal(t, 1, dashboard.QualityReport.TotalOrders)
}

func TestAlertsFilterAndLimit(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	m := NewMonitor(nil, monitorConfig(), WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		order := filledOrder("ord-crit", 1000, 100, 150, 30*time.Second, 0, now)
		order.OrderID = order.OrderID + string(rune('a'+i))
		order.Status = model.OrderStatusPartiallyFilled
		m.FinalizeOrder(order, decimal.NewFromInt(150))
	}

	critical := m.Alerts(model.AlertLevelCritical, 2)
	assert.Len(t, critical, 2)
	for _, alert := range critical {
		assert.Equal(t, model.AlertLevelCritical, alert.Level)
	}

	assert.Empty(t, m.Alerts(model.AlertLevelInfo, 10))
}
