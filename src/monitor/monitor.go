// Package monitor tracks live order execution, raises alerts on poor
// quality and aggregates per-order metrics into reports.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"executioncore/src/model"
)

// Stats are the monitor's lifetime counters.
type Stats struct {
	ReportsProcessed int64            `json:"reports_processed"`
	TotalAlerts      int64            `json:"total_alerts"`
	TotalAnomalies   int64            `json:"total_anomalies"`
	AlertsByLevel    map[string]int64 `json:"alerts_by_level"`
}

// ActiveOrderStatus is a dashboard row for one monitored order.
type ActiveOrderStatus struct {
	OrderID    string          `json:"order_id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Status     string          `json:"status"`
	FillRate   decimal.Decimal `json:"fill_rate"`
	LastUpdate time.Time       `json:"last_update"`
}

// DashboardSummary is the full monitoring snapshot served to operators.
type DashboardSummary struct {
	ReportsProcessed int64                 `json:"reports_processed"`
	TotalAlerts      int64                 `json:"total_alerts"`
	TotalAnomalies   int64                 `json:"total_anomalies"`
	AlertsByLevel    map[string]int64      `json:"alerts_by_level"`
	ActiveOrders     []ActiveOrderStatus   `json:"active_orders"`
	RecentAlerts     []*model.Alert        `json:"recent_alerts"`
	RecentAnomalies  []*model.OrderAnomaly `json:"recent_anomalies"`
	QualityReport    *QualityReport        `json:"quality_report"`
}

type monitoredOrder struct {
	order         *model.Order
	decisionPrice decimal.Decimal
	lastUpdate    time.Time
	reportCount   int
}

// Monitor is the execution monitoring hub. A single mutex guards all
// state; alert hooks fire outside the lock, exactly once per alert.
type Monitor struct {
	log      *logrus.Entry
	config   Config
	detector  *AnomalyDetector
	analyzer  *Analyzer
	onAlert   func(*model.Alert)
	onAnomaly func(*model.OrderAnomaly)

	mu        sync.Mutex
	monitored    map[string]*monitoredOrder
	metrics      map[string]*model.ExecutionMetrics
	alerts       []*model.Alert
	anomalies    []*model.OrderAnomaly
	anomalyIndex map[string]*model.OrderAnomaly
	stats     Stats

	now func() time.Time
}

type Option func(*Monitor)

// WithAlertHook registers a callback fired once for every alert.
func WithAlertHook(hook func(*model.Alert)) Option {
	return func(m *Monitor) { m.onAlert = hook }
}

// WithAnomalyHook registers a callback fired once for every detected
// anomaly. The hook runs while the monitor lock is held and must not call
// back into the monitor.
func WithAnomalyHook(hook func(*model.OrderAnomaly)) Option {
	return func(m *Monitor) { m.onAnomaly = hook }
}

// WithClock overrides the monitor's time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(log *logrus.Entry, config Config, opts ...Option) *Monitor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	m := &Monitor{
		log:       log,
		config:    config,
		detector:  NewAnomalyDetector(config),
		analyzer:  NewAnalyzer(),
		monitored:    make(map[string]*monitoredOrder),
		metrics:      make(map[string]*model.ExecutionMetrics),
		anomalyIndex: make(map[string]*model.OrderAnomaly),
		stats:        Stats{AlertsByLevel: make(map[string]int64)},
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the periodic active-order sweep. It returns after
// spawning; the sweep stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.log.Info("execution monitor stopped")
				return
			case <-ticker.C:
				m.CheckActiveOrders()
			}
		}
	}()
	m.log.Info("execution monitor started")
}

// CheckActiveOrders sweeps monitored orders for delayed fills and
// partial stalls. Terminal orders are skipped.
func (m *Monitor) CheckActiveOrders() {
	now := m.now()

	m.mu.Lock()
	var pending []*model.Alert
	for _, info := range m.monitored {
		order := info.order
		if order.IsTerminal() {
			continue
		}

		if anomaly := m.detector.DetectDelayedFill(order, now); anomaly != nil {
			pending = append(pending, m.recordAnomalyLocked(anomaly)...)
		}
		if anomaly := m.detector.DetectPartialStall(order, now); anomaly != nil {
			pending = append(pending, m.recordAnomalyLocked(anomaly)...)
		}
	}
	m.mu.Unlock()

	m.dispatch(pending)
}

// OnExecutionReport ingests one fill report for an order. The decision
// price is the market quote captured when the order was routed; it
// anchors both slippage metrics and price anomaly detection.
func (m *Monitor) OnExecutionReport(report *model.ExecutionReport, order *model.Order, decisionPrice decimal.Decimal) {
	now := m.now()

	m.mu.Lock()
	m.stats.ReportsProcessed++

	var pending []*model.Alert
	if anomaly := m.detector.DetectDuplicateFill(order.OrderID, report.ExecID, now); anomaly != nil {
		pending = append(pending, m.recordAnomalyLocked(anomaly)...)
	}
	if anomaly := m.detector.DetectPriceAnomaly(order, decisionPrice, now); anomaly != nil {
		pending = append(pending, m.recordAnomalyLocked(anomaly)...)
	}

	metrics, known := m.metrics[order.OrderID]
	if !known {
		metrics = m.newMetrics(order, decisionPrice)
		if order.SubmittedAt != nil {
			metrics.FirstFillTimeSeconds = now.Sub(*order.SubmittedAt).Seconds()
		}
		m.metrics[order.OrderID] = metrics
	}
	metrics.FilledQuantity = order.FilledQuantity
	metrics.AvgFillPrice = order.AvgPrice
	metrics.Calculate()

	info := m.monitored[order.OrderID]
	if info == nil {
		info = &monitoredOrder{}
		m.monitored[order.OrderID] = info
	}
	// the caller hands the monitor a snapshot; keep the newest one so the
	// sweep never reads state the execution loop is still mutating
	info.order = order
	info.decisionPrice = decisionPrice
	info.lastUpdate = now
	info.reportCount++

	pending = append(pending, m.checkThresholdsLocked(metrics)...)
	m.mu.Unlock()

	m.dispatch(pending)
}

// FinalizeOrder computes the order's final metrics, hands them to the
// analyzer and stops monitoring the order.
func (m *Monitor) FinalizeOrder(order *model.Order, decisionPrice decimal.Decimal) *model.ExecutionMetrics {
	now := m.now()

	m.mu.Lock()
	metrics, known := m.metrics[order.OrderID]
	if !known {
		metrics = m.newMetrics(order, decisionPrice)
		m.metrics[order.OrderID] = metrics
	}

	metrics.FilledQuantity = order.FilledQuantity
	metrics.AvgFillPrice = order.AvgPrice

	switch {
	case order.SubmittedAt != nil && order.CompletedAt != nil:
		metrics.ExecutionTimeSeconds = order.CompletedAt.Sub(*order.SubmittedAt).Seconds()
		metrics.CompletedAt = *order.CompletedAt
	case order.SubmittedAt != nil:
		metrics.ExecutionTimeSeconds = now.Sub(*order.SubmittedAt).Seconds()
		metrics.CompletedAt = now
	default:
		metrics.CompletedAt = now
	}

	metrics.Calculate()
	m.analyzer.AddExecution(metrics)

	pending := m.checkThresholdsLocked(metrics)

	delete(m.monitored, order.OrderID)
	m.detector.ForgetOrder(order.OrderID)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"order_id":     order.OrderID,
		"slippage_bps": metrics.SlippageBps,
		"fill_rate":    metrics.FillRate,
		"quality":      metrics.QualityRating,
	}).Info("order execution finalized")

	m.dispatch(pending)
	return metrics
}

func (m *Monitor) newMetrics(order *model.Order, decisionPrice decimal.Decimal) *model.ExecutionMetrics {
	strategyID, _ := order.Metadata["strategy_id"].(string)
	return &model.ExecutionMetrics{
		OrderID:        order.OrderID,
		StrategyID:     strategyID,
		Symbol:         order.Symbol,
		Side:           order.Side,
		TotalQuantity:  order.TotalQuantity,
		FilledQuantity: order.FilledQuantity,
		AvgFillPrice:   order.AvgPrice,
		DecisionPrice:  decisionPrice,
		ArrivalPrice:   decisionPrice,
	}
}

// checkThresholdsLocked raises slippage and fill-rate alerts for the
// given metrics. Critical thresholds suppress the matching warning.
func (m *Monitor) checkThresholdsLocked(metrics *model.ExecutionMetrics) []*model.Alert {
	var pending []*model.Alert

	absSlippage := metrics.SlippageBps.Abs()
	switch {
	case absSlippage.GreaterThan(decimal.NewFromFloat(m.config.SlippageCriticalBps)):
		pending = append(pending, m.raiseAlertLocked(
			model.AlertLevelCritical, model.AlertCategorySlippage,
			fmt.Sprintf("slippage above critical threshold: %sbps", metrics.SlippageBps),
			metrics.OrderID, metrics.Symbol,
			map[string]any{"slippage_bps": metrics.SlippageBps.String()},
		))
	case absSlippage.GreaterThan(decimal.NewFromFloat(m.config.SlippageWarningBps)):
		pending = append(pending, m.raiseAlertLocked(
			model.AlertLevelWarning, model.AlertCategorySlippage,
			fmt.Sprintf("slippage above warning threshold: %sbps", metrics.SlippageBps),
			metrics.OrderID, metrics.Symbol,
			map[string]any{"slippage_bps": metrics.SlippageBps.String()},
		))
	}

	switch {
	case metrics.FillRate.LessThan(decimal.NewFromFloat(m.config.FillRateCritical)):
		pending = append(pending, m.raiseAlertLocked(
			model.AlertLevelCritical, model.AlertCategoryFillRate,
			fmt.Sprintf("fill rate below critical threshold: %s%%", metrics.FillRate),
			metrics.OrderID, metrics.Symbol,
			map[string]any{"fill_rate": metrics.FillRate.String()},
		))
	case metrics.FillRate.LessThan(decimal.NewFromFloat(m.config.FillRateWarning)):
		pending = append(pending, m.raiseAlertLocked(
			model.AlertLevelWarning, model.AlertCategoryFillRate,
			fmt.Sprintf("fill rate below warning threshold: %s%%", metrics.FillRate),
			metrics.OrderID, metrics.Symbol,
			map[string]any{"fill_rate": metrics.FillRate.String()},
		))
	}

	return pending
}

// recordAnomalyLocked registers an anomaly and raises its alert. Anomaly
// ids are stable per condition and order, so a condition that persists
// across sweeps keeps its single entry; a resolved condition that comes
// back reopens it.
func (m *Monitor) recordAnomalyLocked(anomaly *model.OrderAnomaly) []*model.Alert {
	if existing, ok := m.anomalyIndex[anomaly.AnomalyID]; ok {
		switch existing.Status {
		case model.AnomalyStatusOpen, model.AnomalyStatusInvestigating:
			return nil
		}
		existing.Status = model.AnomalyStatusOpen
		existing.Description = anomaly.Description
		existing.DetectedAt = anomaly.DetectedAt
		existing.Resolution = ""
		existing.ResolvedAt = nil
		anomaly = existing
	} else {
		m.anomalies = append(m.anomalies, anomaly)
		m.anomalyIndex[anomaly.AnomalyID] = anomaly
	}
	m.stats.TotalAnomalies++
	if m.onAnomaly != nil {
		m.onAnomaly(anomaly)
	}

	m.log.WithFields(logrus.Fields{
		"anomaly_type": anomaly.AnomalyType,
		"order_id":     anomaly.OrderID,
	}).Warn(anomaly.Description)

	alert := m.raiseAlertLocked(
		model.AlertLevelForSeverity(anomaly.Severity),
		model.AlertCategoryAnomaly,
		anomaly.Description,
		anomaly.OrderID, "",
		map[string]any{
			"anomaly_type": anomaly.AnomalyType,
			"severity":     anomaly.Severity,
		},
	)
	return []*model.Alert{alert}
}

func (m *Monitor) raiseAlertLocked(level, category, message, orderID, symbol string, metadata map[string]any) *model.Alert {
	alert := &model.Alert{
		AlertID:   uuid.NewString(),
		Level:     level,
		Category:  category,
		Message:   message,
		OrderID:   orderID,
		Symbol:    symbol,
		Timestamp: m.now(),
		Metadata:  metadata,
	}

	m.alerts = append(m.alerts, alert)
	m.stats.TotalAlerts++
	m.stats.AlertsByLevel[level]++
	return alert
}

// dispatch fires the alert hook outside the lock.
func (m *Monitor) dispatch(alerts []*model.Alert) {
	for _, alert := range alerts {
		entry := m.log.WithFields(logrus.Fields{
			"level":    alert.Level,
			"category": alert.Category,
			"order_id": alert.OrderID,
		})
		switch alert.Level {
		case model.AlertLevelCritical, model.AlertLevelError:
			entry.Error(alert.Message)
		case model.AlertLevelWarning:
			entry.Warn(alert.Message)
		default:
			entry.Info(alert.Message)
		}

		if m.onAlert != nil {
			m.onAlert(alert)
		}
	}
}

// OrderMetrics returns the computed metrics for an order.
func (m *Monitor) OrderMetrics(orderID string) (*model.ExecutionMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics, ok := m.metrics[orderID]
	return metrics, ok
}

// ActiveOrders lists the orders still being monitored.
func (m *Monitor) ActiveOrders() []ActiveOrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]ActiveOrderStatus, 0, len(m.monitored))
	for orderID, info := range m.monitored {
		active = append(active, ActiveOrderStatus{
			OrderID:    orderID,
			Symbol:     info.order.Symbol,
			Side:       info.order.Side,
			Status:     info.order.Status,
			FillRate:   info.order.FillRate(),
			LastUpdate: info.lastUpdate,
		})
	}
	return active
}

// Alerts returns up to limit recent alerts, optionally filtered by level.
func (m *Monitor) Alerts(level string, limit int) []*model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := m.alerts
	if level != "" {
		filtered = make([]*model.Alert, 0)
		for _, alert := range m.alerts {
			if alert.Level == level {
				filtered = append(filtered, alert)
			}
		}
	}

	if limit <= 0 {
		limit = 100
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	out := make([]*model.Alert, len(filtered))
	copy(out, filtered)
	return out
}

// Anomalies returns up to limit recent anomalies, optionally filtered by
// status.
func (m *Monitor) Anomalies(status string, limit int) []*model.OrderAnomaly {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := m.anomalies
	if status != "" {
		filtered = make([]*model.OrderAnomaly, 0)
		for _, anomaly := range m.anomalies {
			if anomaly.Status == status {
				filtered = append(filtered, anomaly)
			}
		}
	}

	if limit <= 0 {
		limit = 100
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	// entries are mutated in place on resolve/reopen, so hand out copies
	out := make([]*model.OrderAnomaly, len(filtered))
	for i, anomaly := range filtered {
		cp := *anomaly
		out[i] = &cp
	}
	return out
}

// ResolveAnomaly marks an open or investigating anomaly as resolved.
// Returns false when the anomaly is unknown or already terminal.
func (m *Monitor) ResolveAnomaly(anomalyID, resolution string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, anomaly := range m.anomalies {
		if anomaly.AnomalyID != anomalyID {
			continue
		}
		if anomaly.Status == model.AnomalyStatusResolved || anomaly.Status == model.AnomalyStatusClosed {
			return false
		}

		resolvedAt := m.now()
		anomaly.Status = model.AnomalyStatusResolved
		anomaly.Resolution = resolution
		anomaly.ResolvedAt = &resolvedAt

		m.log.WithFields(logrus.Fields{
			"anomaly_id":   anomalyID,
			"anomaly_type": anomaly.AnomalyType,
		}).Info("anomaly resolved")
		return true
	}
	return false
}

// GetQualityReport summarizes execution quality for the period.
func (m *Monitor) GetQualityReport(period string) *QualityReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzer.Report(period, m.now())
}

// StrategyRanking exposes the analyzer's strategy ranking.
func (m *Monitor) StrategyRanking() []RankingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzer.StrategyRanking()
}

// SymbolRanking exposes the analyzer's symbol ranking.
func (m *Monitor) SymbolRanking() []RankingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzer.SymbolRanking()
}

// Dashboard builds the full operator snapshot.
func (m *Monitor) Dashboard() *DashboardSummary {
	m.mu.Lock()
	byLevel := make(map[string]int64, len(m.stats.AlertsByLevel))
	for level, count := range m.stats.AlertsByLevel {
		byLevel[level] = count
	}
	summary := &DashboardSummary{
		ReportsProcessed: m.stats.ReportsProcessed,
		TotalAlerts:      m.stats.TotalAlerts,
		TotalAnomalies:   m.stats.TotalAnomalies,
		AlertsByLevel:    byLevel,
		QualityReport:    m.analyzer.Report("daily", m.now()),
	}
	m.mu.Unlock()

	summary.ActiveOrders = m.ActiveOrders()
	summary.RecentAlerts = m.Alerts("", 10)
	summary.RecentAnomalies = m.Anomalies("", 10)
	return summary
}

// GetStats returns a copy of the lifetime counters.
func (m *Monitor) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	byLevel := make(map[string]int64, len(m.stats.AlertsByLevel))
	for level, count := range m.stats.AlertsByLevel {
		byLevel[level] = count
	}
	return Stats{
		ReportsProcessed: m.stats.ReportsProcessed,
		TotalAlerts:      m.stats.TotalAlerts,
		TotalAnomalies:   m.stats.TotalAnomalies,
		AlertsByLevel:    byLevel,
	}
}
