// Package executor turns queued trading signals into routed, sliced,
// risk-checked orders and drives their execution against a broker.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"executioncore/src/broker"
	"executioncore/src/model"
	"executioncore/src/volume"
)

// Stats are the executor's lifetime counters.
type Stats struct {
	TotalOrders     int64           `json:"total_orders"`
	FilledOrders    int64           `json:"filled_orders"`
	RejectedOrders  int64           `json:"rejected_orders"`
	CancelledOrders int64           `json:"cancelled_orders"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// Executor owns the full order lifecycle: routing, risk, slicing and the
// per-order execution loop. Each accepted order runs its slices on its
// own goroutine.
type Executor struct {
	log      *logrus.Entry
	config   Config
	router   *Router
	risk     *RiskChecker
	slicer   *SliceGenerator
	slippage SlippageConfig
	volumes  volume.ProfileSource

	onReport   func(*model.ExecutionReport)
	onComplete func(*model.Order)

	mu      sync.Mutex
	orders  map[string]*model.Order
	cancels map[string]context.CancelFunc
	stats   Stats

	wg             sync.WaitGroup
	now            func() time.Time
	interSliceWait time.Duration
}

type Option func(*Executor)

// WithExecutionReportHook registers a callback fired once per fill.
func WithExecutionReportHook(hook func(*model.ExecutionReport)) Option {
	return func(e *Executor) { e.onReport = hook }
}

// WithOrderCompleteHook registers a callback fired when an order reaches
// its final state.
func WithOrderCompleteHook(hook func(*model.Order)) Option {
	return func(e *Executor) { e.onComplete = hook }
}

// WithVolumeProfile overrides the volume profile source used for VWAP.
func WithVolumeProfile(source volume.ProfileSource) Option {
	return func(e *Executor) { e.volumes = source }
}

// WithInterSliceWait overrides the delay between slice submissions.
func WithInterSliceWait(d time.Duration) Option {
	return func(e *Executor) { e.interSliceWait = d }
}

// WithClock overrides the executor's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(log *logrus.Entry, config Config, brokers map[string]broker.Adapter, brokerOrder []string, opts ...Option) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	e := &Executor{
		log:    log,
		config: config,
		router: NewRouter(log, brokers, brokerOrder),
		risk:   NewRiskChecker(config),
		slicer: NewSliceGenerator(log, config),
		slippage: SlippageConfig{
			BaseBps:          decimal.NewFromFloat(config.SlippageBaseBps),
			MaxBps:           decimal.NewFromFloat(config.SlippageMaxBps),
			VolatilityFactor: decimal.NewFromFloat(config.VolatilityFactor),
			UrgencyBps:       decimal.NewFromFloat(config.UrgencyBps),
		},
		volumes:        volume.NewStaticProvider(),
		orders:         make(map[string]*model.Order),
		cancels:        make(map[string]context.CancelFunc),
		stats:          Stats{TotalVolume: decimal.Zero, TotalCommission: decimal.Zero},
		now:            time.Now,
		interSliceWait: config.MinSliceInterval,
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Router exposes the order router, mainly for telemetry.
func (e *Executor) Router() *Router {
	return e.router
}

// Execute turns a signal into an order and starts its execution. The
// returned order is always non-nil once a signal is accepted for
// processing; a sentinel error reports routing or risk failure, in which
// case the order carries the terminal status.
func (e *Executor) Execute(ctx context.Context, signal *model.Signal) (*model.Order, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	order := e.createOrder(signal)

	e.mu.Lock()
	e.orders[order.OrderID] = order
	e.stats.TotalOrders++
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"quantity": order.TotalQuantity,
	}).Info("executing order")

	brokerName, quote, err := e.router.SelectBest(ctx, order.Symbol, order.Side, order.TotalQuantity)
	if err != nil {
		e.log.WithError(err).WithField("order_id", order.OrderID).Error("failed to route order")
		e.finalizeRejected(order, model.OrderStatusFailed, "no market quote")
		return order, fmt.Errorf("%w: %s", ErrNoQuote, order.Symbol)
	}
	adapter, _ := e.router.Broker(brokerName)
	currentPrice := quote.Price

	if err := e.risk.CheckOrder(order, currentPrice); err != nil {
		e.log.WithError(err).WithField("order_id", order.OrderID).Warn("order rejected by risk checks")
		e.finalizeRejected(order, model.OrderStatusRejected, err.Error())
		return order, err
	}

	volatility := decimal.NewFromFloat(e.config.DefaultVolatility)
	urgency := 10 - signal.Priority
	budget := e.slippage.Budget(currentPrice, volatility, urgency)
	e.checkLimitAgainstBudget(order, currentPrice, budget)

	slices := e.buildSlices(order)
	for i := range slices {
		order.AddSlice(slices[i])
	}

	now := e.now()
	e.mu.Lock()
	order.Status = model.OrderStatusSubmitted
	order.SubmittedAt = &now
	order.SubmittedQuantity = order.TotalQuantity
	order.Metadata["decision_price"] = currentPrice.String()
	order.Metadata["broker"] = brokerName
	order.Metadata["slippage_budget"] = budget.String()

	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancels[order.OrderID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.executeSlices(execCtx, order, adapter, brokerName)

	return order, nil
}

func (e *Executor) createOrder(signal *model.Signal) *model.Order {
	orderType := model.OrderTypeMarket
	algorithm := model.AlgorithmImmediate
	switch signal.PriceType {
	case model.PriceTypeLimit:
		orderType = model.OrderTypeLimit
	case model.PriceTypeTWAP:
		algorithm = model.AlgorithmTWAP
	case model.PriceTypeVWAP:
		algorithm = model.AlgorithmVWAP
	}

	now := e.now()
	return &model.Order{
		OrderID:           uuid.NewString(),
		SignalID:          signal.SignalID,
		Symbol:            signal.Symbol,
		Side:              signal.Side,
		TotalQuantity:     signal.Quantity,
		OrderType:         orderType,
		Algorithm:         algorithm,
		LimitPrice:        signal.LimitPrice,
		Status:            model.OrderStatusPending,
		SubmittedQuantity: decimal.Zero,
		FilledQuantity:    decimal.Zero,
		AvgPrice:          decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
		Metadata: map[string]any{
			"strategy_id":     signal.StrategyID,
			"signal_priority": signal.Priority,
		},
	}
}

func (e *Executor) buildSlices(order *model.Order) []model.OrderSlice {
	switch order.Algorithm {
	case model.AlgorithmTWAP:
		return e.slicer.TWAPSlices(order, e.config.DefaultDuration)
	case model.AlgorithmVWAP:
		buckets := 1
		if e.config.MinSliceInterval > 0 {
			buckets = int(e.config.DefaultDuration / e.config.MinSliceInterval)
		}
		if buckets < 1 {
			buckets = 1
		}
		if buckets > maxSliceCount {
			buckets = maxSliceCount
		}

		profile, err := e.volumes.Profile(order.Symbol, buckets)
		if err != nil {
			e.log.WithError(err).WithField("symbol", order.Symbol).Warn("volume profile unavailable, using TWAP")
			return e.slicer.TWAPSlices(order, e.config.DefaultDuration)
		}
		return e.slicer.VWAPSlices(order, profile, e.config.DefaultDuration)
	default:
		return e.slicer.ImmediateSlices(order)
	}
}

func (e *Executor) checkLimitAgainstBudget(order *model.Order, currentPrice, budget decimal.Decimal) {
	if order.OrderType != model.OrderTypeLimit || order.LimitPrice == nil {
		return
	}

	if order.Side == model.SideBuy && order.LimitPrice.GreaterThan(currentPrice.Add(budget)) {
		e.log.WithFields(logrus.Fields{
			"order_id":    order.OrderID,
			"limit_price": order.LimitPrice,
			"budget_cap":  currentPrice.Add(budget),
		}).Warn("limit price above slippage budget")
	}
	if order.Side == model.SideSell && order.LimitPrice.LessThan(currentPrice.Sub(budget)) {
		e.log.WithFields(logrus.Fields{
			"order_id":    order.OrderID,
			"limit_price": order.LimitPrice,
			"budget_cap":  currentPrice.Sub(budget),
		}).Warn("limit price below slippage budget")
	}
}

func (e *Executor) finalizeRejected(order *model.Order, status, reason string) {
	e.mu.Lock()
	order.Status = status
	order.UpdatedAt = e.now()
	order.Metadata["reject_reason"] = reason
	e.stats.RejectedOrders++
	e.mu.Unlock()
}

// executeSlices runs one order's slice schedule to completion. It checks
// for cancellation between slices; a broker-side cancel of in-flight
// child orders is best effort.
func (e *Executor) executeSlices(ctx context.Context, order *model.Order, adapter broker.Adapter, brokerName string) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, order.OrderID)
		e.mu.Unlock()
	}()

	start := e.now()

	for i := range order.Slices {
		e.mu.Lock()
		complete := order.IsComplete()
		e.mu.Unlock()
		if complete {
			break
		}

		if i > 0 && e.interSliceWait > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.interSliceWait):
			}
		}

		e.mu.Lock()
		cancelled := order.Status == model.OrderStatusCancelled
		e.mu.Unlock()
		if cancelled || ctx.Err() != nil {
			e.log.WithField("order_id", order.OrderID).Info("stopping slice execution, order cancelled")
			break
		}

		e.runSlice(ctx, order, &order.Slices[i], adapter, brokerName, start)
	}

	e.finalizeOrder(order)
}

func (e *Executor) runSlice(ctx context.Context, order *model.Order, slice *model.OrderSlice, adapter broker.Adapter, brokerName string, start time.Time) {
	now := e.now()

	e.mu.Lock()
	slice.SubmittedAt = &now
	slice.Status = model.OrderStatusSubmitted
	e.mu.Unlock()

	child := &model.Order{
		OrderID:       slice.SliceID,
		SignalID:      order.SignalID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		TotalQuantity: slice.Quantity,
		OrderType:     order.OrderType,
		Algorithm:     model.AlgorithmImmediate,
		LimitPrice:    slice.LimitPrice,
		Status:        model.OrderStatusPending,
	}

	if err := adapter.SubmitOrder(ctx, child); err != nil {
		e.mu.Lock()
		slice.Status = model.OrderStatusRejected
		e.mu.Unlock()

		e.router.RecordOutcome(brokerName, e.now().Sub(start).Seconds(), false, decimal.Zero)
		e.log.WithError(err).WithField("slice_id", slice.SliceID).Warn("slice submission failed")
		return
	}

	status, err := adapter.GetOrderStatus(ctx, slice.SliceID)
	if err != nil {
		e.mu.Lock()
		slice.Status = model.OrderStatusRejected
		e.mu.Unlock()

		e.router.RecordOutcome(brokerName, e.now().Sub(start).Seconds(), false, decimal.Zero)
		e.log.WithError(err).WithField("slice_id", slice.SliceID).Warn("slice status lookup failed")
		return
	}

	filledQty := status.FilledQuantity
	avgPrice := status.AvgPrice
	if !filledQty.IsPositive() {
		e.router.RecordOutcome(brokerName, e.now().Sub(start).Seconds(), false, decimal.Zero)
		return
	}

	execID := uuid.NewString()
	fillTime := e.now()

	e.mu.Lock()
	slice.RecordFill(filledQty, avgPrice, execID, fillTime)
	order.FilledQuantity = order.FilledQuantity.Add(filledQty)
	order.AvgPrice = weightedAvgPrice(order)
	order.UpdatedAt = fillTime
	if order.IsComplete() {
		order.Status = model.OrderStatusFilled
	} else {
		order.Status = model.OrderStatusPartiallyFilled
	}
	e.mu.Unlock()

	report := &model.ExecutionReport{
		ReportID:   uuid.NewString(),
		OrderID:    order.OrderID,
		SliceID:    slice.SliceID,
		ExecID:     execID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   filledQty,
		Price:      avgPrice,
		Timestamp:  fillTime,
		Venue:      brokerName,
		Commission: decimal.Zero,
	}

	e.risk.RecordFill(order.Symbol, filledQty, order.Side)
	e.router.RecordOutcome(brokerName, fillTime.Sub(start).Seconds(), true, report.Commission)

	if e.onReport != nil {
		e.onReport(report)
	}

	e.log.WithFields(logrus.Fields{
		"slice_id": slice.SliceID,
		"quantity": filledQty,
		"price":    avgPrice,
	}).Info("slice filled")
}

func (e *Executor) finalizeOrder(order *model.Order) {
	now := e.now()

	e.mu.Lock()
	switch {
	case order.IsComplete():
		order.Status = model.OrderStatusFilled
		order.CompletedAt = &now
		e.stats.FilledOrders++
		e.stats.TotalVolume = e.stats.TotalVolume.Add(order.FilledQuantity)
	case order.Status == model.OrderStatusCancelled:
		order.CompletedAt = &now
	default:
		order.Status = model.OrderStatusPartiallyFilled
		order.CompletedAt = &now
	}
	order.UpdatedAt = now
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"status":   order.Status,
		"filled":   order.FilledQuantity,
		"total":    order.TotalQuantity,
	}).Info("order execution finished")

	if e.onComplete != nil {
		e.onComplete(order)
	}
}

func weightedAvgPrice(order *model.Order) decimal.Decimal {
	totalValue := decimal.Zero
	totalQty := decimal.Zero
	for i := range order.Slices {
		s := &order.Slices[i]
		if s.FilledQuantity.IsPositive() {
			totalValue = totalValue.Add(s.FilledQuantity.Mul(s.AvgPrice))
			totalQty = totalQty.Add(s.FilledQuantity)
		}
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalValue.Div(totalQty)
}

// Cancel marks the order cancelled and stops its remaining slices. The
// cancel is advisory: an in-flight slice completes before the loop
// observes the new status. Returns false when the order is unknown or
// already terminal.
func (e *Executor) Cancel(ctx context.Context, orderID string) bool {
	e.mu.Lock()
	order, ok := e.orders[orderID]
	if !ok || order.IsTerminal() {
		e.mu.Unlock()
		return false
	}

	order.Status = model.OrderStatusCancelled
	order.UpdatedAt = e.now()
	for i := range order.Slices {
		if order.Slices[i].Status == model.OrderStatusPending {
			order.Slices[i].Status = model.OrderStatusCancelled
		}
	}
	e.stats.CancelledOrders++
	cancel := e.cancels[orderID]
	brokerName, _ := order.Metadata["broker"].(string)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if adapter, ok := e.router.Broker(brokerName); ok {
		if err := adapter.CancelOrder(ctx, orderID); err != nil {
			e.log.WithError(err).WithField("order_id", orderID).Warn("broker-side cancel failed")
		}
	}

	e.log.WithField("order_id", orderID).Info("order cancelled")
	return true
}

// Stop cancels every in-flight execution loop and waits for them to
// drain.
func (e *Executor) Stop() {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.log.Info("order executor stopped")
}

// Wait blocks until all execution loops finish. Intended for tests and
// shutdown paths.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// GetOrder returns a deep copy of the order with the given id. Copies
// are taken under the executor lock, so the snapshot is internally
// consistent even while the order's execution loop is still filling it.
func (e *Executor) GetOrder(orderID string) (*model.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

// ActiveOrders returns a deep copy of every order not yet in a terminal
// state.
func (e *Executor) ActiveOrders() []*model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := make([]*model.Order, 0)
	for _, order := range e.orders {
		switch order.Status {
		case model.OrderStatusPending, model.OrderStatusSubmitted, model.OrderStatusPartiallyFilled:
			active = append(active, order.Clone())
		}
	}
	return active
}

// AllOrders returns a deep copy of every order the executor has seen.
func (e *Executor) AllOrders() []*model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]*model.Order, 0, len(e.orders))
	for _, order := range e.orders {
		orders = append(orders, order.Clone())
	}
	return orders
}

// VolumeSource returns the profile source feeding the VWAP slicer.
func (e *Executor) VolumeSource() volume.ProfileSource {
	return e.volumes
}

// GetStats returns a copy of the lifetime counters.
func (e *Executor) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
