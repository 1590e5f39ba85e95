package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"executioncore/src/broker"
	"executioncore/src/database"
	"executioncore/src/executor"
	"executioncore/src/model"
	"executioncore/src/monitor"
	"executioncore/src/repository"
	"executioncore/src/signal"
	"executioncore/src/volume"
)

// Main is the engine instance shared by the HTTP handlers. It is assigned
// once by Init at startup.
var Main *Engine

// Engine wires the signal manager, the order executor and the execution
// monitor together and drives the dispatch loop that moves queued signals
// into the executor.
type Engine struct {
	log    *logrus.Entry
	config Config

	Signals  *signal.Manager
	Executor *executor.Executor
	Monitor  *monitor.Monitor

	brokers map[string]broker.Adapter

	signalRepo  *repository.SignalRepository
	orderRepo   *repository.OrderRepository
	metricsRepo *repository.MetricsRepository
	alertRepo   *repository.AlertRepository
	anomalyRepo *repository.AnomalyRepository
	persist     bool
}

// Init builds the engine from environment config and assigns the shared
// Main instance.
func Init(log *logrus.Entry) *Engine {
	e := New(log, GetConfig())
	Main = e
	return e
}

// New builds an engine with the given config. Repositories are only wired
// when the database is enabled.
func New(log *logrus.Entry, config Config) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	e := &Engine{
		log:    log,
		config: config,
	}

	if database.GetConfig().EnableDB {
		e.persist = true
		e.signalRepo = repository.NewSignalRepository()
		e.orderRepo = repository.NewOrderRepository()
		e.metricsRepo = repository.NewMetricsRepository()
		e.alertRepo = repository.NewAlertRepository()
		e.anomalyRepo = repository.NewAnomalyRepository()
	}

	signalCfg := signal.GetConfig()
	e.Signals = signal.NewManager(
		log.WithField("component", "signal_manager"),
		signalCfg,
		signal.WithValidator(signal.NewValidator(
			config.AllowedSymbols,
			config.SymbolBlacklist,
			decimal.NewFromInt(signalCfg.MinQuantity),
			decimal.NewFromInt(signalCfg.MaxQuantity),
		)),
	)

	e.Monitor = monitor.NewMonitor(
		log.WithField("component", "execution_monitor"),
		monitor.GetConfig(),
		monitor.WithAlertHook(e.onAlert),
		monitor.WithAnomalyHook(e.onAnomaly),
	)

	executorOpts := []executor.Option{
		executor.WithExecutionReportHook(e.onExecutionReport),
		executor.WithOrderCompleteHook(e.onOrderComplete),
	}
	if volumeCfg := volume.GetConfig(); volumeCfg.UseKlines {
		executorOpts = append(executorOpts, executor.WithVolumeProfile(
			volume.NewKlineProvider(log.WithField("component", "volume_profile"), &volumeCfg)))
	}

	e.brokers = buildBrokers(config.Brokers)
	e.Executor = executor.NewExecutor(
		log.WithField("component", "order_executor"),
		executor.GetConfig(),
		e.brokers,
		config.Brokers,
		executorOpts...,
	)

	return e
}

// buildBrokers constructs one adapter per configured venue. Mock adapters
// are the default; the REST adapter is used when BROKER_USE_MOCK is off.
func buildBrokers(names []string) map[string]broker.Adapter {
	config := broker.GetConfig()

	brokers := make(map[string]broker.Adapter, len(names))
	for _, name := range names {
		if config.UseMock {
			brokers[name] = broker.NewMockAdapter(config.FillProb, config.FillDelay)
			continue
		}
		brokers[name] = broker.NewRESTAdapter(config.APIKey, config.APISecret, config.BaseURL, config.WSURL)
	}
	return brokers
}

// StartLoop runs the dispatch loop until ctx is cancelled. Each tick
// drains the signal queue into the executor in priority order.
func (e *Engine) StartLoop(ctx context.Context) error {
	e.Signals.Start(ctx)
	e.Monitor.Start(ctx)
	e.startFillStreams(ctx)

	ticker := time.NewTicker(e.config.LoopPeriod)
	defer ticker.Stop()

	e.log.WithField("loop_period", e.config.LoopPeriod).Info("dispatch loop started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info("loop stopped")
			e.Executor.Stop()
			return nil

		case <-ticker.C:
			e.DispatchPending(ctx)
		}
	}
}

// DispatchPending drains the signal queue into the executor. Dispatch
// failures are terminal for the signal; the executor has already recorded
// the rejected order.
func (e *Engine) DispatchPending(ctx context.Context) {
	for {
		sig := e.Signals.NextSignal()
		if sig == nil {
			return
		}

		order, err := e.Executor.Execute(ctx, sig)
		if err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"signal_id": sig.SignalID,
				"symbol":    sig.Symbol,
			}).Warn("signal dispatch failed")
		}

		e.Signals.MarkSent(sig.SignalID)
		e.saveSignal(sig)
		if order != nil {
			// persist a locked snapshot; the execution loop may still be
			// filling the order we got back
			if snapshot, ok := e.Executor.GetOrder(order.OrderID); ok {
				e.saveOrder(snapshot)
			}
		}
	}
}

// SubmitSignal runs a signal through intake and persists the accepted
// result.
func (e *Engine) SubmitSignal(sig *model.Signal) signal.ValidationResult {
	result := e.Signals.Receive(sig)
	if result.Valid {
		e.saveSignal(result.Signal)
	}
	return result
}

// CancelOrder cancels a working order and persists the updated state.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) bool {
	if !e.Executor.Cancel(ctx, orderID) {
		return false
	}
	if order, ok := e.Executor.GetOrder(orderID); ok {
		e.saveOrder(order)
	}
	return true
}

// ResolveAnomaly closes out an open anomaly and persists the resolution.
func (e *Engine) ResolveAnomaly(ctx context.Context, anomalyID, resolution string) bool {
	if !e.Monitor.ResolveAnomaly(anomalyID, resolution) {
		return false
	}
	if e.persist {
		if err := e.anomalyRepo.Resolve(ctx, anomalyID, resolution, time.Now().UTC()); err != nil {
			e.log.WithError(err).WithField("anomaly_id", anomalyID).Warn("failed to persist anomaly resolution")
		}
	}
	return true
}

// startFillStreams consumes the websocket fill feed of every REST-backed
// venue, feeding out-of-band fills into the monitor path. Mock venues
// have no stream.
func (e *Engine) startFillStreams(ctx context.Context) {
	for name, adapter := range e.brokers {
		rest, ok := adapter.(*broker.RESTAdapter)
		if !ok {
			continue
		}

		go func(venue string, rest *broker.RESTAdapter) {
			err := rest.StreamFills(ctx, func(orderID string, fill model.Fill) {
				e.onStreamFill(venue, orderID, fill)
			})
			if err != nil {
				e.log.WithError(err).WithField("broker", venue).Warn("fill stream ended")
			}
		}(name, rest)
	}
}

// onStreamFill turns a streamed fill into an execution report for the
// monitor. Fills for orders the executor does not know are dropped.
func (e *Engine) onStreamFill(venue, orderID string, fill model.Fill) {
	order, ok := e.Executor.GetOrder(orderID)
	if !ok {
		e.log.WithFields(logrus.Fields{
			"broker":   venue,
			"order_id": orderID,
		}).Debug("stream fill for unknown order")
		return
	}

	e.onExecutionReport(&model.ExecutionReport{
		ReportID:  uuid.NewString(),
		OrderID:   orderID,
		ExecID:    fill.ExecID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  fill.Quantity,
		Price:     fill.Price,
		Timestamp: fill.Timestamp,
		Venue:     venue,
	})
}

func (e *Engine) onExecutionReport(report *model.ExecutionReport) {
	order, ok := e.Executor.GetOrder(report.OrderID)
	if !ok {
		e.log.WithField("order_id", report.OrderID).Warn("execution report for unknown order")
		return
	}

	e.Monitor.OnExecutionReport(report, order, decisionPriceOf(order))

	if e.persist {
		if err := e.orderRepo.CreateExecutionReport(context.Background(), report); err != nil {
			e.log.WithError(err).Warn("failed to persist execution report")
		}
	}
}

func (e *Engine) onOrderComplete(order *model.Order) {
	metrics := e.Monitor.FinalizeOrder(order, decisionPriceOf(order))

	e.saveOrder(order)
	if metrics != nil && e.persist {
		if err := e.metricsRepo.Save(context.Background(), metrics); err != nil {
			e.log.WithError(err).Warn("failed to persist execution metrics")
		}
	}
}

func (e *Engine) onAlert(alert *model.Alert) {
	if !e.persist {
		return
	}
	if err := e.alertRepo.Create(context.Background(), alert); err != nil {
		e.log.WithError(err).Warn("failed to persist alert")
	}
}

func (e *Engine) onAnomaly(anomaly *model.OrderAnomaly) {
	if !e.persist {
		return
	}
	if err := e.anomalyRepo.Create(context.Background(), anomaly); err != nil {
		e.log.WithError(err).Warn("failed to persist anomaly")
	}
}

func (e *Engine) saveSignal(sig *model.Signal) {
	if !e.persist || sig == nil {
		return
	}
	if err := e.signalRepo.Save(context.Background(), sig); err != nil {
		e.log.WithError(err).WithField("signal_id", sig.SignalID).Warn("failed to persist signal")
	}
}

func (e *Engine) saveOrder(order *model.Order) {
	if !e.persist || order == nil {
		return
	}
	if err := e.orderRepo.SaveWithSlices(context.Background(), order); err != nil {
		e.log.WithError(err).WithField("order_id", order.OrderID).Warn("failed to persist order")
	}
}

// decisionPriceOf reads the routing-time market price stored on the order.
// Orders rejected before routing have no decision price; zero disables the
// price-deviation checks downstream.
func decisionPriceOf(order *model.Order) decimal.Decimal {
	raw, ok := order.Metadata["decision_price"].(string)
	if !ok {
		return decimal.Zero
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return price
}
