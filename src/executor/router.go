package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"executioncore/src/broker"
	"executioncore/src/model"
)

// ErrNoQuote reports that no registered broker could quote the symbol.
var ErrNoQuote = errors.New("no broker could quote symbol")

// Quote is the winning broker's market snapshot.
type Quote struct {
	Price decimal.Decimal
	Depth *broker.Depth
	Score float64
}

type brokerStats struct {
	avgFillTime   float64
	fillRate      float64
	avgCommission decimal.Decimal
	totalOrders   int64
}

// Router scores every registered broker on price, liquidity, historical
// performance and cost, and picks the best venue for each order. Ties go
// to the earlier-registered broker.
type Router struct {
	log *logrus.Entry

	mu      sync.Mutex
	brokers map[string]broker.Adapter
	names   []string
	stats   map[string]*brokerStats
}

func NewRouter(log *logrus.Entry, brokers map[string]broker.Adapter, order []string) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	stats := make(map[string]*brokerStats, len(brokers))
	for name := range brokers {
		stats[name] = &brokerStats{fillRate: 1.0, avgCommission: decimal.Zero}
	}

	names := order
	if names == nil {
		for name := range brokers {
			names = append(names, name)
		}
	}

	return &Router{
		log:     log,
		brokers: brokers,
		names:   names,
		stats:   stats,
	}
}

// SelectBest evaluates every broker for the given order parameters and
// returns the winner with its quote. Brokers that fail to quote are
// skipped; if none can quote, ErrNoQuote is returned.
func (r *Router) SelectBest(ctx context.Context, symbol, side string, quantity decimal.Decimal) (string, *Quote, error) {
	bestName := ""
	var best *Quote

	for _, name := range r.names {
		adapter := r.brokers[name]

		price, err := adapter.GetMarketPrice(ctx, symbol)
		if err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"broker": name,
				"symbol": symbol,
			}).Warn("broker failed to quote price")
			continue
		}

		depth, err := adapter.GetMarketDepth(ctx, symbol, 5)
		if err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"broker": name,
				"symbol": symbol,
			}).Warn("broker failed to quote depth")
			continue
		}

		score := r.score(name, price, depth, side, quantity)
		if best == nil || score > best.Score {
			bestName = name
			best = &Quote{Price: price, Depth: depth, Score: score}
		}
	}

	if best == nil {
		return "", nil, ErrNoQuote
	}
	return bestName, best, nil
}

// score weights price 40%, liquidity 30%, historical performance 20% and
// cost 10%. Buys look at the best ask, sells at the best bid; liquidity
// counts the top three levels against the order quantity.
func (r *Router) score(name string, price decimal.Decimal, depth *broker.Depth, side string, quantity decimal.Decimal) float64 {
	r.mu.Lock()
	stats := *r.stats[name]
	r.mu.Unlock()

	bestPrice := price
	levels := depth.Bids
	if side == model.SideBuy {
		levels = depth.Asks
	}
	if len(levels) > 0 {
		bestPrice = levels[0].Price
		for _, l := range levels[1:] {
			if side == model.SideBuy && l.Price.LessThan(bestPrice) {
				bestPrice = l.Price
			}
			if side == model.SideSell && l.Price.GreaterThan(bestPrice) {
				bestPrice = l.Price
			}
		}
	}

	priceScore := 0.0
	if bestPrice.IsPositive() {
		priceScore = 1.0 / bestPrice.InexactFloat64()
	}

	available := decimal.Zero
	for i, l := range levels {
		if i >= 3 {
			break
		}
		available = available.Add(l.Quantity)
	}
	liquidityScore := 0.0
	if quantity.IsPositive() {
		ratio, _ := available.Div(quantity).Float64()
		liquidityScore = min(1.0, ratio)
	}

	historyScore := stats.fillRate*0.7 + (1.0-min(1.0, stats.avgFillTime/5.0))*0.3

	costScore := 1.0 - stats.avgCommission.Div(decimal.NewFromInt(10)).InexactFloat64()

	return priceScore*0.4 + liquidityScore*0.3 + historyScore*0.2 + costScore*0.1
}

// RecordOutcome folds one execution outcome into the broker's moving
// averages.
func (r *Router) RecordOutcome(name string, fillTimeSeconds float64, filled bool, commission decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[name]
	if !ok {
		return
	}

	n := float64(stats.totalOrders)
	filledVal := 0.0
	if filled {
		filledVal = 1.0
	}

	stats.avgFillTime = (stats.avgFillTime*n + fillTimeSeconds) / (n + 1)
	stats.fillRate = (stats.fillRate*n + filledVal) / (n + 1)
	stats.avgCommission = stats.avgCommission.Mul(decimal.NewFromFloat(n)).
		Add(commission).
		Div(decimal.NewFromFloat(n + 1))
	stats.totalOrders++
}

// Stats returns a snapshot of one broker's performance counters.
func (r *Router) Stats(name string) (fillRate, avgFillTime float64, avgCommission decimal.Decimal, totalOrders int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[name]
	if !ok {
		return 0, 0, decimal.Zero, 0
	}
	return stats.fillRate, stats.avgFillTime, stats.avgCommission, stats.totalOrders
}

// Broker returns the adapter registered under the given name.
func (r *Router) Broker(name string) (broker.Adapter, bool) {
	adapter, ok := r.brokers[name]
	return adapter, ok
}
