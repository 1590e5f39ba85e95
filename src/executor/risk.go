package executor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"executioncore/src/model"
)

// ErrRiskRejected wraps every pre-trade rejection.
var ErrRiskRejected = errors.New("risk check rejected")

// RiskChecker performs pre-trade checks: symbol blacklist, single-order
// size cap and post-fill position exposure as a fraction of total assets.
// It keeps its own position book updated from fills.
type RiskChecker struct {
	mu sync.Mutex

	maxPositionPct    decimal.Decimal
	maxSingleOrderQty decimal.Decimal
	totalAsset        decimal.Decimal
	blacklist         map[string]struct{}
	positions         map[string]decimal.Decimal
}

func NewRiskChecker(config Config) *RiskChecker {
	blacklist := make(map[string]struct{}, len(config.Blacklist))
	for _, symbol := range config.Blacklist {
		blacklist[symbol] = struct{}{}
	}

	return &RiskChecker{
		maxPositionPct:    decimal.NewFromFloat(config.MaxPositionPct),
		maxSingleOrderQty: decimal.NewFromInt(config.MaxSingleOrderQty),
		totalAsset:        decimal.NewFromInt(config.TotalAsset),
		blacklist:         blacklist,
		positions:         make(map[string]decimal.Decimal),
	}
}

// CheckOrder validates the order against all risk limits at the given
// market price. A nil return means the order may trade.
func (r *RiskChecker) CheckOrder(order *model.Order, currentPrice decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, blocked := r.blacklist[order.Symbol]; blocked {
		return fmt.Errorf("%w: symbol is blacklisted: %s", ErrRiskRejected, order.Symbol)
	}

	if order.TotalQuantity.GreaterThan(r.maxSingleOrderQty) {
		return fmt.Errorf("%w: single order quantity exceeds limit: %s > %s",
			ErrRiskRejected, order.TotalQuantity, r.maxSingleOrderQty)
	}

	currentPosition := r.positions[order.Symbol]
	var newPosition decimal.Decimal
	if order.Side == model.SideBuy {
		newPosition = currentPosition.Add(order.TotalQuantity)
	} else {
		newPosition = currentPosition.Sub(order.TotalQuantity)
		if newPosition.IsNegative() {
			newPosition = decimal.Zero
		}
	}

	if r.totalAsset.IsPositive() {
		positionPct := newPosition.Mul(currentPrice).Div(r.totalAsset)
		if positionPct.GreaterThan(r.maxPositionPct) {
			return fmt.Errorf("%w: position limit exceeded: %s > %s",
				ErrRiskRejected, positionPct.Round(4), r.maxPositionPct)
		}
	}

	return nil
}

// RecordFill adjusts the position book after a fill. Sells never push a
// position below zero.
func (r *RiskChecker) RecordFill(symbol string, quantity decimal.Decimal, side string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if side == model.SideBuy {
		r.positions[symbol] = r.positions[symbol].Add(quantity)
		return
	}

	next := r.positions[symbol].Sub(quantity)
	if next.IsNegative() {
		next = decimal.Zero
	}
	r.positions[symbol] = next
}

// Position returns the current tracked position for a symbol.
func (r *RiskChecker) Position(symbol string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positions[symbol]
}
