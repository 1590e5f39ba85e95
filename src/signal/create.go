package signal

import (
	"time"

	"github.com/shopspring/decimal"

	"executioncore/src/model"
)

// CreateSignal builds a pending signal with a deterministic id derived
// from the strategy, symbol and creation time. A zero expireIn leaves the
// signal without an expiry.
func CreateSignal(
	strategyID, symbol, side string,
	quantity decimal.Decimal,
	priceType string,
	limitPrice *decimal.Decimal,
	priority int,
	expireIn time.Duration,
	metadata map[string]any,
) *model.Signal {
	timestamp := time.Now()

	var expireAt *time.Time
	if expireIn > 0 {
		e := timestamp.Add(expireIn)
		expireAt = &e
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	return &model.Signal{
		SignalID:   model.GenerateSignalID(strategyID, symbol, timestamp),
		StrategyID: strategyID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		PriceType:  priceType,
		Priority:   priority,
		Timestamp:  timestamp,
		Status:     model.SignalStatusPending,
		LimitPrice: limitPrice,
		ExpireAt:   expireAt,
		Metadata:   metadata,
	}
}
