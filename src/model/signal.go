package model

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Signal sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Signal price types.
const (
	PriceTypeMarket = "MARKET"
	PriceTypeLimit  = "LIMIT"
	PriceTypeTWAP   = "TWAP"
	PriceTypeVWAP   = "VWAP"
)

// Signal statuses. Transitions are monotonic: once a signal reaches a
// terminal status (SENT_TO_EXECUTOR, REJECTED, EXPIRED, CANCELLED) it
// never leaves it.
const (
	SignalStatusPending        = "PENDING"
	SignalStatusValidated      = "VALIDATED"
	SignalStatusQueued         = "QUEUED"
	SignalStatusProcessing     = "PROCESSING"
	SignalStatusSentToExecutor = "SENT_TO_EXECUTOR"
	SignalStatusRejected       = "REJECTED"
	SignalStatusExpired        = "EXPIRED"
	SignalStatusCancelled      = "CANCELLED"
)

// Signal priorities. Smaller value means more urgent.
const (
	PriorityEmergencyClose = 1
	PriorityStopLoss       = 2
	PriorityTakeProfit     = 3
	PriorityStrategyEntry  = 4
	PriorityStrategyExit   = 5
	PriorityRebalance      = 6
)

// Signal is a validated trading intent produced by the strategy layer.
type Signal struct {
	SignalID   string           `gorm:"primaryKey;size:64;column:signal_id" json:"signal_id"`
	StrategyID string           `gorm:"size:100;index" json:"strategy_id"`
	Symbol     string           `gorm:"size:50;index" json:"symbol"`
	Side       string           `gorm:"size:10" json:"side"`
	Quantity   decimal.Decimal  `gorm:"type:numeric" json:"quantity"`
	PriceType  string           `gorm:"size:20" json:"price_type"`
	Priority   int              `json:"priority"`
	Timestamp  time.Time        `json:"timestamp"`
	Status     string           `gorm:"size:30;not null;default:PENDING" json:"status"`
	LimitPrice *decimal.Decimal `gorm:"type:numeric" json:"limit_price,omitempty"`
	ExpireAt   *time.Time       `json:"expire_at,omitempty"`
	Metadata   map[string]any   `gorm:"serializer:json" json:"metadata,omitempty"`
}

// TableName allows you to control the exact table name for signals.
func (Signal) TableName() string {
	return "signals"
}

// IsExpired reports whether the signal's expiry has passed at the given time.
func (s *Signal) IsExpired(now time.Time) bool {
	if s.ExpireAt == nil {
		return false
	}
	return now.After(*s.ExpireAt)
}

// IsTerminal reports whether the signal reached a final status.
func (s *Signal) IsTerminal() bool {
	switch s.Status {
	case SignalStatusSentToExecutor, SignalStatusRejected, SignalStatusExpired, SignalStatusCancelled:
		return true
	default:
		return false
	}
}

// GenerateSignalID derives a deterministic signal id from the strategy,
// symbol and creation time.
func GenerateSignalID(strategyID, symbol string, timestamp time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s", strategyID, symbol, timestamp.Format(time.RFC3339Nano))))
	return hex.EncodeToString(sum[:])[:16]
}

// MergedSignalID derives the id of a signal produced by merging two others.
func MergedSignalID(firstID, secondID string) string {
	sum := md5.Sum([]byte(firstID + ":" + secondID))
	return hex.EncodeToString(sum[:])[:16]
}
