package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"executioncore/src/model"
)

var (
	// ErrUnknownOrder is returned when the venue has no record of the order.
	ErrUnknownOrder = errors.New("order not found at broker")
	// ErrNoPrice is returned when the venue cannot quote the symbol.
	ErrNoPrice = errors.New("no market price available")
	// ErrNoDepth is returned when the venue cannot provide book depth.
	ErrNoDepth = errors.New("no market depth available")
	// ErrSubmitRejected is returned when the venue refuses the order.
	ErrSubmitRejected = errors.New("order rejected by broker")
)

// Level is one price level of the order book.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Depth is a top-of-book snapshot.
type Depth struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// OrderStatusReport is the venue's view of a submitted order.
type OrderStatusReport struct {
	Status         string          `json:"status"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	AvgPrice       decimal.Decimal `json:"avg_price"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Adapter is the capability set every broker integration exposes.
// Adapters are shared read-mostly across order tasks and must be safe for
// concurrent use.
type Adapter interface {
	SubmitOrder(ctx context.Context, order *model.Order) error
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatusReport, error)
	GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetMarketDepth(ctx context.Context, symbol string, levels int) (*Depth, error)
}
