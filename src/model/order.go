package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order types.
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// Execution algorithms.
const (
	AlgorithmImmediate = "IMMEDIATE"
	AlgorithmTWAP      = "TWAP"
	AlgorithmVWAP      = "VWAP"
)

// Order and slice statuses.
const (
	OrderStatusPending         = "PENDING"
	OrderStatusSubmitted       = "SUBMITTED"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCancelled       = "CANCELLED"
	OrderStatusRejected        = "REJECTED"
	OrderStatusExpired         = "EXPIRED"
	OrderStatusFailed          = "FAILED"
)

// Fill is one execution event recorded on a slice.
type Fill struct {
	ExecID    string          `json:"exec_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderSlice is one sub-order produced by splitting a parent order's quantity.
type OrderSlice struct {
	SliceID        string           `gorm:"primaryKey;size:64;column:slice_id" json:"slice_id"`
	ParentOrderID  string           `gorm:"size:64;index;column:parent_order_id" json:"parent_order_id"`
	Sequence       int              `json:"sequence"`
	Quantity       decimal.Decimal  `gorm:"type:numeric" json:"quantity"`
	LimitPrice     *decimal.Decimal `gorm:"type:numeric" json:"limit_price,omitempty"`
	Status         string           `gorm:"size:30;not null;default:PENDING" json:"status"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
	FilledQuantity decimal.Decimal  `gorm:"type:numeric" json:"filled_quantity"`
	AvgPrice       decimal.Decimal  `gorm:"type:numeric" json:"avg_price"`
	Fills          []Fill           `gorm:"serializer:json" json:"fills,omitempty"`
}

// TableName allows you to control the exact table name for order slices.
func (OrderSlice) TableName() string {
	return "order_slices"
}

// Clone returns a deep copy of the slice and its fill records.
func (s *OrderSlice) Clone() OrderSlice {
	cp := *s
	if s.LimitPrice != nil {
		price := *s.LimitPrice
		cp.LimitPrice = &price
	}
	if s.SubmittedAt != nil {
		t := *s.SubmittedAt
		cp.SubmittedAt = &t
	}
	if s.Fills != nil {
		cp.Fills = append([]Fill(nil), s.Fills...)
	}
	return cp
}

// IsComplete reports whether the slice is fully filled.
func (s *OrderSlice) IsComplete() bool {
	return s.FilledQuantity.GreaterThanOrEqual(s.Quantity)
}

// RecordFill appends a fill, updates the filled quantity and the
// size-weighted average price, and advances the slice status.
func (s *OrderSlice) RecordFill(quantity, price decimal.Decimal, execID string, timestamp time.Time) {
	s.Fills = append(s.Fills, Fill{
		ExecID:    execID,
		Quantity:  quantity,
		Price:     price,
		Timestamp: timestamp,
	})
	s.FilledQuantity = s.FilledQuantity.Add(quantity)

	totalValue := decimal.Zero
	for _, f := range s.Fills {
		totalValue = totalValue.Add(f.Quantity.Mul(f.Price))
	}
	if s.FilledQuantity.IsPositive() {
		s.AvgPrice = totalValue.Div(s.FilledQuantity)
	}

	if s.IsComplete() {
		s.Status = OrderStatusFilled
	} else {
		s.Status = OrderStatusPartiallyFilled
	}
}

// Order is the executor's view of a signal turned into market activity.
// It exclusively owns its slices.
type Order struct {
	OrderID           string           `gorm:"primaryKey;size:64;column:order_id" json:"order_id"`
	SignalID          string           `gorm:"size:64;index" json:"signal_id"`
	Symbol            string           `gorm:"size:50;index" json:"symbol"`
	Side              string           `gorm:"size:10" json:"side"`
	TotalQuantity     decimal.Decimal  `gorm:"type:numeric" json:"total_quantity"`
	OrderType         string           `gorm:"size:20" json:"order_type"`
	Algorithm         string           `gorm:"size:20" json:"algorithm"`
	LimitPrice        *decimal.Decimal `gorm:"type:numeric" json:"limit_price,omitempty"`
	Status            string           `gorm:"size:30;not null;default:PENDING" json:"status"`
	SubmittedQuantity decimal.Decimal  `gorm:"type:numeric" json:"submitted_quantity"`
	FilledQuantity    decimal.Decimal  `gorm:"type:numeric" json:"filled_quantity"`
	AvgPrice          decimal.Decimal  `gorm:"type:numeric" json:"avg_price"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	SubmittedAt       *time.Time       `json:"submitted_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	Slices            []OrderSlice     `gorm:"foreignKey:ParentOrderID" json:"slices,omitempty"`
	Metadata          map[string]any   `gorm:"serializer:json" json:"metadata,omitempty"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

// AddSlice appends a slice to the order.
func (o *Order) AddSlice(slice OrderSlice) {
	o.Slices = append(o.Slices, slice)
}

// RemainingQuantity returns the quantity not yet filled.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.TotalQuantity.Sub(o.FilledQuantity)
}

// IsComplete reports whether the order is fully filled.
func (o *Order) IsComplete() bool {
	return o.FilledQuantity.GreaterThanOrEqual(o.TotalQuantity)
}

// IsTerminal reports whether the order reached a final status.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// FillRate returns the filled percentage of the total quantity.
func (o *Order) FillRate() decimal.Decimal {
	if o.TotalQuantity.IsZero() {
		return decimal.Zero
	}
	return o.FilledQuantity.Div(o.TotalQuantity).Mul(decimal.NewFromInt(100)).Round(2)
}

// Clone returns a deep copy of the order. The executor hands out clones
// so readers never share mutable slice and fill state with the running
// execution loop.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}

	cp := *o
	if o.LimitPrice != nil {
		price := *o.LimitPrice
		cp.LimitPrice = &price
	}
	if o.SubmittedAt != nil {
		t := *o.SubmittedAt
		cp.SubmittedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	if o.Slices != nil {
		cp.Slices = make([]OrderSlice, len(o.Slices))
		for i := range o.Slices {
			cp.Slices[i] = o.Slices[i].Clone()
		}
	}
	if o.Metadata != nil {
		cp.Metadata = make(map[string]any, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// LastFillTime returns the timestamp of the most recent fill across all
// slices, or the zero time when nothing filled yet.
func (o *Order) LastFillTime() time.Time {
	var last time.Time
	for i := range o.Slices {
		for _, f := range o.Slices[i].Fills {
			if f.Timestamp.After(last) {
				last = f.Timestamp
			}
		}
	}
	return last
}
