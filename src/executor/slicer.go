package executor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"executioncore/src/model"
)

const maxSliceCount = 100

// SliceGenerator splits a parent order into a schedule of child slices
// using the configured algorithm parameters.
type SliceGenerator struct {
	log *logrus.Entry

	MaxSlicePct      decimal.Decimal
	MinSliceInterval time.Duration
	DefaultDuration  time.Duration
}

func NewSliceGenerator(log *logrus.Entry, config Config) *SliceGenerator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SliceGenerator{
		log:              log,
		MaxSlicePct:      decimal.NewFromFloat(config.MaxSlicePct),
		MinSliceInterval: config.MinSliceInterval,
		DefaultDuration:  config.DefaultDuration,
	}
}

// ImmediateSlices returns a single slice covering the whole order.
func (g *SliceGenerator) ImmediateSlices(order *model.Order) []model.OrderSlice {
	return []model.OrderSlice{{
		SliceID:       uuid.NewString(),
		ParentOrderID: order.OrderID,
		Sequence:      0,
		Quantity:      order.TotalQuantity,
		LimitPrice:    order.LimitPrice,
		Status:        model.OrderStatusPending,
	}}
}

// TWAPSlices splits the order evenly over the duration. The slice count
// is duration divided by the minimum interval, capped at 100, and the
// final slice absorbs any rounding remainder so quantities always sum to
// the order total.
func (g *SliceGenerator) TWAPSlices(order *model.Order, duration time.Duration) []model.OrderSlice {
	if duration <= 0 {
		duration = g.DefaultDuration
	}

	count := 1
	if g.MinSliceInterval > 0 {
		count = int(duration / g.MinSliceInterval)
	}
	if count < 1 {
		count = 1
	}
	if count > maxSliceCount {
		count = maxSliceCount
	}

	sliceQty := order.TotalQuantity.Div(decimal.NewFromInt(int64(count))).RoundBank(0)

	slices := make([]model.OrderSlice, 0, count)
	remaining := order.TotalQuantity
	for i := 0; i < count; i++ {
		qty := sliceQty
		if i == count-1 {
			qty = remaining
		} else {
			remaining = remaining.Sub(qty)
		}

		slices = append(slices, model.OrderSlice{
			SliceID:       uuid.NewString(),
			ParentOrderID: order.OrderID,
			Sequence:      i,
			Quantity:      qty,
			LimitPrice:    order.LimitPrice,
			Status:        model.OrderStatusPending,
		})
	}

	g.log.WithFields(logrus.Fields{
		"order_id":    order.OrderID,
		"slice_count": len(slices),
		"slice_qty":   sliceQty,
		"duration":    duration,
	}).Info("generated TWAP slices")
	return slices
}

// VWAPSlices distributes the order proportionally to the volume profile,
// capping each slice at MaxSlicePct of the total. The final bucket
// absorbs the remainder. An empty or zero profile falls back to TWAP.
func (g *SliceGenerator) VWAPSlices(order *model.Order, profile []decimal.Decimal, duration time.Duration) []model.OrderSlice {
	totalVolume := decimal.Zero
	for _, vol := range profile {
		totalVolume = totalVolume.Add(vol)
	}
	if len(profile) == 0 || totalVolume.IsZero() {
		return g.TWAPSlices(order, duration)
	}

	maxSliceQty := order.TotalQuantity.Mul(g.MaxSlicePct)

	slices := make([]model.OrderSlice, 0, len(profile))
	remaining := order.TotalQuantity
	sequence := 0
	for i, vol := range profile {
		qty := order.TotalQuantity.Mul(vol).Div(totalVolume).RoundBank(0)
		if qty.GreaterThan(maxSliceQty) {
			qty = maxSliceQty
		}

		if i == len(profile)-1 {
			qty = remaining
		} else {
			remaining = remaining.Sub(qty)
		}

		if !qty.IsPositive() {
			continue
		}

		slices = append(slices, model.OrderSlice{
			SliceID:       uuid.NewString(),
			ParentOrderID: order.OrderID,
			Sequence:      sequence,
			Quantity:      qty,
			LimitPrice:    order.LimitPrice,
			Status:        model.OrderStatusPending,
		})
		sequence++
	}

	g.log.WithFields(logrus.Fields{
		"order_id":    order.OrderID,
		"slice_count": len(slices),
		"buckets":     len(profile),
	}).Info("generated VWAP slices")
	return slices
}
