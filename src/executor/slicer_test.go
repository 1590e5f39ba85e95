package executor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executioncore/src/model"
)

func testConfig() Config {
	return Config{
		MaxPositionPct:    0.20,
		MaxSingleOrderQty: 10000,
		TotalAsset:        1000000,
		MaxSlicePct:       0.05,
		MinSliceInterval:  30 * time.Second,
		DefaultDuration:   60 * time.Minute,
		SlippageBaseBps:   5,
		SlippageMaxBps:    50,
		VolatilityFactor:  0.5,
		UrgencyBps:        2,
		DefaultVolatility: 0.02,
	}
}

func sliceSum(slices []model.OrderSlice) decimal.Decimal {
	total := decimal.Zero
	for i := range slices {
		total = total.Add(slices[i].Quantity)
	}
	return total
}

func TestTWAPSlicesEvenSplitWithRemainder(t *testing.T) {
	g := NewSliceGenerator(nil, testConfig())
	order := &model.Order{
		OrderID:       "ord-1",
		TotalQuantity: decimal.NewFromInt(1003),
	}

	// 60 minutes at a 30s interval is 120 intervals, capped at 100 slices
	slices := g.TWAPSlices(order, 60*time.Minute)
	require.Len(t, slices, 100)

	for i := 0; i < 99; i++ {
		assert.True(t, slices[i].Quantity.Equal(decimal.NewFromInt(10)), "slice %d: %s", i, slices[i].Quantity)
	}
	assert.True(t, slices[99].Quantity.Equal(decimal.NewFromInt(13)))
	assert.True(t, sliceSum(slices).Equal(order.TotalQuantity))

	for i := range slices {
		assert.Equal(t, i, slices[i].Sequence)
		assert.Equal(t, "ord-1", slices[i].ParentOrderID)
	}
}

func TestTWAPSlicesCappedAtHundred(t *testing.T) {
	g := NewSliceGenerator(nil, testConfig())
	order := &model.Order{OrderID: "ord-1", TotalQuantity: decimal.NewFromInt(500)}

	slices := g.TWAPSlices(order, 24*time.Hour)
	require.Len(t, slices, 100)
	assert.True(t, sliceSum(slices).Equal(order.TotalQuantity))
}

func TestTWAPSlicesShortDuration(t *testing.T) {
	g := NewSliceGenerator(nil, testConfig())
	order := &model.Order{OrderID: "ord-1", TotalQuantity: decimal.NewFromInt(100)}

	slices := g.TWAPSlices(order, 10*time.Second)
	require.Len(t, slices, 1)
	assert.True(t, slices[0].Quantity.Equal(decimal.NewFromInt(100)))
}

func TestVWAPSlicesProportional(t *testing.T) {
	g := NewSliceGenerator(nil, testConfig())
	// loosen the cap so proportions come through untouched
	g.MaxSlicePct = decimal.NewFromInt(1)

	order := &model.Order{OrderID: "ord-1", TotalQuantity: decimal.NewFromInt(1000)}
	profile := []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(300),
		decimal.NewFromInt(600),
	}

	slices := g.VWAPSlices(order, profile, time.Hour)
	require.Len(t, slices, 3)
	assert.True(t, slices[0].Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, slices[1].Quantity.Equal(decimal.NewFromInt(300)))
	assert.True(t, slices[2].Quantity.Equal(decimal.NewFromInt(600)))
	assert.True(t, sliceSum(slices).Equal(order.TotalQuantity))
}

func TestVWAPSlicesCapped(t *testing.T) {
	g := NewSliceGenerator(nil, testConfig())

	order := &model.Order{OrderID: "ord-1", TotalQuantity: decimal.NewFromInt(1000)}
	// heavily skewed profile; the 5% cap (50 shares) binds every bucket
	// except the last, which absorbs the remainder
	profile := []decimal.Decimal{
		decimal.NewFromInt(900),
		decimal.NewFromInt(50),
		decimal.NewFromInt(50),
	}

	slices := g.VWAPSlices(order, profile, time.Hour)
	require.Len(t, slices, 3)
	assert.True(t, slices[0].Quantity.Equal(decimal.NewFromInt(50)))
	assert.True(t, slices[1].Quantity.Equal(decimal.NewFromInt(50)))
	assert.True(t, slices[2].Quantity.Equal(decimal.NewFromInt(900)))
	assert.True(t, sliceSum(slices).Equal(order.TotalQuantity))
}

func TestVWAPSlicesEmptyProfileFallsBackToTWAP(t *testing.T) {
	g := NewSliceGenerator(nil, testConfig())
	order := &model.Order{OrderID: "ord-1", TotalQuantity: decimal.NewFromInt(1000)}

	slices := g.VWAPSlices(order, nil, 60*time.Minute)
	require.Len(t, slices, 120)
	assert.True(t, sliceSum(slices).Equal(order.TotalQuantity))
}

func TestImmediateSlices(t *testing.T) {
	g := NewSliceGenerator(nil, testConfig())
	limit := decimal.NewFromInt(150)
	order := &model.Order{OrderID: "ord-1", TotalQuantity: decimal.NewFromInt(100), LimitPrice: &limit}

	slices := g.ImmediateSlices(order)
	require.Len(t, slices, 1)
	assert.True(t, slices[0].Quantity.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, slices[0].LimitPrice)
	assert.True(t, slices[0].LimitPrice.Equal(limit))
}
