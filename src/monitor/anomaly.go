package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"executioncore/src/model"
)

type fillRecord struct {
	execID    string
	timestamp time.Time
}

// AnomalyDetector flags suspicious execution behavior: delayed fills,
// stalled partial fills, fill prices far from the quoted market and
// duplicate execution ids. It is not safe for concurrent use; the
// Monitor serializes access.
type AnomalyDetector struct {
	fillTimeout     time.Duration
	partialStall    time.Duration
	priceDeviation  decimal.Decimal
	duplicateWindow time.Duration

	recentFills map[string][]fillRecord
}

func NewAnomalyDetector(config Config) *AnomalyDetector {
	return &AnomalyDetector{
		fillTimeout:     config.FillTimeout,
		partialStall:    config.PartialStall,
		priceDeviation:  decimal.NewFromFloat(config.PriceDeviation),
		duplicateWindow: config.DuplicateWindow,
		recentFills:     make(map[string][]fillRecord),
	}
}

// DetectDelayedFill flags an order still incomplete after the fill
// timeout. The anomaly id is stable per order so repeated sweeps do not
// multiply entries.
func (d *AnomalyDetector) DetectDelayedFill(order *model.Order, now time.Time) *model.OrderAnomaly {
	if order.SubmittedAt == nil {
		return nil
	}

	elapsed := now.Sub(*order.SubmittedAt)
	if elapsed <= d.fillTimeout || order.IsComplete() {
		return nil
	}

	return &model.OrderAnomaly{
		AnomalyID:   "delayed_" + order.OrderID,
		OrderID:     order.OrderID,
		AnomalyType: model.AnomalyDelayedFill,
		Description: fmt.Sprintf("order not fully filled %.0f seconds after submission", elapsed.Seconds()),
		DetectedAt:  now,
		Severity:    model.SeverityMedium,
		Status:      model.AnomalyStatusOpen,
	}
}

// DetectPartialStall flags a partially filled order whose last fill is
// older than the stall threshold.
func (d *AnomalyDetector) DetectPartialStall(order *model.Order, now time.Time) *model.OrderAnomaly {
	if order.Status != model.OrderStatusPartiallyFilled {
		return nil
	}

	lastFill := order.LastFillTime()
	if lastFill.IsZero() {
		return nil
	}

	stall := now.Sub(lastFill)
	if stall <= d.partialStall {
		return nil
	}

	return &model.OrderAnomaly{
		AnomalyID:   "stall_" + order.OrderID,
		OrderID:     order.OrderID,
		AnomalyType: model.AnomalyPartialStall,
		Description: fmt.Sprintf("order stalled in partial fill for %.0f seconds", stall.Seconds()),
		DetectedAt:  now,
		Severity:    model.SeverityMedium,
		Status:      model.AnomalyStatusOpen,
	}
}

// DetectPriceAnomaly flags an average fill price that deviates from the
// quoted market price by more than the configured fraction.
func (d *AnomalyDetector) DetectPriceAnomaly(order *model.Order, marketPrice decimal.Decimal, now time.Time) *model.OrderAnomaly {
	if !order.AvgPrice.IsPositive() || !marketPrice.IsPositive() {
		return nil
	}

	deviation := order.AvgPrice.Sub(marketPrice).Abs().Div(marketPrice)
	if deviation.LessThanOrEqual(d.priceDeviation) {
		return nil
	}

	return &model.OrderAnomaly{
		AnomalyID:   "price_" + order.OrderID,
		OrderID:     order.OrderID,
		AnomalyType: model.AnomalyPriceAnomaly,
		Description: fmt.Sprintf("fill price deviates from market by %s%% (threshold %s%%)",
			deviation.Mul(decimal.NewFromInt(100)).Round(2),
			d.priceDeviation.Mul(decimal.NewFromInt(100)).Round(2)),
		DetectedAt: now,
		Severity:   model.SeverityHigh,
		Status:     model.AnomalyStatusOpen,
	}
}

// DetectDuplicateFill flags an exec id already seen for the order inside
// the duplicate window. Non-duplicates are recorded; stale records are
// pruned on every call.
func (d *AnomalyDetector) DetectDuplicateFill(orderID, execID string, now time.Time) *model.OrderAnomaly {
	if execID == "" {
		return nil
	}

	cutoff := now.Add(-d.duplicateWindow)
	for _, existing := range d.recentFills[orderID] {
		if existing.timestamp.After(cutoff) && existing.execID == execID {
			return &model.OrderAnomaly{
				AnomalyID:   "duplicate_" + execID,
				OrderID:     orderID,
				AnomalyType: model.AnomalyDuplicateFill,
				Description: fmt.Sprintf("duplicate fill detected: %s", execID),
				DetectedAt:  now,
				Severity:    model.SeverityHigh,
				Status:      model.AnomalyStatusOpen,
			}
		}
	}

	kept := d.recentFills[orderID][:0]
	for _, existing := range d.recentFills[orderID] {
		if existing.timestamp.After(cutoff) {
			kept = append(kept, existing)
		}
	}
	d.recentFills[orderID] = append(kept, fillRecord{execID: execID, timestamp: now})

	return nil
}

// ForgetOrder drops duplicate-detection state for a finished order.
func (d *AnomalyDetector) ForgetOrder(orderID string) {
	delete(d.recentFills, orderID)
}
