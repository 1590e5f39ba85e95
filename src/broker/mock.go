package broker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"executioncore/src/model"
)

// MockAdapter is an in-memory broker used by tests and paper trading.
// Fills arrive after a configurable delay with a configurable probability
// and a small random band around the quoted price.
type MockAdapter struct {
	mu              sync.Mutex
	fillProbability float64
	fillDelay       time.Duration
	priceJitter     float64
	prices          map[string]decimal.Decimal
	orders          map[string]*OrderStatusReport
	rng             *rand.Rand
	now             func() time.Time
}

// NewMockAdapter creates a mock broker with a default price table.
func NewMockAdapter(fillProbability float64, fillDelay time.Duration) *MockAdapter {
	return &MockAdapter{
		fillProbability: fillProbability,
		fillDelay:       fillDelay,
		priceJitter:     0.01,
		prices: map[string]decimal.Decimal{
			"AAPL":  decimal.NewFromFloat(150.00),
			"GOOGL": decimal.NewFromFloat(140.00),
			"MSFT":  decimal.NewFromFloat(380.00),
			"TSLA":  decimal.NewFromFloat(200.00),
		},
		orders: make(map[string]*OrderStatusReport),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// SetPrice overrides the quoted price for a symbol.
func (m *MockAdapter) SetPrice(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetPriceJitter sets the fill-price band as a fraction of the quote.
// Zero makes fills land exactly on the quoted price.
func (m *MockAdapter) SetPriceJitter(jitter float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceJitter = jitter
}

// Seed makes the adapter's randomness reproducible.
func (m *MockAdapter) Seed(seed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rand.New(rand.NewSource(seed))
}

// SubmitOrder registers the order and simulates a delayed fill.
func (m *MockAdapter) SubmitOrder(ctx context.Context, order *model.Order) error {
	m.mu.Lock()
	m.orders[order.OrderID] = &OrderStatusReport{
		Status:      model.OrderStatusSubmitted,
		SubmittedAt: m.now(),
	}
	delay := m.fillDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	report := m.orders[order.OrderID]
	if m.rng.Float64() >= m.fillProbability {
		report.Status = model.OrderStatusRejected
		return ErrSubmitRejected
	}

	price, ok := m.prices[order.Symbol]
	if !ok {
		price = decimal.NewFromInt(100)
	}
	if m.priceJitter > 0 {
		band := (m.rng.Float64() - 0.5) * m.priceJitter
		price = price.Mul(decimal.NewFromFloat(1 + band))
	}

	completed := m.now()
	report.Status = model.OrderStatusFilled
	report.FilledQuantity = order.TotalQuantity
	report.AvgPrice = price
	report.CompletedAt = &completed
	return nil
}

// CancelOrder cancels a known order.
func (m *MockAdapter) CancelOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, ok := m.orders[orderID]
	if !ok {
		return ErrUnknownOrder
	}
	report.Status = model.OrderStatusCancelled
	return nil
}

// GetOrderStatus returns the venue-side status record.
func (m *MockAdapter) GetOrderStatus(_ context.Context, orderID string) (*OrderStatusReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, ok := m.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	copied := *report
	return &copied, nil
}

// GetMarketPrice quotes the symbol from the price table.
func (m *MockAdapter) GetMarketPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, ErrNoPrice
	}
	return price, nil
}

// GetMarketDepth synthesizes a book around the quoted price with 1000
// shares per level.
func (m *MockAdapter) GetMarketDepth(_ context.Context, symbol string, levels int) (*Depth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[symbol]
	if !ok {
		return nil, ErrNoDepth
	}

	tick := decimal.NewFromFloat(0.01)
	qty := decimal.NewFromInt(1000)
	depth := &Depth{}
	for i := 0; i < levels; i++ {
		offset := tick.Mul(decimal.NewFromInt(int64(i)))
		depth.Bids = append(depth.Bids, Level{Price: price.Sub(offset), Quantity: qty})
		depth.Asks = append(depth.Asks, Level{Price: price.Add(offset), Quantity: qty})
	}
	return depth, nil
}
