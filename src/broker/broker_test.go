package broker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executioncore/src/model"
)

func newTestOrder(symbol string, qty int64) *model.Order {
	return &model.Order{
		OrderID:       "ord-1",
		Symbol:        symbol,
		Side:          model.SideBuy,
		OrderType:     model.OrderTypeMarket,
		TotalQuantity: decimal.NewFromInt(qty),
		Status:        model.OrderStatusPending,
	}
}

func TestMockAdapterFillsFullQuantity(t *testing.T) {
	adapter := NewMockAdapter(1.0, 0)
	adapter.Seed(42)

	order := newTestOrder("AAPL", 100)
	err := adapter.SubmitOrder(context.Background(), order)
	require.NoError(t, err)

	status, err := adapter.GetOrderStatus(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, status.Status)
	assert.True(t, status.FilledQuantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, status.AvgPrice.IsPositive())
}

func TestMockAdapterRejects(t *testing.T) {
	adapter := NewMockAdapter(0.0, 0)
	adapter.Seed(42)

	err := adapter.SubmitOrder(context.Background(), newTestOrder("AAPL", 100))
	if !errors.Is(err, ErrSubmitRejected) {
		t.Fatalf("expected ErrSubmitRejected, got %v", err)
	}
}

func TestMockAdapterUnknownOrder(t *testing.T) {
	adapter := NewMockAdapter(1.0, 0)

	_, err := adapter.GetOrderStatus(context.Background(), "missing")
	if !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestMockAdapterUnknownSymbol(t *testing.T) {
	adapter := NewMockAdapter(1.0, 0)

	_, err := adapter.GetMarketPrice(context.Background(), "NOPE")
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
}

func TestMockAdapterPriceOverride(t *testing.T) {
	adapter := NewMockAdapter(1.0, 0)
	adapter.SetPriceJitter(0)
	adapter.SetPrice("XYZ", decimal.NewFromInt(25))

	price, err := adapter.GetMarketPrice(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(25)))
}

func TestMockAdapterDepthLevels(t *testing.T) {
	adapter := NewMockAdapter(1.0, 0)
	adapter.SetPriceJitter(0)

	depth, err := adapter.GetMarketDepth(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	assert.Len(t, depth.Bids, 5)
	assert.Len(t, depth.Asks, 5)

	// bids descend from the mid, asks ascend
	assert.True(t, depth.Bids[0].Price.GreaterThan(depth.Bids[4].Price))
	assert.True(t, depth.Asks[0].Price.LessThan(depth.Asks[4].Price))
	assert.True(t, depth.Asks[0].Price.GreaterThan(depth.Bids[0].Price))
}

func TestMockAdapterSubmitHonorsContext(t *testing.T) {
	adapter := NewMockAdapter(1.0, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := adapter.SubmitOrder(ctx, newTestOrder("AAPL", 10))
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestSignRequestDeterministic(t *testing.T) {
	sig1 := signRequest("/orders", "", `{"symbol":"AAPL"}`, 1700000000, "secret")
	sig2 := signRequest("/orders", "", `{"symbol":"AAPL"}`, 1700000000, "secret")
	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 64)

	other := signRequest("/orders", "", `{"symbol":"AAPL"}`, 1700000000, "other")
	assert.NotEqual(t, sig1, other)
}

func TestIsRetryableResp(t *testing.T) {
	assert.True(t, isRetryableResp(nil, errors.New("connection refused")))
	assert.False(t, isRetryableResp(nil, nil))
}

func TestStreamFillsDeliversEvents(t *testing.T) {
	var gotPath, gotToken string

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("x-access-token")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		messages := []map[string]string{
			{"order_id": "ord-1", "exec_id": "exec-1", "quantity": "50", "price": "150.25", "time": "2026-03-02T14:30:00Z"},
			{"order_id": "ord-1", "exec_id": "exec-bad", "quantity": "not-a-number", "price": "150", "time": "2026-03-02T14:30:01Z"},
			{"order_id": "ord-2", "exec_id": "exec-2", "quantity": "25", "price": "150.50", "time": "2026-03-02T14:30:02Z"},
		}
		for _, msg := range messages {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}

		// hold the connection open until the client hangs up
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	adapter := NewRESTAdapter("stream-key", "stream-secret", srv.URL, wsURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type streamedFill struct {
		orderID string
		fill    model.Fill
	}
	fills := make(chan streamedFill, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- adapter.StreamFills(ctx, func(orderID string, fill model.Fill) {
			fills <- streamedFill{orderID: orderID, fill: fill}
		})
	}()

	var got []streamedFill
	for len(got) < 2 {
		select {
		case f := <-fills:
			got = append(got, f)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for streamed fills")
		}
	}

	// the malformed message is skipped, not delivered
	assert.Equal(t, "ord-1", got[0].orderID)
	assert.Equal(t, "exec-1", got[0].fill.ExecID)
	assert.True(t, got[0].fill.Quantity.Equal(decimal.NewFromInt(50)))
	assert.True(t, got[0].fill.Price.Equal(decimal.RequireFromString("150.25")))
	assert.Equal(t, time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC), got[0].fill.Timestamp.UTC())

	assert.Equal(t, "ord-2", got[1].orderID)
	assert.Equal(t, "exec-2", got[1].fill.ExecID)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop on context cancel")
	}

	assert.Equal(t, "/fills", gotPath)
	assert.Equal(t, "stream-key", gotToken)
}

func TestStreamFillsRequiresURL(t *testing.T) {
	adapter := NewRESTAdapter("key", "secret", "http://localhost:1", "")
	err := adapter.StreamFills(context.Background(), func(string, model.Fill) {})
	require.Error(t, err)
}
