package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"executioncore/src/executor"
	"executioncore/src/model"
	"executioncore/src/signal"
)

type mockOrderSource struct {
	orders      []*model.Order
	stats       executor.Stats
	order       *model.Order
	cancelled   []string
	cancelOK    bool
	history     []model.Order
	historyErr  error
	calledLimit int
}

func (m *mockOrderSource) ActiveOrders() []*model.Order { return m.orders }

func (m *mockOrderSource) GetStats() executor.Stats { return m.stats }

func (m *mockOrderSource) GetOrder(orderID string) (*model.Order, bool) {
	if m.order != nil && m.order.OrderID == orderID {
		return m.order, true
	}
	return nil, false
}

func (m *mockOrderSource) CancelOrder(ctx context.Context, orderID string) bool {
	m.cancelled = append(m.cancelled, orderID)
	return m.cancelOK
}

func (m *mockOrderSource) FindLatest(ctx context.Context, limit int) ([]model.Order, error) {
	m.calledLimit = limit
	return m.history, m.historyErr
}

type mockSignalIntake struct {
	result   signal.ValidationResult
	received *model.Signal
	cancelOK bool
}

func (m *mockSignalIntake) SubmitSignal(sig *model.Signal) signal.ValidationResult {
	m.received = sig
	return m.result
}

func (m *mockSignalIntake) Cancel(signalID, reason string) bool { return m.cancelOK }

func routedRequest(method, path, routePattern string, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, routePattern, handler)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestActiveOrdersHandler(t *testing.T) {
	source := &mockOrderSource{
		orders: []*model.Order{
			{OrderID: "ord-1", Symbol: "AAPL", Status: model.OrderStatusSubmitted},
		},
		stats: executor.Stats{TotalOrders: 3, FilledOrders: 2},
	}

	rr := httptest.NewRecorder()
	ActiveOrdersHandler(source).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/active", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Orders []model.Order  `json:"orders"`
		Stats  executor.Stats `json:"stats"`
	}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Len(t, response.Orders, 1)
	assert.Equal(t, "ord-1", response.Orders[0].OrderID)
	assert.Equal(t, int64(3), response.Stats.TotalOrders)
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	rr := routedRequest(http.MethodGet, "/orders/missing", "/orders/{orderId}", GetOrderHandler(&mockOrderSource{}), "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetOrderHandler_Found(t *testing.T) {
	source := &mockOrderSource{
		order: &model.Order{OrderID: "ord-1", Symbol: "AAPL", Status: model.OrderStatusFilled},
	}

	rr := routedRequest(http.MethodGet, "/orders/ord-1", "/orders/{orderId}", GetOrderHandler(source), "")

	assert.Equal(t, http.StatusOK, rr.Code)

	var order model.Order
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&order))
	assert.Equal(t, model.OrderStatusFilled, order.Status)
}

func TestCancelOrderHandler_Conflict(t *testing.T) {
	source := &mockOrderSource{cancelOK: false}

	rr := routedRequest(http.MethodPost, "/orders/ord-1/cancel", "/orders/{orderId}/cancel", CancelOrderHandler(source), "")

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, []string{"ord-1"}, source.cancelled)
}

func TestCancelOrderHandler_OK(t *testing.T) {
	source := &mockOrderSource{cancelOK: true}

	rr := routedRequest(http.MethodPost, "/orders/ord-1/cancel", "/orders/{orderId}/cancel", CancelOrderHandler(source), "")

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOrderHistoryHandler_InvalidLimit(t *testing.T) {
	rr := httptest.NewRecorder()
	OrderHistoryHandler(&mockOrderSource{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHistoryHandler_PassesLimit(t *testing.T) {
	source := &mockOrderSource{history: []model.Order{{OrderID: "ord-1"}}}

	rr := httptest.NewRecorder()
	OrderHistoryHandler(source).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders?limit=5", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, source.calledLimit)
}

func TestSubmitSignalHandler_InvalidBody(t *testing.T) {
	rr := httptest.NewRecorder()
	SubmitSignalHandler(&mockSignalIntake{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitSignalHandler_Accepted(t *testing.T) {
	intake := &mockSignalIntake{result: signal.ValidationResult{Valid: true}}

	body := `{"strategy_id":"momentum_v1","symbol":"AAPL","side":"BUY","quantity":"100","price_type":"TWAP"}`
	rr := httptest.NewRecorder()
	SubmitSignalHandler(intake).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
	if assert.NotNil(t, intake.received) {
		assert.Equal(t, "momentum_v1", intake.received.StrategyID)
		assert.Equal(t, model.PriceTypeTWAP, intake.received.PriceType)
		assert.True(t, intake.received.Quantity.Equal(decimal.NewFromInt(100)))
		// defaults applied before intake
		assert.Equal(t, 5, intake.received.Priority)
	}
}

func TestSubmitSignalHandler_Rejected(t *testing.T) {
	intake := &mockSignalIntake{result: signal.ValidationResult{
		Valid:        false,
		ErrorCode:    signal.ErrCodeMissingSymbol,
		ErrorMessage: "symbol is required",
	}}

	body := `{"strategy_id":"momentum_v1","side":"BUY","quantity":"100"}`
	rr := httptest.NewRecorder()
	SubmitSignalHandler(intake).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var result signal.ValidationResult
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.False(t, result.Valid)
	assert.Equal(t, signal.ErrCodeMissingSymbol, result.ErrorCode)
}

func TestCancelSignalHandler_Conflict(t *testing.T) {
	rr := routedRequest(http.MethodDelete, "/signals/sig-1", "/signals/{signalId}", CancelSignalHandler(&mockSignalIntake{cancelOK: false}), "")

	assert.Equal(t, http.StatusConflict, rr.Code)
}

type mockAnomalyResolver struct {
	resolveOK  bool
	gotID      string
	resolution string
}

func (m *mockAnomalyResolver) ResolveAnomaly(ctx context.Context, anomalyID, resolution string) bool {
	m.gotID = anomalyID
	m.resolution = resolution
	return m.resolveOK
}

func TestResolveAnomalyHandler_OK(t *testing.T) {
	resolver := &mockAnomalyResolver{resolveOK: true}
	rr := routedRequest(http.MethodPost, "/anomalies/anom-1/resolve?resolution=checked+upstream",
		"/anomalies/{anomalyId}/resolve", ResolveAnomalyHandler(resolver), "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anom-1", resolver.gotID)
	assert.Equal(t, "checked upstream", resolver.resolution)
}

func TestResolveAnomalyHandler_Conflict(t *testing.T) {
	rr := routedRequest(http.MethodPost, "/anomalies/anom-1/resolve",
		"/anomalies/{anomalyId}/resolve", ResolveAnomalyHandler(&mockAnomalyResolver{}), "")

	assert.Equal(t, http.StatusConflict, rr.Code)
}
