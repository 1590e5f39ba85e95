package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"executioncore/src/engine"
	"executioncore/src/executor"
	"executioncore/src/model"
	"executioncore/src/repository"
)

type activeOrderProvider interface {
	ActiveOrders() []*model.Order
	GetStats() executor.Stats
}

type orderGetter interface {
	GetOrder(orderID string) (*model.Order, bool)
}

type orderCanceller interface {
	CancelOrder(ctx context.Context, orderID string) bool
}

type orderHistoryFinder interface {
	FindLatest(ctx context.Context, limit int) ([]model.Order, error)
}

// ActiveOrdersHandler returns a handler that lists orders still working in
// the market along with executor totals.
func ActiveOrdersHandler(provider activeOrderProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := struct {
			Orders []*model.Order `json:"orders"`
			Stats  executor.Stats `json:"stats"`
		}{
			Orders: provider.ActiveOrders(),
			Stats:  provider.GetStats(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.WithError(err).Error("failed to encode active orders response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// GetOrderHandler returns a handler that fetches one order by ID.
func GetOrderHandler(getter orderGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderId")
		if orderID == "" {
			http.Error(w, "missing orderId", http.StatusBadRequest)
			return
		}

		order, ok := getter.GetOrder(orderID)
		if !ok {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(order); err != nil {
			logger.WithError(err).Error("failed to encode order response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// CancelOrderHandler returns a handler that cancels a working order.
// Cancelling an unknown or already finished order yields 409.
func CancelOrderHandler(canceller orderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderId")
		if orderID == "" {
			http.Error(w, "missing orderId", http.StatusBadRequest)
			return
		}

		if !canceller.CancelOrder(r.Context(), orderID) {
			http.Error(w, "order not cancellable", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"order_id": orderID, "status": model.OrderStatusCancelled}); err != nil {
			logger.WithError(err).Error("failed to encode cancel order response")
		}
	}
}

// OrderHistoryHandler returns a handler that lists persisted orders,
// newest first. Supports a limit query parameter.
func OrderHistoryHandler(finder orderHistoryFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		orders, err := finder.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to fetch order history")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orders); err != nil {
			logger.WithError(err).Error("failed to encode order history response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DefaultActiveOrdersHandler wires the handler to the running engine.
func DefaultActiveOrdersHandler() http.HandlerFunc {
	return ActiveOrdersHandler(engine.Main.Executor)
}

// DefaultGetOrderHandler wires the handler to the running engine.
func DefaultGetOrderHandler() http.HandlerFunc {
	return GetOrderHandler(engine.Main.Executor)
}

// DefaultCancelOrderHandler wires the handler to the running engine.
func DefaultCancelOrderHandler() http.HandlerFunc {
	return CancelOrderHandler(engine.Main)
}

// DefaultOrderHistoryHandler wires the handler to the production repository implementation.
func DefaultOrderHistoryHandler() http.HandlerFunc {
	return OrderHistoryHandler(repository.NewOrderRepository())
}
