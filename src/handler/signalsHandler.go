package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"executioncore/src/engine"
	"executioncore/src/model"
	"executioncore/src/signal"
)

type signalSubmitter interface {
	SubmitSignal(sig *model.Signal) signal.ValidationResult
}

type signalCanceller interface {
	Cancel(signalID, reason string) bool
}

type queueStatusProvider interface {
	Status() signal.QueueStatus
}

// submitSignalRequest is the intake payload for one trading signal.
type submitSignalRequest struct {
	StrategyID      string           `json:"strategy_id"`
	Symbol          string           `json:"symbol"`
	Side            string           `json:"side"`
	Quantity        decimal.Decimal  `json:"quantity"`
	PriceType       string           `json:"price_type"`
	LimitPrice      *decimal.Decimal `json:"limit_price,omitempty"`
	Priority        int              `json:"priority"`
	ExpireInSeconds int              `json:"expire_in_seconds"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// SubmitSignalHandler returns a handler that accepts a trading signal and
// runs it through validation and deduplication. The validation outcome is
// returned synchronously.
func SubmitSignalHandler(submitter signalSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitSignalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if req.PriceType == "" {
			req.PriceType = model.PriceTypeMarket
		}
		if req.Priority == 0 {
			req.Priority = 5
		}

		sig := signal.CreateSignal(
			req.StrategyID,
			req.Symbol,
			req.Side,
			req.Quantity,
			req.PriceType,
			req.LimitPrice,
			req.Priority,
			time.Duration(req.ExpireInSeconds)*time.Second,
			req.Metadata,
		)

		result := submitter.SubmitSignal(sig)

		w.Header().Set("Content-Type", "application/json")
		if !result.Valid {
			w.WriteHeader(http.StatusUnprocessableEntity)
		} else {
			w.WriteHeader(http.StatusCreated)
		}

		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.WithError(err).Error("failed to encode signal intake response")
		}
	}
}

// CancelSignalHandler returns a handler that cancels a queued signal.
// Signals already handed to the executor yield 409.
func CancelSignalHandler(canceller signalCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signalID := chi.URLParam(r, "signalId")
		if signalID == "" {
			http.Error(w, "missing signalId", http.StatusBadRequest)
			return
		}

		reason := r.URL.Query().Get("reason")
		if reason == "" {
			reason = "cancelled via api"
		}

		if !canceller.Cancel(signalID, reason) {
			http.Error(w, "signal not cancellable", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"signal_id": signalID, "status": model.SignalStatusCancelled}); err != nil {
			logger.WithError(err).Error("failed to encode cancel signal response")
		}
	}
}

// QueueStatusHandler returns a handler that reports a snapshot of the
// signal queue.
func QueueStatusHandler(provider queueStatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Status()); err != nil {
			logger.WithError(err).Error("failed to encode queue status response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DefaultSubmitSignalHandler wires the handler to the running engine.
func DefaultSubmitSignalHandler() http.HandlerFunc {
	return SubmitSignalHandler(engine.Main)
}

// DefaultCancelSignalHandler wires the handler to the running engine.
func DefaultCancelSignalHandler() http.HandlerFunc {
	return CancelSignalHandler(engine.Main.Signals)
}

// DefaultQueueStatusHandler wires the handler to the running engine.
func DefaultQueueStatusHandler() http.HandlerFunc {
	return QueueStatusHandler(engine.Main.Signals)
}
