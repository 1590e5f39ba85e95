package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"executioncore/src/engine"
	"executioncore/src/model"
	"executioncore/src/monitor"
)

type orderMetricsProvider interface {
	OrderMetrics(orderID string) (*model.ExecutionMetrics, bool)
}

type alertsProvider interface {
	Alerts(level string, limit int) []*model.Alert
}

type anomaliesProvider interface {
	Anomalies(status string, limit int) []*model.OrderAnomaly
}

type anomalyResolver interface {
	ResolveAnomaly(ctx context.Context, anomalyID, resolution string) bool
}

type qualityReporter interface {
	GetQualityReport(period string) *monitor.QualityReport
}

type dashboardProvider interface {
	Dashboard() *monitor.DashboardSummary
}

// OrderMetricsHandler returns a handler that fetches execution quality
// metrics for one order.
func OrderMetricsHandler(provider orderMetricsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderId")
		if orderID == "" {
			http.Error(w, "missing orderId", http.StatusBadRequest)
			return
		}

		metrics, ok := provider.OrderMetrics(orderID)
		if !ok {
			http.Error(w, "metrics not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metrics); err != nil {
			logger.WithError(err).Error("failed to encode order metrics response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// AlertsHandler returns a handler that lists recent alerts. Supports
// level and limit query parameters.
func AlertsHandler(provider alertsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")

		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Alerts(level, limit)); err != nil {
			logger.WithError(err).Error("failed to encode alerts response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// AnomaliesHandler returns a handler that lists detected anomalies.
// Supports status and limit query parameters.
func AnomaliesHandler(provider anomaliesProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")

		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Anomalies(status, limit)); err != nil {
			logger.WithError(err).Error("failed to encode anomalies response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// ResolveAnomalyHandler returns a handler that marks an anomaly as
// resolved. Responds 409 when the anomaly is unknown or already closed.
func ResolveAnomalyHandler(resolver anomalyResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		anomalyID := chi.URLParam(r, "anomalyId")
		if anomalyID == "" {
			http.Error(w, "missing anomalyId", http.StatusBadRequest)
			return
		}

		resolution := r.URL.Query().Get("resolution")
		if resolution == "" {
			resolution = "resolved via api"
		}

		if !resolver.ResolveAnomaly(r.Context(), anomalyID, resolution) {
			http.Error(w, "anomaly not open", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{
			"anomaly_id": anomalyID,
			"status":     model.AnomalyStatusResolved,
		}); err != nil {
			logger.WithError(err).Error("failed to encode resolve anomaly response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// QualityReportHandler returns a handler that summarizes execution
// quality for a period (daily, weekly or monthly).
func QualityReportHandler(reporter qualityReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := r.URL.Query().Get("period")
		if period == "" {
			period = "daily"
		}

		switch period {
		case "daily", "weekly", "monthly":
		default:
			http.Error(w, "invalid period", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reporter.GetQualityReport(period)); err != nil {
			logger.WithError(err).Error("failed to encode quality report response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DashboardHandler returns a handler that reports the full monitoring
// snapshot used by the operations dashboard.
func DashboardHandler(provider dashboardProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Dashboard()); err != nil {
			logger.WithError(err).Error("failed to encode dashboard response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DefaultOrderMetricsHandler wires the handler to the running engine.
func DefaultOrderMetricsHandler() http.HandlerFunc {
	return OrderMetricsHandler(engine.Main.Monitor)
}

// DefaultAlertsHandler wires the handler to the running engine.
func DefaultAlertsHandler() http.HandlerFunc {
	return AlertsHandler(engine.Main.Monitor)
}

// DefaultAnomaliesHandler wires the handler to the running engine.
func DefaultAnomaliesHandler() http.HandlerFunc {
	return AnomaliesHandler(engine.Main.Monitor)
}

// DefaultResolveAnomalyHandler wires the handler to the running engine.
func DefaultResolveAnomalyHandler() http.HandlerFunc {
	return ResolveAnomalyHandler(engine.Main)
}

// DefaultQualityReportHandler wires the handler to the running engine.
func DefaultQualityReportHandler() http.HandlerFunc {
	return QualityReportHandler(engine.Main.Monitor)
}

// DefaultDashboardHandler wires the handler to the running engine.
func DefaultDashboardHandler() http.HandlerFunc {
	return DashboardHandler(engine.Main.Monitor)
}
