package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"executioncore/src/database"
	"executioncore/src/model"
)

// MetricsRepository handles read/write operations for execution quality metrics.
type MetricsRepository struct {
	db *gorm.DB
}

// NewMetricsRepository creates a new repository instance using the main read/write database.
func NewMetricsRepository() *MetricsRepository {
	logger.WithField("component", "MetricsRepository").
		Info("Creating new MetricsRepository with MainDB")

	return &MetricsRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *MetricsRepository) WithDB(db *gorm.DB) *MetricsRepository {
	logger.WithField("component", "MetricsRepository").
		Debug("Creating MetricsRepository with custom DB instance")

	return &MetricsRepository{db: db}
}

// Save inserts the metrics row or updates every column when one already
// exists for the order.
func (r *MetricsRepository) Save(
	ctx context.Context,
	metrics *model.ExecutionMetrics,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "MetricsRepository",
		"op":       "Save",
		"order_id": metrics.OrderID,
		"quality":  metrics.QualityRating,
	}).Debug("Saving execution metrics")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(metrics).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "MetricsRepository",
			"op":       "Save",
			"order_id": metrics.OrderID,
		}).WithError(err).Error("Failed to save execution metrics")

		return err
	}

	return nil
}

// FindByOrderID fetches the metrics recorded for one order.
// Returns (nil, nil) if no metrics exist yet.
func (r *MetricsRepository) FindByOrderID(
	ctx context.Context,
	orderID string,
) (*model.ExecutionMetrics, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "MetricsRepository",
		"op":       "FindByOrderID",
		"order_id": orderID,
	}).Debug("Fetching execution metrics by order ID")

	var metrics model.ExecutionMetrics

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&metrics).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "MetricsRepository",
				"op":       "FindByOrderID",
				"order_id": orderID,
			}).Info("Execution metrics not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "MetricsRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch execution metrics")

		return nil, err
	}

	return &metrics, nil
}

// FindCompletedSince returns metrics for orders completed after the cutoff,
// oldest first. Used to rebuild quality aggregates on startup.
func (r *MetricsRepository) FindCompletedSince(
	ctx context.Context,
	cutoff time.Time,
) ([]model.ExecutionMetrics, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "MetricsRepository",
		"op":     "FindCompletedSince",
		"cutoff": cutoff,
	}).Debug("Fetching execution metrics completed since cutoff")

	var rows []model.ExecutionMetrics

	err := r.db.WithContext(ctx).
		Where("completed_at > ?", cutoff).
		Order("completed_at ASC").
		Find(&rows).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "MetricsRepository",
			"op":     "FindCompletedSince",
			"cutoff": cutoff,
		}).WithError(err).Error("Failed to fetch execution metrics since cutoff")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "MetricsRepository",
		"op":          "FindCompletedSince",
		"rows_return": len(rows),
	}).Info("Execution metrics fetched since cutoff")

	return rows, nil
}
