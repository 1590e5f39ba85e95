package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"executioncore/src/database"
	"executioncore/src/model"
)

// AnomalyRepository handles read/write operations for detected order anomalies.
type AnomalyRepository struct {
	db *gorm.DB
}

// NewAnomalyRepository creates a new repository instance using the main read/write database.
func NewAnomalyRepository() *AnomalyRepository {
	logger.WithField("component", "AnomalyRepository").
		Info("Creating new AnomalyRepository with MainDB")

	return &AnomalyRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *AnomalyRepository) WithDB(db *gorm.DB) *AnomalyRepository {
	logger.WithField("component", "AnomalyRepository").
		Debug("Creating AnomalyRepository with custom DB instance")

	return &AnomalyRepository{db: db}
}

// Create inserts a new anomaly into the database.
func (r *AnomalyRepository) Create(
	ctx context.Context,
	anomaly *model.OrderAnomaly,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":       "AnomalyRepository",
		"op":         "Create",
		"anomaly_id": anomaly.AnomalyID,
		"order_id":   anomaly.OrderID,
		"type":       anomaly.AnomalyType,
		"severity":   anomaly.Severity,
	}).Debug("Creating anomaly")

	err := r.db.WithContext(ctx).Create(anomaly).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "AnomalyRepository",
			"op":         "Create",
			"anomaly_id": anomaly.AnomalyID,
		}).WithError(err).Error("Failed to create anomaly")

		return err
	}

	return nil
}

// FindByStatus returns anomalies in the given status, newest first. An empty
// status returns anomalies in every status.
func (r *AnomalyRepository) FindByStatus(
	ctx context.Context,
	status string,
	limit int,
) ([]model.OrderAnomaly, error) {

	if limit <= 0 {
		limit = 100
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "AnomalyRepository",
		"op":     "FindByStatus",
		"status": status,
		"limit":  limit,
	}).Debug("Fetching anomalies by status")

	query := r.db.WithContext(ctx).
		Order("detected_at DESC").
		Limit(limit)

	if status != "" {
		query = query.Where("status = ?", status)
	}

	var anomalies []model.OrderAnomaly

	if err := query.Find(&anomalies).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "AnomalyRepository",
			"op":     "FindByStatus",
			"status": status,
		}).WithError(err).Error("Failed to fetch anomalies by status")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "AnomalyRepository",
		"op":          "FindByStatus",
		"status":      status,
		"rows_return": len(anomalies),
	}).Info("Anomalies fetched by status")

	return anomalies, nil
}

// Resolve marks an anomaly as resolved with the given resolution note.
func (r *AnomalyRepository) Resolve(
	ctx context.Context,
	anomalyID string,
	resolution string,
	resolvedAt time.Time,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":       "AnomalyRepository",
		"op":         "Resolve",
		"anomaly_id": anomalyID,
	}).Debug("Resolving anomaly")

	err := r.db.WithContext(ctx).
		Model(&model.OrderAnomaly{}).
		Where("anomaly_id = ?", anomalyID).
		Updates(map[string]interface{}{
			"status":      model.AnomalyStatusResolved,
			"resolution":  resolution,
			"resolved_at": resolvedAt,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "AnomalyRepository",
			"op":         "Resolve",
			"anomaly_id": anomalyID,
		}).WithError(err).Error("Failed to resolve anomaly")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "AnomalyRepository",
		"op":         "Resolve",
		"anomaly_id": anomalyID,
	}).Info("Anomaly resolved")

	return nil
}
