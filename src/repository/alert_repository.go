package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"executioncore/src/database"
	"executioncore/src/model"
)

// AlertRepository handles read/write operations for execution alerts.
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new repository instance using the main read/write database.
func NewAlertRepository() *AlertRepository {
	logger.WithField("component", "AlertRepository").
		Info("Creating new AlertRepository with MainDB")

	return &AlertRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *AlertRepository) WithDB(db *gorm.DB) *AlertRepository {
	logger.WithField("component", "AlertRepository").
		Debug("Creating AlertRepository with custom DB instance")

	return &AlertRepository{db: db}
}

// Create inserts a new alert into the database.
func (r *AlertRepository) Create(
	ctx context.Context,
	alert *model.Alert,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "AlertRepository",
		"op":       "Create",
		"alert_id": alert.AlertID,
		"level":    alert.Level,
		"category": alert.Category,
	}).Debug("Creating alert")

	err := r.db.WithContext(ctx).Create(alert).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "AlertRepository",
			"op":       "Create",
			"alert_id": alert.AlertID,
		}).WithError(err).Error("Failed to create alert")

		return err
	}

	return nil
}

// FindRecent returns the latest alerts, newest first. An empty level
// returns alerts of every level.
func (r *AlertRepository) FindRecent(
	ctx context.Context,
	level string,
	limit int,
) ([]model.Alert, error) {

	if limit <= 0 {
		limit = 100
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "AlertRepository",
		"op":    "FindRecent",
		"level": level,
		"limit": limit,
	}).Debug("Fetching recent alerts")

	query := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit)

	if level != "" {
		query = query.Where("level = ?", level)
	}

	var alerts []model.Alert

	if err := query.Find(&alerts).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "AlertRepository",
			"op":    "FindRecent",
			"level": level,
		}).WithError(err).Error("Failed to fetch recent alerts")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "AlertRepository",
		"op":          "FindRecent",
		"level":       level,
		"rows_return": len(alerts),
	}).Info("Recent alerts fetched")

	return alerts, nil
}

// FindByOrderID returns every alert raised for one order, oldest first.
func (r *AlertRepository) FindByOrderID(
	ctx context.Context,
	orderID string,
) ([]model.Alert, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "AlertRepository",
		"op":       "FindByOrderID",
		"order_id": orderID,
	}).Debug("Fetching alerts for order")

	var alerts []model.Alert

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp ASC").
		Find(&alerts).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "AlertRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch alerts for order")

		return nil, err
	}

	return alerts, nil
}
