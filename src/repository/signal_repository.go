package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"executioncore/src/database"
	"executioncore/src/model"
)

// SignalRepository handles read/write operations for trading signals.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new repository instance using the main read/write database.
func NewSignalRepository() *SignalRepository {
	logger.WithField("component", "SignalRepository").
		Info("Creating new SignalRepository with MainDB")

	return &SignalRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	logger.WithField("component", "SignalRepository").
		Debug("Creating SignalRepository with custom DB instance")

	return &SignalRepository{db: db}
}

// Save inserts the signal or updates every column when the signal ID already exists.
func (r *SignalRepository) Save(
	ctx context.Context,
	signal *model.Signal,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "Save",
		"signal_id": signal.SignalID,
		"strategy":  signal.StrategyID,
		"symbol":    signal.Symbol,
		"status":    signal.Status,
	}).Debug("Saving signal")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(signal).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "Save",
			"signal_id": signal.SignalID,
		}).WithError(err).Error("Failed to save signal")

		return err
	}

	return nil
}

// FindBySignalID fetches a single signal by its ID.
// Returns (nil, nil) if the signal is not found.
func (r *SignalRepository) FindBySignalID(
	ctx context.Context,
	signalID string,
) (*model.Signal, error) {

	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "FindBySignalID",
		"signal_id": signalID,
	}).Debug("Fetching signal by ID")

	var signal model.Signal

	err := r.db.WithContext(ctx).
		Where("signal_id = ?", signalID).
		First(&signal).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":      "SignalRepository",
				"op":        "FindBySignalID",
				"signal_id": signalID,
			}).Info("Signal not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "FindBySignalID",
			"signal_id": signalID,
		}).WithError(err).Error("Failed to fetch signal by ID")

		return nil, err
	}

	return &signal, nil
}

// FindByStatus returns signals in the given status, oldest first.
func (r *SignalRepository) FindByStatus(
	ctx context.Context,
	status string,
	limit int,
) ([]model.Signal, error) {

	if limit <= 0 {
		limit = 100
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "SignalRepository",
		"op":     "FindByStatus",
		"status": status,
		"limit":  limit,
	}).Debug("Fetching signals by status")

	var signals []model.Signal

	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("timestamp ASC").
		Limit(limit).
		Find(&signals).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "FindByStatus",
			"status": status,
		}).WithError(err).Error("Failed to fetch signals by status")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "SignalRepository",
		"op":          "FindByStatus",
		"status":      status,
		"rows_return": len(signals),
	}).Info("Signals fetched by status")

	return signals, nil
}

// FindLatestByStrategy returns the latest signals for one strategy, newest first.
func (r *SignalRepository) FindLatestByStrategy(
	ctx context.Context,
	strategyID string,
	limit int,
) ([]model.Signal, error) {

	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "SignalRepository",
		"op":       "FindLatestByStrategy",
		"strategy": strategyID,
		"limit":    limit,
	}).Debug("Fetching latest signals for strategy")

	var signals []model.Signal

	err := r.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&signals).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "SignalRepository",
			"op":       "FindLatestByStrategy",
			"strategy": strategyID,
		}).WithError(err).Error("Failed to fetch latest signals for strategy")

		return nil, err
	}

	return signals, nil
}

// UpdateStatus updates only the status of the given signal ID.
func (r *SignalRepository) UpdateStatus(
	ctx context.Context,
	signalID string,
	status string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "UpdateStatus",
		"signal_id": signalID,
		"status":    status,
	}).Debug("Updating signal status")

	err := r.db.WithContext(ctx).
		Model(&model.Signal{}).
		Where("signal_id = ?", signalID).
		Update("status", status).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "UpdateStatus",
			"signal_id": signalID,
			"status":    status,
		}).WithError(err).Error("Failed to update signal status")

		return err
	}

	return nil
}
