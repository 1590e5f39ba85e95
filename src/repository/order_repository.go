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

// OrderRepository handles read/write operations for orders and their slices.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Info("Creating new OrderRepository with MainDB")

	return &OrderRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Debug("Creating OrderRepository with custom DB instance")

	return &OrderRepository{db: db}
}

// Save inserts the order or updates every column when the order ID already exists.
func (r *OrderRepository) Save(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Save",
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"status":   order.Status,
	}).Debug("Saving order")

	err := r.db.WithContext(ctx).
		Omit("Slices").
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(order).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "Save",
			"order_id": order.OrderID,
		}).WithError(err).Error("Failed to save order")

		return err
	}

	return nil
}

// SaveWithSlices persists the order together with its slices in one transaction.
func (r *OrderRepository) SaveWithSlices(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "SaveWithSlices",
		"order_id": order.OrderID,
		"slices":   len(order.Slices),
	}).Info("Saving order with slices")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Omit("Slices").
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(order).Error; err != nil {
			logger.WithError(err).Error("Failed to save order inside transaction")
			return err
		}

		for i := range order.Slices {
			if err := tx.
				Clauses(clause.OnConflict{UpdateAll: true}).
				Create(&order.Slices[i]).Error; err != nil {
				logger.WithError(err).Error("Failed to save order slice inside transaction")
				return err
			}
		}

		return nil
	})
}

// FindByOrderID fetches a single order with its slices.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByOrderID(
	ctx context.Context,
	orderID string,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "FindByOrderID",
		"order_id": orderID,
	}).Debug("Fetching order by ID")

	var order model.Order

	err := r.db.WithContext(ctx).
		Preload("Slices").
		Where("order_id = ?", orderID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "OrderRepository",
				"op":       "FindByOrderID",
				"order_id": orderID,
			}).Info("Order not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch order by ID")

		return nil, err
	}

	return &order, nil
}

// FindActive returns orders still working in the market, newest first.
func (r *OrderRepository) FindActive(
	ctx context.Context,
) ([]model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo": "OrderRepository",
		"op":   "FindActive",
	}).Debug("Fetching active orders")

	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			model.OrderStatusPending,
			model.OrderStatusSubmitted,
			model.OrderStatusPartiallyFilled,
		}).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to fetch active orders")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "FindActive",
		"rows_return": len(orders),
	}).Info("Active orders fetched")

	return orders, nil
}

// FindLatest returns the latest orders ordered from newest to oldest.
func (r *OrderRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.Order, error) {

	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "OrderRepository",
		"op":    "FindLatest",
		"limit": limit,
	}).Debug("Fetching latest orders")

	var orders []model.Order

	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest orders")

		return nil, err
	}

	return orders, nil
}

// FindBySignalID fetches the order created for a given signal.
// Returns (nil, nil) if no order exists for the signal.
func (r *OrderRepository) FindBySignalID(
	ctx context.Context,
	signalID string,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":      "OrderRepository",
		"op":        "FindBySignalID",
		"signal_id": signalID,
	}).Debug("Fetching order by signal ID")

	var order model.Order

	err := r.db.WithContext(ctx).
		Where("signal_id = ?", signalID).
		Order("created_at DESC").
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":      "OrderRepository",
				"op":        "FindBySignalID",
				"signal_id": signalID,
			}).Info("Order not found by signal ID")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":      "OrderRepository",
			"op":        "FindBySignalID",
			"signal_id": signalID,
		}).WithError(err).Error("Failed to fetch order by signal ID")

		return nil, err
	}

	return &order, nil
}

// UpdateStatus updates only the status of the given order ID.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	orderID string,
	status string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "UpdateStatus",
		"order_id": orderID,
		"status":   status,
	}).Debug("Updating order status")

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "UpdateStatus",
			"order_id": orderID,
			"status":   status,
		}).WithError(err).Error("Failed to update order status")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "UpdateStatus",
		"order_id": orderID,
		"status":   status,
	}).Info("Order status updated successfully")

	return nil
}

// CreateExecutionReport stores one fill report for an order slice.
func (r *OrderRepository) CreateExecutionReport(
	ctx context.Context,
	report *model.ExecutionReport,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "CreateExecutionReport",
		"order_id": report.OrderID,
		"exec_id":  report.ExecID,
	}).Debug("Creating execution report")

	err := r.db.WithContext(ctx).Create(report).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "CreateExecutionReport",
			"order_id": report.OrderID,
		}).WithError(err).Error("Failed to create execution report")

		return err
	}

	return nil
}

// FindExecutionReportsByOrderID returns all fill reports for an order, oldest first.
func (r *OrderRepository) FindExecutionReportsByOrderID(
	ctx context.Context,
	orderID string,
) ([]model.ExecutionReport, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "FindExecutionReportsByOrderID",
		"order_id": orderID,
	}).Debug("Fetching execution reports for order")

	var reports []model.ExecutionReport

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp ASC").
		Find(&reports).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "FindExecutionReportsByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch execution reports")

		return nil, err
	}

	return reports, nil
}
