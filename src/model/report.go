package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionReport is one fill event as it reaches the monitor.
// Immutable once created.
type ExecutionReport struct {
	ReportID   string          `gorm:"primaryKey;size:64;column:report_id" json:"report_id"`
	OrderID    string          `gorm:"size:64;index" json:"order_id"`
	SliceID    string          `gorm:"size:64;index" json:"slice_id"`
	ExecID     string          `gorm:"size:64" json:"exec_id"`
	Symbol     string          `gorm:"size:50" json:"symbol"`
	Side       string          `gorm:"size:10" json:"side"`
	Quantity   decimal.Decimal `gorm:"type:numeric" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:numeric" json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
	Venue      string          `gorm:"size:50" json:"venue"`
	Commission decimal.Decimal `gorm:"type:numeric" json:"commission"`
}

// TableName allows you to control the exact table name for execution reports.
func (ExecutionReport) TableName() string {
	return "execution_reports"
}
