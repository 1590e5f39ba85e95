package model

import "time"

// Alert levels.
const (
	AlertLevelInfo     = "INFO"
	AlertLevelWarning  = "WARNING"
	AlertLevelError    = "ERROR"
	AlertLevelCritical = "CRITICAL"
)

// Alert categories.
const (
	AlertCategorySlippage = "SLIPPAGE"
	AlertCategoryFillRate = "FILL_RATE"
	AlertCategoryAnomaly  = "ANOMALY"
)

// Alert is an append-only log entry raised by the execution monitor.
// Alerts are never mutated after creation.
type Alert struct {
	AlertID   string         `gorm:"primaryKey;size:64;column:alert_id" json:"alert_id"`
	Level     string         `gorm:"size:20;index" json:"level"`
	Category  string         `gorm:"size:50;index" json:"category"`
	Message   string         `gorm:"size:1024;not null" json:"message"`
	OrderID   string         `gorm:"size:64;index" json:"order_id,omitempty"`
	Symbol    string         `gorm:"size:50" json:"symbol,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`
}

// TableName allows you to control the exact table name for alerts.
func (Alert) TableName() string {
	return "alerts"
}
