package model

import "time"

// Anomaly types detected by the monitor.
const (
	AnomalyDelayedFill   = "DELAYED_FILL"
	AnomalyPartialStall  = "PARTIAL_STALL"
	AnomalyPriceAnomaly  = "PRICE_ANOMALY"
	AnomalyDuplicateFill = "DUPLICATE_FILL"
)

// Anomaly severities.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Anomaly investigation statuses.
const (
	AnomalyStatusOpen          = "OPEN"
	AnomalyStatusInvestigating = "INVESTIGATING"
	AnomalyStatusResolved      = "RESOLVED"
	AnomalyStatusClosed        = "CLOSED"
)

// OrderAnomaly records one suspicious observation about an order's execution.
type OrderAnomaly struct {
	AnomalyID   string     `gorm:"primaryKey;size:64;column:anomaly_id" json:"anomaly_id"`
	OrderID     string     `gorm:"size:64;index" json:"order_id"`
	AnomalyType string     `gorm:"size:50;index" json:"anomaly_type"`
	Description string     `gorm:"size:1024" json:"description"`
	DetectedAt  time.Time  `json:"detected_at"`
	Severity    string     `gorm:"size:20" json:"severity"`
	Status      string     `gorm:"size:30;not null;default:OPEN" json:"status"`
	Resolution  string     `gorm:"size:512" json:"resolution,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// TableName allows you to control the exact table name for order anomalies.
func (OrderAnomaly) TableName() string {
	return "order_anomalies"
}

// AlertLevelForSeverity maps an anomaly severity to the alert level raised
// for it.
func AlertLevelForSeverity(severity string) string {
	switch severity {
	case SeverityLow:
		return AlertLevelInfo
	case SeverityMedium:
		return AlertLevelWarning
	case SeverityHigh:
		return AlertLevelError
	case SeverityCritical:
		return AlertLevelCritical
	default:
		return AlertLevelWarning
	}
}
