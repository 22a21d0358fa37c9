package alert

import "time"

// Alert type names as stored and broadcast.
const (
	TypeLowStock      = "low_stock"
	TypeCriticalStock = "critical_stock"
	TypeEmpty         = "empty"
	TypeOverfill      = "overfill"
)

// Log is one raised alert occurrence.
type Log struct {
	ID              int64      `json:"id"`
	BinID           string     `json:"bin_id"`
	AlertType       string     `json:"alert_type"`
	Message         string     `json:"message"`
	QuantityAtAlert int        `json:"quantity_at_alert"`
	ThresholdValue  int        `json:"threshold_value"`
	IsAcknowledged  bool       `json:"is_acknowledged"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  string     `json:"acknowledged_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Config is a per-bin, per-type alert rule.
type Config struct {
	ID             int64     `json:"id"`
	BinID          string    `json:"bin_id"`
	AlertType      string    `json:"alert_type"`
	ThresholdValue int       `json:"threshold_value"`
	IsEnabled      bool      `json:"is_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConfigUpdate is a partial update of an alert rule.
type ConfigUpdate struct {
	ThresholdValue *int  `json:"threshold_value,omitempty"`
	IsEnabled      *bool `json:"is_enabled,omitempty"`
}

// HistoryPage is one page of alert history plus paging metadata.
type HistoryPage struct {
	Alerts []*Log `json:"alerts"`
	Total  int    `json:"total"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}
