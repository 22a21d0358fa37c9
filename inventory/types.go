package inventory

import "time"

// Status classifies a bin's stock level. Precedence when several
// conditions hold: empty > overfill > critical > low > normal.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusOverfill Status = "overfill"
	StatusCritical Status = "critical"
	StatusLow      Status = "low"
	StatusNormal   Status = "normal"
)

// BinConfiguration is a bin's identity and capacity parameters, fixed to
// a row/position grid coordinate. Invariant: critical_threshold <=
// min_threshold < max_capacity, article_weight_grams > 0.
type BinConfiguration struct {
	ID                 int64     `json:"id"`
	BinID              string    `json:"bin_id"`
	Row                int       `json:"row"`
	Position           int       `json:"position"`
	ArticleType        string    `json:"article_type"`
	ArticleName        string    `json:"article_name"`
	ArticleWeightGrams float64   `json:"article_weight_grams"`
	MinThreshold       int       `json:"min_threshold"`
	CriticalThreshold  int       `json:"critical_threshold"`
	MaxCapacity        int       `json:"max_capacity"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BinConfigUpdate is a partial configuration update; nil fields are left
// untouched.
type BinConfigUpdate struct {
	ArticleType        *string  `json:"article_type"`
	ArticleName        *string  `json:"article_name"`
	ArticleWeightGrams *float64 `json:"article_weight_grams"`
	MinThreshold       *int     `json:"min_threshold"`
	CriticalThreshold  *int     `json:"critical_threshold"`
	MaxCapacity        *int     `json:"max_capacity"`
}

// BinDisplayState is the derived view of one bin: configuration joined
// with current inventory, plus computed status and fill percentage. It
// is never persisted.
type BinDisplayState struct {
	BinID             string    `json:"bin_id"`
	Row               int       `json:"row"`
	Position          int       `json:"position"`
	ArticleType       string    `json:"article_type"`
	ArticleName       string    `json:"article_name"`
	CurrentQuantity   int       `json:"current_quantity"`
	MaxCapacity       int       `json:"max_capacity"`
	FillPercentage    int       `json:"fill_percentage"`
	Status            Status    `json:"status"`
	MinThreshold      int       `json:"min_threshold"`
	CriticalThreshold int       `json:"critical_threshold"`
	WeightGrams       float64   `json:"weight_grams"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Summary aggregates the whole grid for the dashboard header.
type Summary struct {
	TotalBins     int `json:"total_bins"`
	NormalCount   int `json:"normal_count"`
	LowCount      int `json:"low_count"`
	CriticalCount int `json:"critical_count"`
	EmptyCount    int `json:"empty_count"`
	OverfillCount int `json:"overfill_count"`
	TotalItems    int `json:"total_items"`
	AlertsActive  int `json:"alerts_active"`
}

// DataPoint is one historical sensor reading.
type DataPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Quantity    int       `json:"quantity"`
	WeightGrams float64   `json:"weight_grams"`
}

// BinHistory pairs a bin with its readings for a date range.
type BinHistory struct {
	BinID string      `json:"bin_id"`
	Data  []DataPoint `json:"data"`
}

// ConsumptionRate summarizes depletion over the trailing 30 days.
// Trend tracks the direction of the quantity level, not consumption
// velocity: a rising level means restocking or slower depletion.
type ConsumptionRate struct {
	DailyAverage  float64 `json:"daily_average"`
	WeeklyAverage float64 `json:"weekly_average"`
	Trend         string  `json:"trend"`
}
