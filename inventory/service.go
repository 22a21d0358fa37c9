package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"binwatch/store"
)

// ErrNoFields is returned when a partial update names nothing to change.
var ErrNoFields = errors.New("no fields to update")

// ErrBinNotFound is returned for operations against an unknown bin.
var ErrBinNotFound = errors.New("bin not found")

// Service maintains the inventory state: the append-only reading history,
// the current-inventory cache, and the derived per-bin display states.
type Service struct {
	db store.Adapter
}

func NewService(db store.Adapter) *Service {
	return &Service{db: db}
}

func (s *Service) ListBinConfigurations(ctx context.Context) ([]*BinConfiguration, error) {
	rows, err := s.db.FetchAll(ctx,
		`SELECT * FROM bin_configurations ORDER BY row, position`)
	if err != nil {
		return nil, err
	}
	configs := make([]*BinConfiguration, 0, len(rows))
	for _, r := range rows {
		configs = append(configs, scanBinConfiguration(r))
	}
	return configs, nil
}

// GetBinConfiguration returns nil when the bin is unknown.
func (s *Service) GetBinConfiguration(ctx context.Context, binID string) (*BinConfiguration, error) {
	row, err := s.db.FetchOne(ctx,
		`SELECT * FROM bin_configurations WHERE bin_id = ?`, binID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return scanBinConfiguration(row), nil
}

func scanBinConfiguration(r store.Row) *BinConfiguration {
	return &BinConfiguration{
		ID:                 r.Int64("id"),
		BinID:              r.String("bin_id"),
		Row:                r.Int("row"),
		Position:           r.Int("position"),
		ArticleType:        r.String("article_type"),
		ArticleName:        r.String("article_name"),
		ArticleWeightGrams: r.Float("article_weight_grams"),
		MinThreshold:       r.Int("min_threshold"),
		CriticalThreshold:  r.Int("critical_threshold"),
		MaxCapacity:        r.Int("max_capacity"),
		CreatedAt:          r.Time("created_at"),
		UpdatedAt:          r.Time("updated_at"),
	}
}

// UpdateBinConfiguration applies a partial update. An update naming no
// fields is rejected rather than silently succeeding.
func (s *Service) UpdateBinConfiguration(ctx context.Context, binID string, upd *BinConfigUpdate) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.ArticleType != nil {
		add("article_type", *upd.ArticleType)
	}
	if upd.ArticleName != nil {
		add("article_name", *upd.ArticleName)
	}
	if upd.ArticleWeightGrams != nil {
		add("article_weight_grams", *upd.ArticleWeightGrams)
	}
	if upd.MinThreshold != nil {
		add("min_threshold", *upd.MinThreshold)
	}
	if upd.CriticalThreshold != nil {
		add("critical_threshold", *upd.CriticalThreshold)
	}
	if upd.MaxCapacity != nil {
		add("max_capacity", *upd.MaxCapacity)
	}
	if len(sets) == 0 {
		return ErrNoFields
	}
	args = append(args, binID)
	_, err := s.db.Execute(ctx, fmt.Sprintf(
		`UPDATE bin_configurations SET %s, updated_at = datetime('now') WHERE bin_id = ?`,
		strings.Join(sets, ", ")), args...)
	return err
}

// RecordReading appends a historical data point and refreshes the
// current-inventory cache. The cache write is a single atomic upsert
// keyed by bin identity; with concurrent readings for one bin the last
// writer wins.
func (s *Service) RecordReading(ctx context.Context, binID string, weightGrams float64, quantity int, ts time.Time) (int64, error) {
	tstamp := ts.UTC().Format(time.RFC3339)
	id, err := s.db.Execute(ctx,
		`INSERT INTO inventory_data (bin_id, weight_grams, calculated_quantity, timestamp)
		 VALUES (?, ?, ?, ?)`,
		binID, weightGrams, quantity, tstamp)
	if err != nil {
		return 0, fmt.Errorf("record reading: %w", err)
	}

	_, err = s.db.Execute(ctx, `
		INSERT INTO current_inventory (bin_id, weight_grams, calculated_quantity, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bin_id) DO UPDATE SET
			weight_grams = excluded.weight_grams,
			calculated_quantity = excluded.calculated_quantity,
			last_updated = excluded.last_updated
	`, binID, weightGrams, quantity, tstamp)
	if err != nil {
		return 0, fmt.Errorf("upsert current inventory: %w", err)
	}
	return id, nil
}

const displayStateQuery = `
	SELECT
		bc.bin_id,
		bc.row,
		bc.position,
		bc.article_type,
		bc.article_name,
		bc.min_threshold,
		bc.critical_threshold,
		bc.max_capacity,
		COALESCE(ci.weight_grams, 0) AS weight_grams,
		COALESCE(ci.calculated_quantity, 0) AS calculated_quantity,
		COALESCE(ci.last_updated, datetime('now')) AS last_updated
	FROM bin_configurations bc
	LEFT JOIN current_inventory ci ON bc.bin_id = ci.bin_id`

// CurrentInventory returns the display state of every configured bin in
// row-then-position order.
func (s *Service) CurrentInventory(ctx context.Context) ([]*BinDisplayState, error) {
	rows, err := s.db.FetchAll(ctx, displayStateQuery+` ORDER BY bc.row, bc.position`)
	if err != nil {
		return nil, err
	}
	states := make([]*BinDisplayState, 0, len(rows))
	for _, r := range rows {
		states = append(states, scanDisplayState(r))
	}
	return states, nil
}

// GetBinDisplayState returns nil when the bin is unknown.
func (s *Service) GetBinDisplayState(ctx context.Context, binID string) (*BinDisplayState, error) {
	row, err := s.db.FetchOne(ctx, displayStateQuery+` WHERE bc.bin_id = ?`, binID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return scanDisplayState(row), nil
}

func scanDisplayState(r store.Row) *BinDisplayState {
	qty := r.Int("calculated_quantity")
	maxCap := r.Int("max_capacity")
	return &BinDisplayState{
		BinID:             r.String("bin_id"),
		Row:               r.Int("row"),
		Position:          r.Int("position"),
		ArticleType:       r.String("article_type"),
		ArticleName:       r.String("article_name"),
		CurrentQuantity:   qty,
		MaxCapacity:       maxCap,
		FillPercentage:    FillPercentage(qty, maxCap),
		Status:            ComputeStatus(qty, r.Int("min_threshold"), r.Int("critical_threshold"), maxCap),
		MinThreshold:      r.Int("min_threshold"),
		CriticalThreshold: r.Int("critical_threshold"),
		WeightGrams:       r.Float("weight_grams"),
		LastUpdated:       r.Time("last_updated"),
	}
}

// ComputeStatus evaluates the tier conditions in fixed precedence order:
// empty beats overfill, overfill beats the threshold tiers.
func ComputeStatus(quantity, minThreshold, criticalThreshold, maxCapacity int) Status {
	switch {
	case quantity <= 0:
		return StatusEmpty
	case quantity > maxCapacity:
		return StatusOverfill
	case quantity <= criticalThreshold:
		return StatusCritical
	case quantity <= minThreshold:
		return StatusLow
	default:
		return StatusNormal
	}
}

// FillPercentage is quantity over capacity, rounded and clamped to [0,100].
func FillPercentage(quantity, maxCapacity int) int {
	if maxCapacity <= 0 || quantity <= 0 {
		return 0
	}
	pct := int(math.Round(float64(quantity) / float64(maxCapacity) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// Summary aggregates current display states plus the active alert count.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	states, err := s.CurrentInventory(ctx)
	if err != nil {
		return nil, err
	}
	sum := &Summary{TotalBins: len(states)}
	for _, st := range states {
		sum.TotalItems += st.CurrentQuantity
		switch st.Status {
		case StatusNormal:
			sum.NormalCount++
		case StatusLow:
			sum.LowCount++
		case StatusCritical:
			sum.CriticalCount++
		case StatusEmpty:
			sum.EmptyCount++
		case StatusOverfill:
			sum.OverfillCount++
		}
	}
	row, err := s.db.FetchOne(ctx,
		`SELECT COUNT(*) AS count FROM alert_logs WHERE is_acknowledged = 0`)
	if err != nil {
		return nil, err
	}
	if row != nil {
		sum.AlertsActive = row.Int("count")
	}
	return sum, nil
}

// HistoricalData returns readings within the inclusive range in ascending
// time order, capped at limit rows.
func (s *Service) HistoricalData(ctx context.Context, binID string, start, end time.Time, limit int) ([]DataPoint, error) {
	rows, err := s.db.FetchAll(ctx, `
		SELECT timestamp, calculated_quantity AS quantity, weight_grams
		FROM inventory_data
		WHERE bin_id = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC
		LIMIT ?`,
		binID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	points := make([]DataPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, DataPoint{
			Timestamp:   r.Time("timestamp"),
			Quantity:    r.Int("quantity"),
			WeightGrams: r.Float("weight_grams"),
		})
	}
	return points, nil
}

// AllHistoricalData returns per-bin histories for every configured bin.
func (s *Service) AllHistoricalData(ctx context.Context, start, end time.Time) ([]BinHistory, error) {
	configs, err := s.ListBinConfigurations(ctx)
	if err != nil {
		return nil, err
	}
	histories := make([]BinHistory, 0, len(configs))
	for _, cfg := range configs {
		data, err := s.HistoricalData(ctx, cfg.BinID, start, end, 1000)
		if err != nil {
			return nil, err
		}
		histories = append(histories, BinHistory{BinID: cfg.BinID, Data: data})
	}
	return histories, nil
}

// ConsumptionRate computes depletion averages and the level trend over
// the trailing 30 days. With fewer than two readings everything is zero
// and the trend is stable.
func (s *Service) ConsumptionRate(ctx context.Context, binID string) (*ConsumptionRate, error) {
	cutoff := time.Now().AddDate(0, 0, -30).UTC().Format(time.RFC3339)
	rows, err := s.db.FetchAll(ctx, `
		SELECT timestamp, calculated_quantity AS quantity
		FROM inventory_data
		WHERE bin_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`,
		binID, cutoff)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return &ConsumptionRate{Trend: "stable"}, nil
	}

	// Only positive decreases count as consumption; increases are
	// restocking and are excluded.
	totalConsumed := 0
	for i := 1; i < len(rows); i++ {
		diff := rows[i-1].Int("quantity") - rows[i].Int("quantity")
		if diff > 0 {
			totalConsumed += diff
		}
	}

	first := rows[0].Time("timestamp")
	last := rows[len(rows)-1].Time("timestamp")
	days := int(last.Sub(first).Hours() / 24)
	if days < 1 {
		days = 1
	}
	daily := float64(totalConsumed) / float64(days)

	return &ConsumptionRate{
		DailyAverage:  math.Round(daily*10) / 10,
		WeeklyAverage: math.Round(daily*7*10) / 10,
		Trend:         levelTrend(rows),
	}, nil
}

// levelTrend splits the sequence at its midpoint and compares half
// means; a shift of more than 10% either way breaks "stable".
func levelTrend(rows []store.Row) string {
	mid := len(rows) / 2
	firstSum, secondSum := 0, 0
	for i, r := range rows {
		if i < mid {
			firstSum += r.Int("quantity")
		} else {
			secondSum += r.Int("quantity")
		}
	}
	firstAvg := float64(firstSum) / math.Max(1, float64(mid))
	secondAvg := float64(secondSum) / math.Max(1, float64(len(rows)-mid))

	ratio := (secondAvg - firstAvg) / math.Max(1, firstAvg)
	switch {
	case ratio > 0.1:
		return "increasing"
	case ratio < -0.1:
		return "decreasing"
	default:
		return "stable"
	}
}

// CleanupOldData deletes historical readings older than the retention
// window and returns how many were removed.
func (s *Service) CleanupOldData(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UTC().Format(time.RFC3339)
	row, err := s.db.FetchOne(ctx,
		`SELECT COUNT(*) AS count FROM inventory_data WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	count := 0
	if row != nil {
		count = row.Int("count")
	}
	if _, err := s.db.Execute(ctx,
		`DELETE FROM inventory_data WHERE timestamp < ?`, cutoff); err != nil {
		return 0, err
	}
	if count > 0 {
		log.Printf("inventory: cleaned up %d old readings", count)
	}
	return count, nil
}
