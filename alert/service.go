package alert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"binwatch/events"
	"binwatch/inventory"
	"binwatch/store"
)

// ErrNoFields is returned when a partial update names nothing to change.
var ErrNoFields = errors.New("no fields to update")

// ErrNotFound is returned when an alert or alert rule does not exist.
var ErrNotFound = errors.New("alert not found")

// Service evaluates bin states against alert rules, dedupes repeats
// within the cooldown window, and manages acknowledgment.
type Service struct {
	db       store.Adapter
	bus      *events.Bus
	cooldown time.Duration
}

func NewService(db store.Adapter, bus *events.Bus, cooldown time.Duration) *Service {
	return &Service{db: db, bus: bus, cooldown: cooldown}
}

// Evaluate checks a bin's display state against every enabled rule for
// that bin. The rules fire independently: a quantity under both the low
// and critical thresholds raises both alerts. Each (bin, type) pair
// keeps its own cooldown window. Returns the alerts raised this pass.
func (s *Service) Evaluate(ctx context.Context, state *inventory.BinDisplayState) ([]*Log, error) {
	rules, err := s.db.FetchAll(ctx, `
		SELECT * FROM alert_configurations
		WHERE bin_id = ? AND is_enabled = 1`,
		state.BinID)
	if err != nil {
		return nil, fmt.Errorf("load alert rules: %w", err)
	}

	var raised []*Log
	for _, r := range rules {
		rule := scanConfig(r)
		fires, message := ruleFires(rule, state)
		if !fires {
			continue
		}

		recent, err := s.withinCooldown(ctx, state.BinID, rule.AlertType)
		if err != nil {
			return raised, err
		}
		if recent {
			continue
		}

		a, err := s.raise(ctx, state, rule, message)
		if err != nil {
			return raised, err
		}
		raised = append(raised, a)
	}
	return raised, nil
}

// ruleFires tests one rule's predicate against the state.
func ruleFires(rule *Config, state *inventory.BinDisplayState) (bool, string) {
	q := state.CurrentQuantity
	switch rule.AlertType {
	case TypeLowStock:
		if q > 0 && q <= rule.ThresholdValue {
			return true, fmt.Sprintf("Low stock alert: %s in %s is at %d units (threshold: %d)",
				state.ArticleName, state.BinID, q, rule.ThresholdValue)
		}
	case TypeCriticalStock:
		if q > 0 && q <= rule.ThresholdValue {
			return true, fmt.Sprintf("CRITICAL: %s in %s is critically low at %d units",
				state.ArticleName, state.BinID, q)
		}
	case TypeEmpty:
		if q <= 0 {
			return true, fmt.Sprintf("EMPTY: %s in %s is empty!",
				state.ArticleName, state.BinID)
		}
	case TypeOverfill:
		if q > state.MaxCapacity {
			return true, fmt.Sprintf("Overfill warning: %s in %s exceeds capacity (%d/%d)",
				state.ArticleName, state.BinID, q, state.MaxCapacity)
		}
	}
	return false, ""
}

func (s *Service) raise(ctx context.Context, state *inventory.BinDisplayState, rule *Config, message string) (*Log, error) {
	id, err := s.db.Execute(ctx, `
		INSERT INTO alert_logs (bin_id, alert_type, message, quantity_at_alert, threshold_value)
		VALUES (?, ?, ?, ?, ?)`,
		state.BinID, rule.AlertType, message, state.CurrentQuantity, rule.ThresholdValue)
	if err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	a := &Log{
		ID:              id,
		BinID:           state.BinID,
		AlertType:       rule.AlertType,
		Message:         message,
		QuantityAtAlert: state.CurrentQuantity,
		ThresholdValue:  rule.ThresholdValue,
		CreatedAt:       time.Now().UTC(),
	}
	log.Printf("alert: raised %s for %s (qty=%d threshold=%d)",
		rule.AlertType, state.BinID, state.CurrentQuantity, rule.ThresholdValue)
	if s.bus != nil {
		s.bus.Emit(events.Event{Type: events.EventAlertRaised, Payload: a})
	}
	return a, nil
}

// withinCooldown reports whether the same alert fired for this bin
// inside the cooldown window. The cutoff uses the datetime('now')
// layout that alert_logs.created_at is written with.
func (s *Service) withinCooldown(ctx context.Context, binID, alertType string) (bool, error) {
	cutoff := time.Now().UTC().Add(-s.cooldown).Format("2006-01-02 15:04:05")
	row, err := s.db.FetchOne(ctx, `
		SELECT COUNT(*) AS count FROM alert_logs
		WHERE bin_id = ? AND alert_type = ? AND created_at > ?`,
		binID, alertType, cutoff)
	if err != nil {
		return false, err
	}
	return row != nil && row.Int("count") > 0, nil
}

// Acknowledge marks one alert acknowledged. Already-acknowledged alerts
// succeed without change.
func (s *Service) Acknowledge(ctx context.Context, alertID int64, acknowledgedBy string) error {
	row, err := s.db.FetchOne(ctx,
		`SELECT id FROM alert_logs WHERE id = ?`, alertID)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrNotFound
	}
	_, err = s.db.Execute(ctx, `
		UPDATE alert_logs
		SET is_acknowledged = 1, acknowledged_at = datetime('now'), acknowledged_by = ?
		WHERE id = ? AND is_acknowledged = 0`,
		acknowledgedBy, alertID)
	return err
}

// AcknowledgeAll acknowledges every active alert and returns how many
// were affected.
func (s *Service) AcknowledgeAll(ctx context.Context, acknowledgedBy string) (int, error) {
	row, err := s.db.FetchOne(ctx,
		`SELECT COUNT(*) AS count FROM alert_logs WHERE is_acknowledged = 0`)
	if err != nil {
		return 0, err
	}
	count := 0
	if row != nil {
		count = row.Int("count")
	}
	if count == 0 {
		return 0, nil
	}
	_, err = s.db.Execute(ctx, `
		UPDATE alert_logs
		SET is_acknowledged = 1, acknowledged_at = datetime('now'), acknowledged_by = ?
		WHERE is_acknowledged = 0`,
		acknowledgedBy)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ActiveAlerts returns unacknowledged alerts, newest first.
func (s *Service) ActiveAlerts(ctx context.Context) ([]*Log, error) {
	rows, err := s.db.FetchAll(ctx, `
		SELECT * FROM alert_logs
		WHERE is_acknowledged = 0
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return scanLogs(rows), nil
}

// History returns one page of alert history, newest first, optionally
// filtered by bin. Page is clamped to >= 1 and limit to 1..100.
func (s *Service) History(ctx context.Context, page, limit int, binID string) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	} else if limit > 100 {
		limit = 100
	}

	where := ""
	var args []any
	if binID != "" {
		where = " WHERE bin_id = ?"
		args = append(args, binID)
	}

	row, err := s.db.FetchOne(ctx,
		`SELECT COUNT(*) AS count FROM alert_logs`+where, args...)
	if err != nil {
		return nil, err
	}
	total := 0
	if row != nil {
		total = row.Int("count")
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := s.db.FetchAll(ctx,
		`SELECT * FROM alert_logs`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Alerts: scanLogs(rows),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}, nil
}

// ExportLogs returns alerts for export, newest first, optionally
// bounded by creation date and with acknowledged alerts filtered out.
func (s *Service) ExportLogs(ctx context.Context, start, end *time.Time, includeAcknowledged bool) ([]*Log, error) {
	var where []string
	var args []any
	if start != nil {
		where = append(where, "created_at >= ?")
		args = append(args, start.UTC().Format("2006-01-02 15:04:05"))
	}
	if end != nil {
		where = append(where, "created_at <= ?")
		args = append(args, end.UTC().Format("2006-01-02 15:04:05"))
	}
	if !includeAcknowledged {
		where = append(where, "is_acknowledged = 0")
	}

	query := `SELECT * FROM alert_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanLogs(rows), nil
}

// Configurations lists every alert rule, ordered by bin then type.
func (s *Service) Configurations(ctx context.Context) ([]*Config, error) {
	rows, err := s.db.FetchAll(ctx,
		`SELECT * FROM alert_configurations ORDER BY bin_id, alert_type`)
	if err != nil {
		return nil, err
	}
	configs := make([]*Config, 0, len(rows))
	for _, r := range rows {
		configs = append(configs, scanConfig(r))
	}
	return configs, nil
}

// UpdateConfiguration applies a partial update to the rule identified
// by bin and alert type.
func (s *Service) UpdateConfiguration(ctx context.Context, binID, alertType string, upd *ConfigUpdate) error {
	var sets []string
	var args []any
	if upd.ThresholdValue != nil {
		sets = append(sets, "threshold_value = ?")
		args = append(args, *upd.ThresholdValue)
	}
	if upd.IsEnabled != nil {
		sets = append(sets, "is_enabled = ?")
		args = append(args, boolToInt(*upd.IsEnabled))
	}
	if len(sets) == 0 {
		return ErrNoFields
	}

	row, err := s.db.FetchOne(ctx,
		`SELECT id FROM alert_configurations WHERE bin_id = ? AND alert_type = ?`,
		binID, alertType)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrNotFound
	}

	args = append(args, binID, alertType)
	_, err = s.db.Execute(ctx, fmt.Sprintf(
		`UPDATE alert_configurations SET %s, updated_at = datetime('now') WHERE bin_id = ? AND alert_type = ?`,
		strings.Join(sets, ", ")), args...)
	return err
}

func scanLogs(rows []store.Row) []*Log {
	logs := make([]*Log, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, &Log{
			ID:              r.Int64("id"),
			BinID:           r.String("bin_id"),
			AlertType:       r.String("alert_type"),
			Message:         r.String("message"),
			QuantityAtAlert: r.Int("quantity_at_alert"),
			ThresholdValue:  r.Int("threshold_value"),
			IsAcknowledged:  r.Bool("is_acknowledged"),
			AcknowledgedAt:  r.TimePtr("acknowledged_at"),
			AcknowledgedBy:  r.String("acknowledged_by"),
			CreatedAt:       r.Time("created_at"),
		})
	}
	return logs
}

func scanConfig(r store.Row) *Config {
	return &Config{
		ID:             r.Int64("id"),
		BinID:          r.String("bin_id"),
		AlertType:      r.String("alert_type"),
		ThresholdValue: r.Int("threshold_value"),
		IsEnabled:      r.Bool("is_enabled"),
		CreatedAt:      r.Time("created_at"),
		UpdatedAt:      r.Time("updated_at"),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
