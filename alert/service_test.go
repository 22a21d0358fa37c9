package alert

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"binwatch/config"
	"binwatch/events"
	"binwatch/inventory"
	"binwatch/store"
)

func testService(t *testing.T, bus *events.Bus) *Service {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.RunMigrations(context.Background(), db, config.Defaults()); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return NewService(db, bus, 30*time.Minute)
}

func seedRules(t *testing.T, s *Service, binID string, low, crit int) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.db.Execute(ctx, `
		INSERT INTO bin_configurations (bin_id, row, position, article_weight_grams)
		VALUES (?, 1, 1, 2.5)`, binID); err != nil {
		t.Fatalf("seed bin: %v", err)
	}
	err := s.db.ExecuteMany(ctx, `
		INSERT INTO alert_configurations (bin_id, alert_type, threshold_value, is_enabled)
		VALUES (?, ?, ?, 1)`,
		[][]any{
			{binID, TypeLowStock, low},
			{binID, TypeCriticalStock, crit},
		})
	if err != nil {
		t.Fatalf("seed rules: %v", err)
	}
}

func seedRule(t *testing.T, s *Service, binID, alertType string, threshold int) {
	t.Helper()
	if _, err := s.db.Execute(context.Background(), `
		INSERT INTO alert_configurations (bin_id, alert_type, threshold_value, is_enabled)
		VALUES (?, ?, ?, 1)`, binID, alertType, threshold); err != nil {
		t.Fatalf("seed %s rule: %v", alertType, err)
	}
}

func state(binID string, qty, maxCap int) *inventory.BinDisplayState {
	return &inventory.BinDisplayState{
		BinID:           binID,
		ArticleName:     "M4 Screws",
		CurrentQuantity: qty,
		MaxCapacity:     maxCap,
	}
}

func alertTypes(alerts []*Log) []string {
	types := make([]string, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.AlertType)
	}
	return types
}

func sameTypes(got []*Log, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := map[string]bool{}
	for _, a := range got {
		seen[a.AlertType] = true
	}
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}

func TestEvaluateRules(t *testing.T) {
	cases := []struct {
		name  string
		qty   int
		extra string // additional rule type to seed, if any
		want  []string
	}{
		{"normal", 50, "", nil},
		{"low at threshold", 10, "", []string{TypeLowStock}},
		{"low and critical at critical threshold", 5, "", []string{TypeLowStock, TypeCriticalStock}},
		{"low and critical below both", 3, "", []string{TypeLowStock, TypeCriticalStock}},
		{"empty without a rule", 0, "", nil},
		{"empty with a rule", 0, TypeEmpty, []string{TypeEmpty}},
		{"overfill without a rule", 120, "", nil},
		{"overfill with a rule", 120, TypeOverfill, []string{TypeOverfill}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testService(t, nil)
			seedRules(t, s, "BIN-E1", 10, 5)
			if tc.extra != "" {
				seedRule(t, s, "BIN-E1", tc.extra, 0)
			}

			alerts, err := s.Evaluate(context.Background(), state("BIN-E1", tc.qty, 100))
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if !sameTypes(alerts, tc.want) {
				t.Errorf("raised %v, want %v", alertTypes(alerts), tc.want)
			}
			for _, a := range alerts {
				if a.QuantityAtAlert != tc.qty {
					t.Errorf("%s quantity = %d, want %d", a.AlertType, a.QuantityAtAlert, tc.qty)
				}
			}
		})
	}
}

func TestEvaluatePersistsEachFiringRule(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-M1", 10, 5)
	ctx := context.Background()

	alerts, err := s.Evaluate(ctx, state("BIN-M1", 3, 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !sameTypes(alerts, []string{TypeLowStock, TypeCriticalStock}) {
		t.Fatalf("raised %v, want low_stock and critical_stock", alertTypes(alerts))
	}

	row, err := s.db.FetchOne(ctx,
		`SELECT COUNT(*) AS count FROM alert_logs WHERE bin_id = ?`, "BIN-M1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if row.Int("count") != 2 {
		t.Errorf("alert_logs rows = %d, want 2", row.Int("count"))
	}
}

func TestEvaluateDisabledRule(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-D1", 10, 5)
	ctx := context.Background()

	if _, err := s.db.Execute(ctx,
		`UPDATE alert_configurations SET is_enabled = 0 WHERE bin_id = ? AND alert_type = ?`,
		"BIN-D1", TypeLowStock); err != nil {
		t.Fatalf("disable rule: %v", err)
	}

	alerts, err := s.Evaluate(ctx, state("BIN-D1", 8, 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("disabled rule still raised %v", alertTypes(alerts))
	}

	// Every type is rule-gated, empty included.
	alerts, _ = s.Evaluate(ctx, state("BIN-D1", 0, 100))
	if len(alerts) != 0 {
		t.Errorf("empty without a rule raised %v", alertTypes(alerts))
	}
}

func TestEvaluateRuleFetchErrorPropagates(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-F1", 10, 5)

	// A dead store must surface as an error, not as "no rules".
	s.db.Close()
	if _, err := s.Evaluate(context.Background(), state("BIN-F1", 3, 100)); err == nil {
		t.Error("evaluate on closed store returned nil error")
	}
}

func TestEvaluateCooldown(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-C1", 10, 5)
	seedRule(t, s, "BIN-C1", TypeEmpty, 0)
	ctx := context.Background()

	first, err := s.Evaluate(ctx, state("BIN-C1", 8, 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(first) != 1 || first[0].AlertType != TypeLowStock {
		t.Fatalf("first evaluation raised %v, want low_stock", alertTypes(first))
	}

	// Same condition inside the window is suppressed.
	second, err := s.Evaluate(ctx, state("BIN-C1", 7, 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("repeat inside cooldown raised %v", alertTypes(second))
	}

	// A different type for the same bin keeps its own window.
	other, _ := s.Evaluate(ctx, state("BIN-C1", 0, 100))
	if !sameTypes(other, []string{TypeEmpty}) {
		t.Errorf("different type should bypass cooldown, got %v", alertTypes(other))
	}

	// Age the first alert past the window; the condition fires again.
	if _, err := s.db.Execute(ctx,
		`UPDATE alert_logs SET created_at = datetime('now', '-61 minutes') WHERE id = ?`,
		first[0].ID); err != nil {
		t.Fatalf("age alert: %v", err)
	}
	third, _ := s.Evaluate(ctx, state("BIN-C1", 7, 100))
	if !sameTypes(third, []string{TypeLowStock}) {
		t.Errorf("expired cooldown should allow a repeat, got %v", alertTypes(third))
	}
}

func TestEvaluateEmitsEventPerAlert(t *testing.T) {
	bus := events.NewBus()
	s := testService(t, bus)
	seedRules(t, s, "BIN-B1", 10, 5)

	var got []*Log
	bus.SubscribeTypes(func(evt events.Event) {
		if a, ok := evt.Payload.(*Log); ok {
			got = append(got, a)
		}
	}, events.EventAlertRaised)

	alerts, err := s.Evaluate(context.Background(), state("BIN-B1", 2, 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("raised %v, want two alerts", alertTypes(alerts))
	}
	if !sameTypes(got, []string{TypeLowStock, TypeCriticalStock}) {
		t.Errorf("events = %v, want one per alert", alertTypes(got))
	}
}

func TestAcknowledge(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-A1", 10, 5)
	ctx := context.Background()

	alerts, _ := s.Evaluate(ctx, state("BIN-A1", 8, 100))
	if len(alerts) != 1 {
		t.Fatalf("setup: raised %v", alertTypes(alerts))
	}
	a := alerts[0]

	if err := s.Acknowledge(ctx, a.ID, "operator"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	active, _ := s.ActiveAlerts(ctx)
	if len(active) != 0 {
		t.Errorf("active after ack = %d, want 0", len(active))
	}

	// Acknowledging again is a quiet no-op.
	if err := s.Acknowledge(ctx, a.ID, "operator"); err != nil {
		t.Errorf("re-acknowledge: %v", err)
	}

	// The original actor survives the no-op.
	page, _ := s.History(ctx, 1, 10, "")
	if len(page.Alerts) != 1 || page.Alerts[0].AcknowledgedBy != "operator" {
		t.Errorf("history = %+v", page.Alerts)
	}

	if err := s.Acknowledge(ctx, 99999, "operator"); err != ErrNotFound {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestAcknowledgeAll(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-AA1", 10, 5)
	seedRules(t, s, "BIN-AA2", 10, 5)
	ctx := context.Background()

	s.Evaluate(ctx, state("BIN-AA1", 8, 100))
	s.Evaluate(ctx, state("BIN-AA2", 3, 100))

	count, err := s.AcknowledgeAll(ctx, "supervisor")
	if err != nil {
		t.Fatalf("acknowledge all: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	count, _ = s.AcknowledgeAll(ctx, "supervisor")
	if count != 0 {
		t.Errorf("second pass count = %d, want 0", count)
	}
}

func TestHistoryPagination(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-P1", 10, 5)
	ctx := context.Background()

	// Raise five alerts by aging each one out of the cooldown window.
	for i := 0; i < 5; i++ {
		alerts, err := s.Evaluate(ctx, state("BIN-P1", 8, 100))
		if err != nil || len(alerts) != 1 {
			t.Fatalf("raise %d: %v %v", i, alertTypes(alerts), err)
		}
		// Spread creation times so ordering is deterministic and the
		// next evaluation escapes the cooldown.
		s.db.Execute(ctx,
			`UPDATE alert_logs SET created_at = datetime('now', ?) WHERE id = ?`,
			fmt.Sprintf("-%d hours", i+1), alerts[0].ID)
	}

	page, err := s.History(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if page.Total != 5 || len(page.Alerts) != 2 {
		t.Errorf("page 1 = total %d len %d, want 5/2", page.Total, len(page.Alerts))
	}

	page3, _ := s.History(ctx, 3, 2, "")
	if len(page3.Alerts) != 1 {
		t.Errorf("page 3 len = %d, want 1", len(page3.Alerts))
	}

	// Out-of-range inputs are clamped rather than rejected.
	clamped, _ := s.History(ctx, 0, 500, "")
	if clamped.Page != 1 || clamped.Limit != 100 {
		t.Errorf("clamped page/limit = %d/%d, want 1/100", clamped.Page, clamped.Limit)
	}

	filtered, _ := s.History(ctx, 1, 10, "NO-SUCH-BIN")
	if filtered.Total != 0 {
		t.Errorf("filtered total = %d, want 0", filtered.Total)
	}
}

func TestExportLogsFilters(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-X1", 10, 5)
	ctx := context.Background()

	alerts, err := s.Evaluate(ctx, state("BIN-X1", 3, 100))
	if err != nil || len(alerts) != 2 {
		t.Fatalf("setup: %v %v", alertTypes(alerts), err)
	}
	// Push one alert out of the date window and acknowledge it.
	if _, err := s.db.Execute(ctx,
		`UPDATE alert_logs SET created_at = datetime('now', '-10 days') WHERE id = ?`,
		alerts[0].ID); err != nil {
		t.Fatalf("age alert: %v", err)
	}
	if err := s.Acknowledge(ctx, alerts[1].ID, "operator"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	all, err := s.ExportLogs(ctx, nil, nil, true)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered len = %d, want 2", len(all))
	}

	start := time.Now().UTC().Add(-24 * time.Hour)
	recent, _ := s.ExportLogs(ctx, &start, nil, true)
	if len(recent) != 1 || recent[0].ID != alerts[1].ID {
		t.Errorf("start-filtered = %+v, want only the recent alert", recent)
	}

	end := time.Now().UTC().Add(-24 * time.Hour)
	old, _ := s.ExportLogs(ctx, nil, &end, true)
	if len(old) != 1 || old[0].ID != alerts[0].ID {
		t.Errorf("end-filtered = %+v, want only the aged alert", old)
	}

	unacked, _ := s.ExportLogs(ctx, nil, nil, false)
	if len(unacked) != 1 || unacked[0].ID != alerts[0].ID {
		t.Errorf("unacked = %+v, want only the unacknowledged alert", unacked)
	}
}

func TestUpdateConfiguration(t *testing.T) {
	s := testService(t, nil)
	seedRules(t, s, "BIN-UC1", 10, 5)
	ctx := context.Background()

	if err := s.UpdateConfiguration(ctx, "BIN-UC1", TypeLowStock, &ConfigUpdate{}); err != ErrNoFields {
		t.Errorf("empty update err = %v, want ErrNoFields", err)
	}
	if err := s.UpdateConfiguration(ctx, "BIN-UC1", "no_such_type", &ConfigUpdate{
		ThresholdValue: intPtr(3),
	}); err != ErrNotFound {
		t.Errorf("unknown rule err = %v, want ErrNotFound", err)
	}

	enabled := false
	if err := s.UpdateConfiguration(ctx, "BIN-UC1", TypeLowStock, &ConfigUpdate{
		ThresholdValue: intPtr(15),
		IsEnabled:      &enabled,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	configs, _ := s.Configurations(ctx)
	for _, c := range configs {
		if c.BinID == "BIN-UC1" && c.AlertType == TypeLowStock {
			if c.ThresholdValue != 15 || c.IsEnabled {
				t.Errorf("rule = %+v, want threshold 15 disabled", c)
			}
		}
	}
}

func intPtr(v int) *int { return &v }
