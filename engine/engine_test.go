package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"binwatch/alert"
	"binwatch/config"
	"binwatch/events"
	"binwatch/inventory"
	"binwatch/store"
)

func testEngine(t *testing.T) (*Engine, *events.Bus) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Defaults()
	if err := store.RunMigrations(context.Background(), db, cfg); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	bus := events.NewBus()
	eng := New(cfg, db, bus, nil, nil)
	eng.wireEventHandlers()
	return eng, bus
}

func seedBin(t *testing.T, e *Engine, binID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.db.Execute(ctx, `
		INSERT INTO bin_configurations
			(bin_id, row, position, article_name, article_weight_grams,
			 min_threshold, critical_threshold, max_capacity)
		VALUES (?, 1, 1, 'M4 Screws', 2.5, 10, 5, 100)`, binID); err != nil {
		t.Fatalf("seed bin: %v", err)
	}
	err := e.db.ExecuteMany(ctx, `
		INSERT INTO alert_configurations (bin_id, alert_type, threshold_value, is_enabled)
		VALUES (?, ?, ?, 1)`,
		[][]any{
			{binID, alert.TypeLowStock, 10},
			{binID, alert.TypeCriticalStock, 5},
		})
	if err != nil {
		t.Fatalf("seed rules: %v", err)
	}
}

func TestProcessReadingUnknownBin(t *testing.T) {
	eng, _ := testEngine(t)

	_, err := eng.ProcessReading(context.Background(), "NOPE", 10, 4, time.Now())
	if !errors.Is(err, inventory.ErrBinNotFound) {
		t.Errorf("err = %v, want ErrBinNotFound", err)
	}
}

func TestProcessReadingFullFlow(t *testing.T) {
	eng, bus := testEngine(t)
	seedBin(t, eng, "BIN-R1P1")
	ctx := context.Background()

	var updates []*inventory.BinDisplayState
	bus.SubscribeTypes(func(evt events.Event) {
		if st, ok := evt.Payload.(*inventory.BinDisplayState); ok {
			updates = append(updates, st)
		}
	}, events.EventBinUpdated)

	state, err := eng.ProcessReading(ctx, "BIN-R1P1", 10.0, 4, time.Now())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if state.Status != inventory.StatusCritical {
		t.Errorf("status = %s, want critical", state.Status)
	}
	if len(updates) != 1 || updates[0].BinID != "BIN-R1P1" {
		t.Errorf("bin updates = %+v", updates)
	}

	// Quantity 4 is under both thresholds, so both rules fire and both
	// alerts are queued for the feed.
	active, err := eng.Alerts.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("active alerts: %v", err)
	}
	types := map[string]bool{}
	for _, a := range active {
		types[a.AlertType] = true
	}
	if len(active) != 2 || !types[alert.TypeLowStock] || !types[alert.TypeCriticalStock] {
		t.Fatalf("active = %+v, want low_stock and critical_stock", active)
	}
	pending, err := store.ListPendingAlerts(ctx, eng.db, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("outbox = %d messages, want 2", len(pending))
	}
	for _, p := range pending {
		if p.Topic != eng.cfg.Messaging.AlertsTopic {
			t.Errorf("topic = %q, want %q", p.Topic, eng.cfg.Messaging.AlertsTopic)
		}
	}
}

func TestProcessReadingNormalRaisesNothing(t *testing.T) {
	eng, _ := testEngine(t)
	seedBin(t, eng, "BIN-R1P2")
	ctx := context.Background()

	state, err := eng.ProcessReading(ctx, "BIN-R1P2", 125.0, 50, time.Now())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if state.Status != inventory.StatusNormal {
		t.Errorf("status = %s, want normal", state.Status)
	}
	active, _ := eng.Alerts.ActiveAlerts(ctx)
	if len(active) != 0 {
		t.Errorf("active = %d, want 0", len(active))
	}
}

func TestHandleReadingMessage(t *testing.T) {
	eng, _ := testEngine(t)
	seedBin(t, eng, "BIN-MQ1")

	eng.handleReadingMessage("BIN-MQ1", []byte(`{"weight_grams":55.0,"quantity":22}`))

	state, err := eng.Inventory.GetBinDisplayState(context.Background(), "BIN-MQ1")
	if err != nil {
		t.Fatalf("display state: %v", err)
	}
	if state.CurrentQuantity != 22 {
		t.Errorf("quantity = %d, want 22", state.CurrentQuantity)
	}

	// Malformed payloads are logged and dropped, never fatal.
	eng.handleReadingMessage("BIN-MQ1", []byte(`{not json`))
	state, _ = eng.Inventory.GetBinDisplayState(context.Background(), "BIN-MQ1")
	if state.CurrentQuantity != 22 {
		t.Errorf("malformed payload changed state: %d", state.CurrentQuantity)
	}
}
