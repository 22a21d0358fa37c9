package store

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"binwatch/config"
)

// RunMigrations applies the schema and seeds default system settings.
// Schema failures are logged as warnings rather than returned: rerunning
// CREATE statements against an existing remote database is expected.
func RunMigrations(ctx context.Context, db Adapter, cfg *config.Config) error {
	if err := db.ExecScript(ctx, schema); err != nil {
		log.Printf("store: schema execution warning (may be normal for existing tables): %v", err)
	}

	defaults := [][]any{
		{"default_low_threshold", strconv.Itoa(cfg.Alerts.DefaultLowThreshold), "Default low stock threshold for new bins"},
		{"default_critical_threshold", strconv.Itoa(cfg.Alerts.DefaultCriticalThreshold), "Default critical stock threshold for new bins"},
		{"data_retention_days", strconv.Itoa(cfg.Retention.Days), "Number of days to retain historical data"},
		{"alert_cooldown_minutes", strconv.Itoa(cfg.Alerts.CooldownMinutes), "Minimum time between repeated alerts for same bin"},
	}
	if err := db.ExecuteMany(ctx,
		`INSERT OR IGNORE INTO system_settings (setting_key, setting_value, description) VALUES (?, ?, ?)`,
		defaults); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// defaultArticles are the article types assigned to the 2x5 grid at seed
// time: type, display name, and single-article weight in grams.
var defaultArticles = []struct {
	articleType string
	name        string
	weightGrams float64
}{
	{"screws", "M4 Screws", 2.5},
	{"nuts", "M4 Nuts", 1.8},
	{"washers", "M4 Washers", 0.5},
	{"bolts", "M6 Bolts", 8.2},
	{"clips", "Cable Clips", 1.2},
	{"connectors", "Wire Connectors", 3.5},
	{"terminals", "Ring Terminals", 2.1},
	{"grommets", "Rubber Grommets", 4.0},
	{"spacers", "Nylon Spacers", 0.8},
	{"rivets", "Pop Rivets", 1.5},
}

// SeedDefaultBins populates the fixed 2x5 bin grid with article types,
// starting inventory, and default alert rules. No-op when bins exist.
func SeedDefaultBins(ctx context.Context, db Adapter, cfg *config.AlertsConfig) error {
	row, err := db.FetchOne(ctx, `SELECT COUNT(*) AS count FROM bin_configurations`)
	if err != nil {
		return fmt.Errorf("count bins: %w", err)
	}
	if row != nil && row.Int("count") > 0 {
		return nil
	}

	log.Printf("store: seeding default bin configurations")
	idx := 0
	for gridRow := 1; gridRow <= 2; gridRow++ {
		for pos := 1; pos <= 5; pos++ {
			binID := fmt.Sprintf("BIN-R%dP%d", gridRow, pos)
			art := defaultArticles[idx]
			idx++

			_, err := db.Execute(ctx,
				`INSERT INTO bin_configurations
				   (bin_id, row, position, article_type, article_name, article_weight_grams,
				    min_threshold, critical_threshold, max_capacity)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				binID, gridRow, pos, art.articleType, art.name, art.weightGrams,
				cfg.DefaultLowThreshold, cfg.DefaultCriticalThreshold, 100)
			if err != nil {
				return fmt.Errorf("seed bin %s: %w", binID, err)
			}

			qty := 20 + rand.Intn(61)
			_, err = db.Execute(ctx,
				`INSERT INTO current_inventory (bin_id, weight_grams, calculated_quantity, last_updated)
				 VALUES (?, ?, ?, ?)`,
				binID, float64(qty)*art.weightGrams, qty, time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				return fmt.Errorf("seed inventory %s: %w", binID, err)
			}

			rules := [][]any{
				{binID, "low_stock", cfg.DefaultLowThreshold, 1},
				{binID, "critical_stock", cfg.DefaultCriticalThreshold, 1},
			}
			if err := db.ExecuteMany(ctx,
				`INSERT INTO alert_configurations (bin_id, alert_type, threshold_value, is_enabled)
				 VALUES (?, ?, ?, ?)`, rules); err != nil {
				return fmt.Errorf("seed alert configs %s: %w", binID, err)
			}
		}
	}
	return nil
}
