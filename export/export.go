// Package export renders spreadsheet extracts of the inventory state.
// Each export is built as a table once and rendered either as an xlsx
// workbook (the download default) or as CSV, writing to any io.Writer
// so handlers can stream straight to the response.
package export

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"binwatch/alert"
	"binwatch/inventory"
)

// AlertFilter narrows the alert export: optional creation-date bounds
// and whether acknowledged alerts are included.
type AlertFilter struct {
	Start               *time.Time
	End                 *time.Time
	IncludeAcknowledged bool
}

// table is one sheet's worth of export data. Cells keep their Go types
// so the xlsx renderer can emit real numbers; the CSV renderer
// stringifies them.
type table struct {
	sheet   string
	headers []string
	rows    [][]any
}

func cellString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return fmt.Sprintf("%.1f", c)
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprint(c)
	}
}

func inventoryTable(ctx context.Context, inv *inventory.Service) (*table, error) {
	states, err := inv.CurrentInventory(ctx)
	if err != nil {
		return nil, err
	}
	t := &table{
		sheet: "Inventory",
		headers: []string{
			"bin_id", "row", "position", "article_type", "article_name",
			"quantity", "max_capacity", "fill_percentage", "status",
			"weight_grams", "last_updated",
		},
	}
	for _, st := range states {
		t.rows = append(t.rows, []any{
			st.BinID, st.Row, st.Position, st.ArticleType, st.ArticleName,
			st.CurrentQuantity, st.MaxCapacity, st.FillPercentage,
			string(st.Status), st.WeightGrams,
			st.LastUpdated.UTC().Format(time.RFC3339),
		})
	}
	return t, nil
}

func historyTable(ctx context.Context, inv *inventory.Service, binID string, start, end time.Time) (*table, error) {
	t := &table{
		sheet:   "History",
		headers: []string{"bin_id", "timestamp", "quantity", "weight_grams"},
	}
	appendBin := func(id string) error {
		points, err := inv.HistoricalData(ctx, id, start, end, 10000)
		if err != nil {
			return err
		}
		for _, p := range points {
			t.rows = append(t.rows, []any{
				id, p.Timestamp.UTC().Format(time.RFC3339), p.Quantity, p.WeightGrams,
			})
		}
		return nil
	}

	if binID != "" {
		if err := appendBin(binID); err != nil {
			return nil, err
		}
		return t, nil
	}
	configs, err := inv.ListBinConfigurations(ctx)
	if err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		if err := appendBin(cfg.BinID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func alertsTable(ctx context.Context, alerts *alert.Service, filter AlertFilter) (*table, error) {
	logs, err := alerts.ExportLogs(ctx, filter.Start, filter.End, filter.IncludeAcknowledged)
	if err != nil {
		return nil, err
	}
	t := &table{
		sheet: "Alerts",
		headers: []string{
			"id", "bin_id", "alert_type", "message", "quantity_at_alert",
			"threshold_value", "acknowledged", "acknowledged_by", "created_at",
		},
	}
	for _, a := range logs {
		t.rows = append(t.rows, []any{
			a.ID, a.BinID, a.AlertType, a.Message, a.QuantityAtAlert,
			a.ThresholdValue, a.IsAcknowledged, a.AcknowledgedBy,
			a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return t, nil
}

func reportTable(ctx context.Context, inv *inventory.Service) (*table, error) {
	summary, err := inv.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &table{
		sheet:   "Report",
		headers: []string{"metric", "value"},
		rows: [][]any{
			{"generated_at", time.Now().UTC().Format(time.RFC3339)},
			{"total_bins", summary.TotalBins},
			{"total_items", summary.TotalItems},
			{"normal", summary.NormalCount},
			{"low", summary.LowCount},
			{"critical", summary.CriticalCount},
			{"empty", summary.EmptyCount},
			{"overfill", summary.OverfillCount},
			{"active_alerts", summary.AlertsActive},
		},
	}, nil
}
