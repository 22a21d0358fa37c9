package export

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"binwatch/alert"
	"binwatch/inventory"
)

func writeCSV(w io.Writer, t *table) error {
	cw := csv.NewWriter(w)
	cw.Write(t.headers)
	for _, row := range t.rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		cw.Write(record)
	}
	cw.Flush()
	return cw.Error()
}

// CurrentInventory writes one CSV row per bin with its live display
// state.
func CurrentInventory(ctx context.Context, w io.Writer, inv *inventory.Service) error {
	t, err := inventoryTable(ctx, inv)
	if err != nil {
		return err
	}
	return writeCSV(w, t)
}

// History writes the reading history for the date range, all bins or
// one when binID is set.
func History(ctx context.Context, w io.Writer, inv *inventory.Service, binID string, start, end time.Time) error {
	t, err := historyTable(ctx, inv, binID, start, end)
	if err != nil {
		return err
	}
	return writeCSV(w, t)
}

// Alerts writes the filtered alert history, newest first.
func Alerts(ctx context.Context, w io.Writer, alerts *alert.Service, filter AlertFilter) error {
	t, err := alertsTable(ctx, alerts, filter)
	if err != nil {
		return err
	}
	return writeCSV(w, t)
}

// Report writes the grid summary as key/value rows.
func Report(ctx context.Context, w io.Writer, inv *inventory.Service) error {
	t, err := reportTable(ctx, inv)
	if err != nil {
		return err
	}
	return writeCSV(w, t)
}
