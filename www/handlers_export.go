package www

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"binwatch/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sendExport renders one export into a buffer first so an error can
// still produce a clean JSON error response, then ships the file.
// Downloads are xlsx unless ?format=csv asks for the plain extract.
func (h *Handlers) sendExport(w http.ResponseWriter, r *http.Request, name string, render func(ctx context.Context, format string, out io.Writer) error) {
	format := r.URL.Query().Get("format")
	if format != "csv" {
		format = "xlsx"
	}

	var buf bytes.Buffer
	if err := render(r.Context(), format, &buf); err != nil {
		log.Printf("www: export %s: %v", name, err)
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", xlsxContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.%s"`,
		name, time.Now().Format("20060102_150405"), format))
	w.Write(buf.Bytes())
}

func (h *Handlers) apiExportInventory(w http.ResponseWriter, r *http.Request) {
	h.sendExport(w, r, "inventory", func(ctx context.Context, format string, out io.Writer) error {
		if format == "csv" {
			return export.CurrentInventory(ctx, out, h.engine.Inventory)
		}
		return export.CurrentInventoryXLSX(ctx, out, h.engine.Inventory)
	})
}

func (h *Handlers) apiExportHistory(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	end := queryTime(r, "end", now)
	start := queryTime(r, "start", now.AddDate(0, 0, -30))
	binID := r.URL.Query().Get("bin_id")

	h.sendExport(w, r, "history", func(ctx context.Context, format string, out io.Writer) error {
		if format == "csv" {
			return export.History(ctx, out, h.engine.Inventory, binID, start, end)
		}
		return export.HistoryXLSX(ctx, out, h.engine.Inventory, binID, start, end)
	})
}

func (h *Handlers) apiExportAlerts(w http.ResponseWriter, r *http.Request) {
	filter := export.AlertFilter{IncludeAcknowledged: true}
	q := r.URL.Query()
	if v := q.Get("start_date"); v != "" {
		t, err := parseExportDate(v)
		if err != nil {
			h.jsonError(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		filter.Start = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := parseExportDate(v)
		if err != nil {
			h.jsonError(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		filter.End = &t
	}
	if v := q.Get("include_acknowledged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.jsonError(w, "invalid include_acknowledged", http.StatusBadRequest)
			return
		}
		filter.IncludeAcknowledged = b
	}

	h.sendExport(w, r, "alerts", func(ctx context.Context, format string, out io.Writer) error {
		if format == "csv" {
			return export.Alerts(ctx, out, h.engine.Alerts, filter)
		}
		return export.AlertsXLSX(ctx, out, h.engine.Alerts, filter)
	})
}

func (h *Handlers) apiExportReport(w http.ResponseWriter, r *http.Request) {
	h.sendExport(w, r, "report", func(ctx context.Context, format string, out io.Writer) error {
		if format == "csv" {
			return export.Report(ctx, out, h.engine.Inventory)
		}
		return export.ReportXLSX(ctx, out, h.engine.Inventory)
	})
}

func parseExportDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
