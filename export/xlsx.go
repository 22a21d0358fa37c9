package export

import (
	"context"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"binwatch/alert"
	"binwatch/inventory"
)

func writeXLSX(w io.Writer, t *table) error {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", t.sheet)

	setRow := func(rowNum int, cells []any) error {
		for i, v := range cells {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(t.sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	header := make([]any, len(t.headers))
	for i, h := range t.headers {
		header[i] = h
	}
	if err := setRow(1, header); err != nil {
		return err
	}
	for i, row := range t.rows {
		if err := setRow(i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// CurrentInventoryXLSX renders the live inventory grid as a workbook.
func CurrentInventoryXLSX(ctx context.Context, w io.Writer, inv *inventory.Service) error {
	t, err := inventoryTable(ctx, inv)
	if err != nil {
		return err
	}
	return writeXLSX(w, t)
}

// HistoryXLSX renders the reading history for the date range as a
// workbook, all bins or one when binID is set.
func HistoryXLSX(ctx context.Context, w io.Writer, inv *inventory.Service, binID string, start, end time.Time) error {
	t, err := historyTable(ctx, inv, binID, start, end)
	if err != nil {
		return err
	}
	return writeXLSX(w, t)
}

// AlertsXLSX renders the filtered alert history as a workbook.
func AlertsXLSX(ctx context.Context, w io.Writer, alerts *alert.Service, filter AlertFilter) error {
	t, err := alertsTable(ctx, alerts, filter)
	if err != nil {
		return err
	}
	return writeXLSX(w, t)
}

// ReportXLSX renders the grid summary as a workbook.
func ReportXLSX(ctx context.Context, w io.Writer, inv *inventory.Service) error {
	t, err := reportTable(ctx, inv)
	if err != nil {
		return err
	}
	return writeXLSX(w, t)
}
