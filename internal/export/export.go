// Package export writes held prediction records to downloadable files.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/xuri/excelize/v2"
)

// Default download names.
const (
	CSVFileName  = "predictions.csv"
	XLSXFileName = "predictions.xlsx"
)

// ErrNoData is returned when there are no records to export.
var ErrNoData = errors.New("no data to export")

// Columns returns the export header: the keys of the first record, in order.
func Columns(records []backend.Record) []string {
	if len(records) == 0 {
		return nil
	}
	return append([]string(nil), records[0].Columns...)
}

// WriteCSV writes records as CSV. The header uses minimal quoting; every data
// field is quoted with embedded quotes doubled. Keys missing from a later record
// are written as empty fields.
func WriteCSV(w io.Writer, records []backend.Record) error {
	cols := Columns(records)
	if len(cols) == 0 {
		return ErrNoData
	}
	bw := bufio.NewWriter(w)
	hw := csv.NewWriter(bw)
	if err := hw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	hw.Flush()
	if err := hw.Error(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		for i, c := range cols {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quote(r.Text(c)))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteXLSX writes the same table as WriteCSV into a single-sheet workbook.
// Numbers and booleans keep their cell type; null becomes an empty cell.
func WriteXLSX(w io.Writer, records []backend.Record) error {
	cols := Columns(records)
	if len(cols) == 0 {
		return ErrNoData
	}
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Predictions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for r, rec := range records {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = cellValue(rec, c)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cellValue(r backend.Record, col string) any {
	v, ok := r.Get(col)
	if !ok || v == nil {
		return nil
	}
	switch v.(type) {
	case string, float64, int, bool:
		return v
	default:
		return backend.FormatValue(v)
	}
}
