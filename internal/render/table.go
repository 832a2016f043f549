// Package render draws the dashboard view for terminals and image files.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/riskdash/internal/dashboard"
)

const maxCellWidth = 32

// Table writes the current page as an aligned text table with its page header
// and the availability of the Previous and Next controls.
func Table(w io.Writer, v dashboard.View) error {
	if !v.Loaded {
		_, err := fmt.Fprintln(w, "No predictions loaded. Upload a CSV file to begin.")
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Predictions (Page %d of %d)", v.Page+1, v.PageCount())
	if v.Source != "" {
		fmt.Fprintf(&b, " · %s", v.Source)
	}
	fmt.Fprintf(&b, " · %d rows\n\n", v.TotalRows)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	cols := v.Columns()
	if len(cols) == 0 {
		if _, err := fmt.Fprintln(w, "(no rows on this page)"); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
		for _, r := range v.Rows {
			cells := make([]string, len(cols))
			for i, c := range cols {
				cells[i] = cell(r.Text(c))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%s  %s\n", control("◀ Previous", v.HasPrev()), control("Next ▶", v.HasNext()))
	return err
}

func control(label string, enabled bool) string {
	if enabled {
		return "[" + label + "]"
	}
	return "(" + label + ": disabled)"
}

func cell(s string) string {
	s = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
	if r := []rune(s); len(r) > maxCellWidth {
		return string(r[:maxCellWidth-1]) + "…"
	}
	return s
}
