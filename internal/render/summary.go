package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/eda"
)

const barWidth = 30

// Summary writes chart series as horizontal text bars, each series scaled to its
// own largest absolute value.
func Summary(w io.Writer, c eda.Charts) error {
	var b strings.Builder
	if c.Empty() {
		b.WriteString("No summary available.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	if len(c.Numeric) > 0 {
		b.WriteString("[NUMERIC SUMMARY]\n")
		for _, s := range c.Numeric {
			fmt.Fprintf(&b, "%s\n", s.Column)
			scale := 0.0
			for _, bar := range s.Bars {
				if bar.Present {
					scale = math.Max(scale, math.Abs(bar.Value))
				}
			}
			for _, bar := range s.Bars {
				if !bar.Present {
					fmt.Fprintf(&b, "  %-4s %s n/a\n", bar.Label, strings.Repeat(" ", barWidth))
					continue
				}
				fmt.Fprintf(&b, "  %-4s %s %s\n", bar.Label, textBar(bar.Value, scale), backend.FormatValue(bar.Value))
			}
		}
	}
	if len(c.Categorical) > 0 {
		if len(c.Numeric) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[TOP CATEGORIES]\n")
		for _, s := range c.Categorical {
			fmt.Fprintf(&b, "%s\n", s.Column)
			if len(s.Bars) == 0 {
				b.WriteString("  (none)\n")
				continue
			}
			width := 0
			scale := 0.0
			for _, bar := range s.Bars {
				width = max(width, len([]rune(bar.Category)))
				scale = math.Max(scale, math.Abs(bar.Value))
			}
			width = min(width, maxCellWidth)
			for _, bar := range s.Bars {
				fmt.Fprintf(&b, "  %-*s %s %s\n", width, cell(bar.Category), textBar(bar.Value, scale), backend.FormatValue(bar.Value))
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func textBar(v, scale float64) string {
	n := 0
	if scale > 0 {
		n = int(math.Round(math.Abs(v) / scale * barWidth))
	}
	return strings.Repeat("█", n) + strings.Repeat(" ", barWidth-n)
}
