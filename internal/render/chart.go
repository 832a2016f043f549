package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/KaramelBytes/riskdash/internal/eda"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an image format for chart files.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts png or svg in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case PNG, SVG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported chart format %q (use png or svg)", s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// ErrNoBars is returned for a series with nothing to draw.
var ErrNoBars = errors.New("series has no bars")

// ChartOptions sizes the rendered image.
type ChartOptions struct {
	Width  int
	Height int
	Format Format
}

func (o ChartOptions) withDefaults() ChartOptions {
	if o.Width <= 0 {
		o.Width = 480
	}
	if o.Height <= 0 {
		o.Height = 240
	}
	if o.Format == "" {
		o.Format = SVG
	}
	return o
}

var (
	numericColor     = drawing.Color{R: 0x36, G: 0x6b, B: 0xa8, A: 0xff}
	categoricalColor = drawing.Color{R: 0xe0, G: 0x7b, B: 0x39, A: 0xff}
	missingColor     = chart.ColorAlternateGray
)

// NumericChart draws the five statistics of one numeric column. Statistics the
// backend sent as null are drawn as empty bars labeled n/a.
func NumericChart(w io.Writer, s eda.NumericSeries, opts ChartOptions) error {
	bars := make([]chart.Value, 0, len(s.Bars))
	for _, b := range s.Bars {
		v := chart.Value{Label: b.Label, Value: b.Value, Style: chart.Style{FillColor: numericColor, StrokeColor: numericColor}}
		if !b.Present {
			v.Label = b.Label + " (n/a)"
			v.Value = 0
			v.Style = chart.Style{FillColor: missingColor, StrokeColor: missingColor}
		}
		bars = append(bars, v)
	}
	return BarChart(w, s.Column, bars, opts)
}

// CategoricalChart draws the top categories of one column in the order given.
func CategoricalChart(w io.Writer, s eda.CategoricalSeries, opts ChartOptions) error {
	bars := make([]chart.Value, 0, len(s.Bars))
	for _, b := range s.Bars {
		bars = append(bars, chart.Value{
			Label: b.Category,
			Value: b.Value,
			Style: chart.Style{FillColor: categoricalColor, StrokeColor: categoricalColor},
		})
	}
	return BarChart(w, s.Column, bars, opts)
}

// BarChart renders bars with go-chart in the requested format.
func BarChart(w io.Writer, title string, bars []chart.Value, opts ChartOptions) error {
	if len(bars) == 0 {
		return fmt.Errorf("%s: %w", title, ErrNoBars)
	}
	opts = opts.withDefaults()

	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	if hi == lo {
		hi = lo + 1
	}
	spacing := 10
	bw := (opts.Width-80)/len(bars) - spacing
	if bw < 4 {
		bw = 4
	}

	bc := chart.BarChart{
		Title:      title,
		TitleStyle: chart.Style{FontSize: 10},
		Width:      opts.Width,
		Height:     opts.Height,
		BarWidth:   bw,
		BarSpacing: spacing,
		Background: chart.Style{Padding: chart.Box{Top: 32, Left: 8, Right: 8, Bottom: 8}},
		XAxis:      chart.Style{FontSize: 7},
		YAxis: chart.YAxis{
			Style: chart.Style{FontSize: 7},
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
	if lo < 0 {
		bc.UseBaseValue = true
		bc.BaseValue = 0
	}

	provider := chart.SVG
	if opts.Format == PNG {
		provider = chart.PNG
	}
	if err := bc.Render(provider, w); err != nil {
		return fmt.Errorf("render %s chart %q: %w", opts.Format, title, err)
	}
	return nil
}
