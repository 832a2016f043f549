package render_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/eda"
	"github.com/KaramelBytes/riskdash/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(p, total int) dashboard.View {
	return dashboard.View{
		Rows: []backend.Record{
			backend.NewRecord("RecordID", "R011", "ClaimProbability", 0.125, "PremiumPrediction", nil),
			backend.NewRecord("RecordID", "R012", "ClaimProbability", 0.5),
		},
		Page:      p,
		TotalRows: total,
		Loaded:    true,
		Source:    "policies.csv",
	}
}

func TestTableHeaderAndControls(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Table(&buf, page(1, 25)))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Predictions (Page 2 of 3)"), out)
	assert.Contains(t, out, "RecordID  ClaimProbability  PremiumPrediction")
	assert.Contains(t, out, "R011      0.125")
	assert.Contains(t, out, "[◀ Previous]  [Next ▶]")

	buf.Reset()
	require.NoError(t, render.Table(&buf, page(2, 25)))
	assert.Contains(t, buf.String(), "[◀ Previous]  (Next ▶: disabled)")

	buf.Reset()
	require.NoError(t, render.Table(&buf, page(0, 10)))
	assert.Contains(t, buf.String(), "(◀ Previous: disabled)  (Next ▶: disabled)")
}

func TestTableNotLoaded(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Table(&buf, dashboard.View{}))
	assert.Contains(t, buf.String(), "Upload a CSV file")
}

func charts(t *testing.T) eda.Charts {
	t.Helper()
	var s backend.Summary
	require.NoError(t, s.UnmarshalJSON([]byte(`{
		"numeric_summary":{"TotalPremium":{"min":-2,"25%":0,"50%":5,"75%":null,"max":10}},
		"top_categories":{"Province":{"Western Cape":4,"Gauteng":3},"Gender":{}}}`)))
	return eda.Project(s)
}

func TestSummaryText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Summary(&buf, charts(t)))
	out := buf.String()
	assert.Contains(t, out, "[NUMERIC SUMMARY]\nTotalPremium\n")
	assert.Contains(t, out, "  Max  "+strings.Repeat("█", 30)+" 10\n")
	assert.Contains(t, out, "  75%  "+strings.Repeat(" ", 30)+" n/a\n")
	assert.Contains(t, out, "[TOP CATEGORIES]\nProvince\n")
	assert.Less(t, strings.Index(out, "Western Cape"), strings.Index(out, "Gauteng"))
	assert.Contains(t, out, "Gender\n  (none)\n")

	buf.Reset()
	require.NoError(t, render.Summary(&buf, eda.Charts{}))
	assert.Equal(t, "No summary available.\n", buf.String())
}

func TestChartsRender(t *testing.T) {
	c := charts(t)

	var png bytes.Buffer
	require.NoError(t, render.NumericChart(&png, c.Numeric[0], render.ChartOptions{Format: render.PNG}))
	assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))

	var svg bytes.Buffer
	require.NoError(t, render.CategoricalChart(&svg, c.Categorical[0], render.ChartOptions{Width: 320, Height: 200, Format: render.SVG}))
	assert.Contains(t, svg.String(), "<svg")
	assert.Contains(t, svg.String(), "Western Cape")

	err := render.CategoricalChart(&svg, c.Categorical[1], render.ChartOptions{})
	assert.ErrorIs(t, err, render.ErrNoBars)
}

func TestParseFormat(t *testing.T) {
	f, err := render.ParseFormat(" SVG ")
	require.NoError(t, err)
	assert.Equal(t, render.SVG, f)
	assert.Equal(t, "image/svg+xml", f.ContentType())
	_, err = render.ParseFormat("gif")
	assert.Error(t, err)
}
