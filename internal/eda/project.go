// Package eda turns the backend's summary snapshot into chart series.
//
// The projection is pure: values are copied verbatim from the snapshot and
// categories keep the order the backend sent. Nothing is recomputed here.
package eda

import "github.com/KaramelBytes/riskdash/internal/backend"

// Fixed labels of the five bars drawn for every numeric column.
const (
	LabelMin = "Min"
	LabelP25 = "25%"
	LabelP50 = "50%"
	LabelP75 = "75%"
	LabelMax = "Max"
)

// NumericBar is one labeled point. Present is false when the backend sent null.
type NumericBar struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
}

type NumericSeries struct {
	Column string       `json:"column"`
	Bars   []NumericBar `json:"bars"`
}

type CategoryBar struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

type CategoricalSeries struct {
	Column string        `json:"column"`
	Bars   []CategoryBar `json:"bars"`
}

// Charts is everything the chart cards render.
type Charts struct {
	Numeric     []NumericSeries     `json:"numeric"`
	Categorical []CategoricalSeries `json:"categorical"`
}

// Empty reports whether there is nothing to draw.
func (c Charts) Empty() bool { return len(c.Numeric) == 0 && len(c.Categorical) == 0 }

// Project derives chart series from a summary snapshot.
func Project(s backend.Summary) Charts {
	out := Charts{
		Numeric:     make([]NumericSeries, 0, len(s.Numeric)),
		Categorical: make([]CategoricalSeries, 0, len(s.Categorical)),
	}
	for _, ns := range s.Numeric {
		out.Numeric = append(out.Numeric, NumericSeries{
			Column: ns.Column,
			Bars: []NumericBar{
				bar(LabelMin, ns.Min),
				bar(LabelP25, ns.P25),
				bar(LabelP50, ns.P50),
				bar(LabelP75, ns.P75),
				bar(LabelMax, ns.Max),
			},
		})
	}
	for _, cs := range s.Categorical {
		bars := make([]CategoryBar, 0, len(cs.Top))
		for _, cc := range cs.Top {
			bars = append(bars, CategoryBar{Category: cc.Category, Value: cc.Count})
		}
		out.Categorical = append(out.Categorical, CategoricalSeries{Column: cs.Column, Bars: bars})
	}
	return out
}

func bar(label string, v *float64) NumericBar {
	if v == nil {
		return NumericBar{Label: label}
	}
	return NumericBar{Label: label, Value: *v, Present: true}
}
