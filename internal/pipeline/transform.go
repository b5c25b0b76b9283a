package pipeline

import (
	"cmp"
	"fmt"
	"slices"

	"salesboard/internal/catalog"
	"salesboard/internal/sales"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort returns a stably ordered copy of records. Label orders use collation
// rules for tag; ties keep their incoming relative order.
func Sort(records []sales.Record, orderBy sales.OrderBy, tag language.Tag) []sales.Record {
	out := slices.Clone(records)
	if out == nil {
		out = []sales.Record{}
	}
	switch orderBy {
	case sales.OrderAscLabel, sales.OrderDescLabel:
		coll := collate.New(tag)
		desc := orderBy == sales.OrderDescLabel
		slices.SortStableFunc(out, func(a, b sales.Record) int {
			if desc {
				return coll.CompareString(b.Label, a.Label)
			}
			return coll.CompareString(a.Label, b.Label)
		})
	case sales.OrderAscValue:
		slices.SortStableFunc(out, func(a, b sales.Record) int {
			return cmp.Compare(a.Value, b.Value)
		})
	case sales.OrderDescValue:
		slices.SortStableFunc(out, func(a, b sales.Record) int {
			return cmp.Compare(b.Value, a.Value)
		})
	}
	return out
}

// Reshape maps sorted records onto the structure expected by chartType. Unknown
// chart types fall back to the pie pass-through.
func Reshape(records []sales.Record, chartType sales.ChartType, cohort sales.Cohort) sales.RenderSpec {
	if records == nil {
		records = []sales.Record{}
	}
	switch chartType {
	case sales.ChartBar:
		return sales.RenderSpec{
			ChartType: sales.ChartBar,
			Bars:      []sales.BarSeries{{Key: string(cohort), Values: records}},
		}
	case sales.ChartLine:
		lines := make([]sales.LineSeries, 0, len(records))
		for _, rec := range records {
			lines = append(lines, sales.LineSeries{
				Key: rec.Label,
				Values: []sales.Point{
					{Label: 0, Value: 0},
					{Label: 1, Value: rec.Value},
				},
			})
		}
		return sales.RenderSpec{ChartType: sales.ChartLine, Lines: lines}
	default:
		return sales.RenderSpec{ChartType: sales.ChartPie, Slices: records}
	}
}

// DeriveAxisLabels looks up the display names of the selected cohort (x) and
// statistic (y).
func DeriveAxisLabels(c catalog.Catalog, sel sales.Selection) (sales.AxisLabels, error) {
	x, err := c.CohortName(sel.Cohort)
	if err != nil {
		return sales.AxisLabels{}, fmt.Errorf("x axis label: %w", err)
	}
	y, err := c.StatisticName(sel.Statistic)
	if err != nil {
		return sales.AxisLabels{}, fmt.Errorf("y axis label: %w", err)
	}
	return sales.AxisLabels{X: x, Y: y}, nil
}

// MustDeriveAxisLabels panics on a catalog miss. The catalog is closed, so a
// miss is a programming error.
func MustDeriveAxisLabels(c catalog.Catalog, sel sales.Selection) sales.AxisLabels {
	labels, err := DeriveAxisLabels(c, sel)
	if err != nil {
		panic(err)
	}
	return labels
}
