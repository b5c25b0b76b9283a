// Package sales holds the value types shared by the chart pipeline, its data
// source and the renderers.
package sales

import "encoding/json"

// ChartType is the internal chart identifier understood by the renderer.
type ChartType string

const (
	ChartBar  ChartType = "discreteBarChart"
	ChartLine ChartType = "stackedAreaChart"
	ChartPie  ChartType = "pieChart"
)

// Cohort is the grouping dimension. The empty value means all records.
type Cohort string

const (
	CohortAll      Cohort = ""
	CohortProduct  Cohort = "product"
	CohortCategory Cohort = "category"
	CohortChannel  Cohort = "channel"
)

// Statistic is the server side aggregation. The empty value means count.
type Statistic string

const (
	StatCount Statistic = ""
	StatSum   Statistic = "sum"
)

// OrderBy selects the comparator used before reshaping.
type OrderBy string

const (
	OrderAscLabel  OrderBy = "A to Z"
	OrderDescLabel OrderBy = "Z to A"
	OrderAscValue  OrderBy = "min to max"
	OrderDescValue OrderBy = "max to min"
)

// Record is one data point returned by the backend for a (statistic, cohort) pair.
type Record struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Selection is the user's current choice of chart, grouping, aggregation and order.
type Selection struct {
	ChartType ChartType `json:"chartType"`
	Cohort    Cohort    `json:"cohort"`
	Statistic Statistic `json:"statistic"`
	OrderBy   OrderBy   `json:"orderBy"`
}

// SelectionPatch carries the fields a caller wants to change; nil means keep.
type SelectionPatch struct {
	ChartType *ChartType `json:"chartType,omitempty"`
	Cohort    *Cohort    `json:"cohort,omitempty"`
	Statistic *Statistic `json:"statistic,omitempty"`
	OrderBy   *OrderBy   `json:"orderBy,omitempty"`
}

// Apply returns s with every non-nil field of p merged in.
func (s Selection) Apply(p SelectionPatch) Selection {
	if p.ChartType != nil {
		s.ChartType = *p.ChartType
	}
	if p.Cohort != nil {
		s.Cohort = *p.Cohort
	}
	if p.Statistic != nil {
		s.Statistic = *p.Statistic
	}
	if p.OrderBy != nil {
		s.OrderBy = *p.OrderBy
	}
	return s
}

// NeedsFetch reports whether moving from s to next changes the query parameters.
func (s Selection) NeedsFetch(next Selection) bool {
	return s.Cohort != next.Cohort || s.Statistic != next.Statistic
}

// IsEmpty reports whether the patch changes nothing.
func (p SelectionPatch) IsEmpty() bool {
	return p.ChartType == nil && p.Cohort == nil && p.Statistic == nil && p.OrderBy == nil
}

// AxisLabels are the display names shown on the chart axes.
type AxisLabels struct {
	X string `json:"xLabel"`
	Y string `json:"yLabel"`
}

// Point is one vertex of a line series. The label is the x position.
type Point struct {
	Label int     `json:"label"`
	Value float64 `json:"value"`
}

// BarSeries wraps the sorted records for a discrete bar chart.
type BarSeries struct {
	Key    string   `json:"key"`
	Values []Record `json:"values"`
}

// LineSeries is a two point line for one category.
type LineSeries struct {
	Key    string  `json:"key"`
	Values []Point `json:"values"`
}

// RenderSpec is the chart-type specific data handed to the renderer. Exactly one
// of Bars, Lines and Slices is populated, according to ChartType.
type RenderSpec struct {
	ChartType ChartType
	Bars      []BarSeries
	Lines     []LineSeries
	Slices    []Record
}

// Points counts the data points across every series.
func (r RenderSpec) Points() int {
	n := 0
	for _, s := range r.Bars {
		n += len(s.Values)
	}
	for _, s := range r.Lines {
		n += len(s.Values)
	}
	return n + len(r.Slices)
}

// MarshalJSON encodes the render spec as the bare array the charting library consumes.
func (r RenderSpec) MarshalJSON() ([]byte, error) {
	switch r.ChartType {
	case ChartBar:
		if r.Bars == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Bars)
	case ChartLine:
		if r.Lines == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Lines)
	default:
		if r.Slices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Slices)
	}
}
