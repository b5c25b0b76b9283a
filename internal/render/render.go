// Package render turns a RenderSpec into an ECharts page and, optionally, a PNG
// snapshot of that page.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"salesboard/internal/config"
	"salesboard/internal/sales"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"

	lineStack = "total"
)

// Margin is the plot area inset in pixels.
type Margin struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Options are the static rendering parameters.
type Options struct {
	Title      string `json:"title"`
	Theme      string `json:"theme"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Margin     Margin `json:"margin"`
	DurationMS int    `json:"durationMs"`
	Locale     string `json:"locale"`
}

// OptionsFromConfig maps the render section of the configuration.
func OptionsFromConfig(cfg config.RenderConfig) Options {
	return Options{
		Title:  cfg.Title,
		Theme:  cfg.Theme,
		Width:  cfg.Width,
		Height: cfg.Height,
		Margin: Margin{
			Top:    cfg.MarginTop,
			Right:  cfg.MarginRight,
			Bottom: cfg.MarginBottom,
			Left:   cfg.MarginLeft,
		},
		DurationMS: cfg.DurationMS,
		Locale:     cfg.Locale,
	}
}

// Renderer draws one chart per call. It holds no per-chart state.
type Renderer struct {
	opts   Options
	format *Formatter
}

func New(o Options) (*Renderer, error) {
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("render size must be positive, got %dx%d", o.Width, o.Height)
	}
	if strings.TrimSpace(o.Theme) == "" {
		o.Theme = types.ThemeWesteros
	}
	f, err := NewFormatter(o.Locale)
	if err != nil {
		return nil, err
	}
	return &Renderer{opts: o, format: f}, nil
}

func (r *Renderer) Options() Options {
	return r.opts
}

func (r *Renderer) Formatter() *Formatter {
	return r.format
}

// Render writes a standalone HTML page containing the chart.
func (r *Renderer) Render(w io.Writer, spec sales.RenderSpec, labels sales.AxisLabels) error {
	page := components.NewPage()
	page.PageTitle = r.opts.Title
	page.AddCharts(r.Chart(spec, labels))
	return page.Render(w)
}

// HTML is Render into a byte slice.
func (r *Renderer) HTML(spec sales.RenderSpec, labels sales.AxisLabels) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, spec, labels); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Chart builds the chart for spec. Unknown chart types are drawn as a pie.
func (r *Renderer) Chart(spec sales.RenderSpec, labels sales.AxisLabels) components.Charter {
	switch spec.ChartType {
	case sales.ChartBar:
		return r.bar(spec.Bars, labels)
	case sales.ChartLine:
		return r.line(spec.Lines, labels)
	default:
		return r.pie(spec.Slices, labels)
	}
}

// Subtitle summarises the chart values in the configured locale.
func (r *Renderer) Subtitle(spec sales.RenderSpec) string {
	total := 0.0
	for _, s := range spec.Bars {
		for _, v := range s.Values {
			total += v.Value
		}
	}
	for _, s := range spec.Lines {
		if len(s.Values) > 0 {
			total += s.Values[len(s.Values)-1].Value
		}
	}
	for _, v := range spec.Slices {
		total += v.Value
	}
	return fmt.Sprintf("%d points | total %s", spec.Points(), r.format.Value(total))
}

func (r *Renderer) globals(spec sales.RenderSpec, labels sales.AxisLabels, legend bool) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       r.opts.Title,
			Theme:           r.opts.Theme,
			Width:           fmt.Sprintf("%dpx", r.opts.Width),
			Height:          fmt.Sprintf("%dpx", r.opts.Height),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         r.opts.Title,
			Subtitle:      r.Subtitle(spec),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(legend), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithGridOpts(opts.Grid{
			Top:    strconv.Itoa(r.opts.Margin.Top),
			Right:  strconv.Itoa(r.opts.Margin.Right),
			Bottom: strconv.Itoa(r.opts.Margin.Bottom),
			Left:   strconv.Itoa(r.opts.Margin.Left),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      labels.X,
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      labels.Y,
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary, Formatter: opts.FuncOpts(r.format.JSValue())},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	}
}

func (r *Renderer) bar(series []sales.BarSeries, labels sales.AxisLabels) *charts.Bar {
	bar := charts.NewBar()
	spec := sales.RenderSpec{ChartType: sales.ChartBar, Bars: series}
	bar.SetGlobalOptions(append(r.globals(spec, labels, false), r.tooltip("axis"))...)
	for _, s := range series {
		x := make([]string, len(s.Values))
		data := make([]opts.BarData, len(s.Values))
		for i, rec := range s.Values {
			x[i] = rec.Label
			data[i] = opts.BarData{Name: rec.Label, Value: rec.Value}
		}
		bar.SetXAxis(x)
		bar.AddSeries(seriesName(s.Key, labels.X), data, r.animation())
	}
	return bar
}

func (r *Renderer) line(series []sales.LineSeries, labels sales.AxisLabels) *charts.Line {
	line := charts.NewLine()
	spec := sales.RenderSpec{ChartType: sales.ChartLine, Lines: series}
	line.SetGlobalOptions(append(r.globals(spec, labels, true), r.tooltip("axis"))...)
	line.SetXAxis(linePositions(series))
	for _, s := range series {
		data := make([]opts.LineData, len(s.Values))
		for i, p := range s.Values {
			data[i] = opts.LineData{Value: p.Value}
		}
		line.AddSeries(s.Key, data,
			charts.WithLineChartOpts(opts.LineChart{Stack: lineStack, ShowSymbol: opts.Bool(false)}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.4)}),
			r.animation(),
		)
	}
	return line
}

func (r *Renderer) pie(slices []sales.Record, labels sales.AxisLabels) *charts.Pie {
	pie := charts.NewPie()
	spec := sales.RenderSpec{ChartType: sales.ChartPie, Slices: slices}
	pie.SetGlobalOptions(append(r.globals(spec, labels, true), r.tooltip("item"))...)
	data := make([]opts.PieData, len(slices))
	for i, rec := range slices {
		data[i] = opts.PieData{Name: rec.Label, Value: rec.Value}
	}
	pie.AddSeries(seriesName("", labels.Y), data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: opts.FuncStripCommentsOpts(r.format.JSPieLabel())}),
		r.animation(),
	)
	return pie
}

func (r *Renderer) tooltip(trigger string) charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{
		Show:           opts.Bool(true),
		Trigger:        trigger,
		ValueFormatter: opts.FuncOpts(r.format.JSValue()),
	})
}

// animation applies the configured transition to the first draw and to updates.
func (r *Renderer) animation() charts.SeriesOpts {
	if r.opts.DurationMS <= 0 {
		return charts.WithAnimationOpts(opts.Animation{})
	}
	return charts.WithAnimationOpts(opts.Animation{
		AnimationDuration:       r.opts.DurationMS,
		AnimationDurationUpdate: r.opts.DurationMS,
	})
}

// linePositions returns the x labels of the longest series.
func linePositions(series []sales.LineSeries) []string {
	var longest []sales.Point
	for _, s := range series {
		if len(s.Values) > len(longest) {
			longest = s.Values
		}
	}
	x := make([]string, len(longest))
	for i, p := range longest {
		x[i] = strconv.Itoa(p.Label)
	}
	return x
}

func seriesName(key, fallback string) string {
	if key != "" {
		return key
	}
	if fallback != "" {
		return fallback
	}
	return "All Records"
}
