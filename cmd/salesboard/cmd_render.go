package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"salesboard/internal/app"
	"salesboard/internal/sales"

	"github.com/spf13/cobra"
)

var (
	renderOut     string
	renderFormat  string
	renderOffline bool
	renderChart   string
	renderCohort  string
	renderStat    string
	renderOrder   string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Fetch once and write the chart",
	Long: `Fetch records for the configured selection (optionally overridden by flags)
and write the chart as html, png or json to --out (default stdout).

Example:
  salesboard render --cohort channel --stat sum --order "max to min" --format png --out sales.png`,
	RunE: runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderOut, "out", "o", "-", "output file, - for stdout")
	f.StringVar(&renderFormat, "format", "html", "html, png or json")
	f.BoolVar(&renderOffline, "offline", false, "aggregate from backend.db_path instead of calling the API")
	f.StringVar(&renderChart, "chart", "", "chart type (discreteBarChart, stackedAreaChart, pieChart)")
	f.StringVar(&renderCohort, "cohort", "", "cohort (empty, product, category, channel)")
	f.StringVar(&renderStat, "stat", "", "statistic (empty for count, sum)")
	f.StringVar(&renderOrder, "order", "", `order ("A to Z", "Z to A", "min to max", "max to min")`)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logFile, err := loadConfig()
	if err != nil {
		return err
	}
	defer logFile.Close()

	var patch sales.SelectionPatch
	flags := cmd.Flags()
	if flags.Changed("chart") {
		v := sales.ChartType(renderChart)
		patch.ChartType = &v
	}
	if flags.Changed("cohort") {
		v := sales.Cohort(renderCohort)
		patch.Cohort = &v
	}
	if flags.Changed("stat") {
		v := sales.Statistic(renderStat)
		patch.Statistic = &v
	}
	if flags.Changed("order") {
		v := sales.OrderBy(renderOrder)
		patch.OrderBy = &v
	}

	var w io.Writer = os.Stdout
	if out := strings.TrimSpace(renderOut); out != "" && out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	req := app.RenderRequest{Patch: patch, Format: renderFormat, Offline: renderOffline}
	if err := app.RenderOnce(ctx, cfg, req, w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
