package app

import (
	"fmt"
	"strings"

	"salesboard/internal/logger"
	"salesboard/internal/sales"
)

type StartupSummary struct {
	Env         string
	Dashboard   string
	SourceURL   string
	Refresh     string
	Selection   sales.Selection
	Locale      string
	Snapshots   bool
	Backend     bool
	BackendAddr string
	BackendRows int64
	HotReload   bool
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(&b, strings.Repeat("=", 80))
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(&b, strings.Repeat("=", 80))

	fmt.Fprintln(&b, "[看板 (DASHBOARD)]")
	fmt.Fprintf(&b, "  环境: %s\n", orDash(s.Env))
	fmt.Fprintf(&b, "  监听: %s\n", orDash(s.Dashboard))
	fmt.Fprintf(&b, "  数据源: %s\n", orDash(s.SourceURL))
	fmt.Fprintf(&b, "  自动刷新: %s\n", orDash(s.Refresh))
	fmt.Fprintf(&b, "  Locale: %s\n", orDash(s.Locale))
	fmt.Fprintf(&b, "  PNG 快照: %s\n", onOff(s.Snapshots))
	fmt.Fprintf(&b, "  配置热加载: %s\n", onOff(s.HotReload))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[初始选择 (SELECTION)]")
	fmt.Fprintf(&b, "  chartType=%q cohort=%q statistic=%q orderBy=%q\n",
		s.Selection.ChartType, s.Selection.Cohort, s.Selection.Statistic, s.Selection.OrderBy)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[参考接口 (BACKEND)]")
	if !s.Backend {
		fmt.Fprintln(&b, "  (未启用)")
	} else {
		fmt.Fprintf(&b, "  监听: %s\n", orDash(s.BackendAddr))
		fmt.Fprintf(&b, "  记录数: %d\n", s.BackendRows)
	}
	fmt.Fprintln(&b, strings.Repeat("=", 80))
	return b.String()
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
