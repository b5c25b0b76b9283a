package notifier

import (
	"fmt"
	"strings"
	"time"
)

const maxMessageLen = 3800

// Section 是通知中的一个段落。
type Section struct {
	Title string
	Lines []string
}

// Message 描述统一格式的告警推送。
type Message struct {
	Icon      string
	Title     string
	Sections  []Section
	Footer    string
	Timestamp time.Time
}

// Markdown 生成 Markdown 文本，超长时截断。
func (m Message) Markdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header + "\n\n")
	}
	b.WriteString(renderSections(m.Sections))
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escapeFence(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen] + "..."
	}
	return body
}

// BreakerMessage describes a circuit breaker transition of a data source.
func BreakerMessage(source, from, to, endpoint string, at time.Time) Message {
	icon, title := "⚠️", "销售数据源熔断"
	hint := "看板保留最后一次成功的图表，冷却结束后自动试探恢复。"
	if strings.EqualFold(to, "closed") {
		icon, title = "✅", "销售数据源恢复"
		hint = "数据源已恢复，下一次刷新将更新图表。"
	}
	return Message{
		Icon:  icon,
		Title: title,
		Sections: []Section{{
			Title: "Breaker",
			Lines: []string{
				fmt.Sprintf("name: %s", source),
				fmt.Sprintf("state: %s -> %s", from, to),
				fmt.Sprintf("endpoint: %s", endpoint),
			},
		}},
		Footer:    hint,
		Timestamp: at,
	}
}

func renderSections(secs []Section) string {
	var blocks []string
	for _, sec := range secs {
		lines := nonEmpty(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		var b strings.Builder
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(escapeFence(title) + "\n")
		}
		for _, line := range lines {
			b.WriteString("- " + escapeFence(line) + "\n")
		}
		blocks = append(blocks, b.String())
	}
	if len(blocks) == 0 {
		return ""
	}
	return "```\n" + strings.Join(blocks, "\n") + "```\n\n"
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
