package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const maxStructuredMessageLen = 3800

// MessageSection 表示通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述统一格式的推送。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本，超长时截断。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header + "\n\n")
	}
	b.WriteString(renderSections(m.Sections))
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxStructuredMessageLen {
		body = body[:maxStructuredMessageLen] + "..."
	}
	return body
}

func renderSections(secs []MessageSection) string {
	var b strings.Builder
	wrote := false
	for _, sec := range secs {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		if wrote {
			b.WriteString("\n")
		}
		wrote = true
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(sanitize(title) + "\n")
		}
		for _, line := range lines {
			b.WriteString("- " + sanitize(line) + "\n")
		}
	}
	if !wrote {
		return ""
	}
	return "```\n" + b.String() + "```\n\n"
}

func sanitizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

// BreakerAlert 描述某个 symbol 的外部源熔断状态变化。
func BreakerAlert(symbol, from, to string, threshold int, cooldown time.Duration, at time.Time) StructuredMessage {
	icon := "⚠️"
	if strings.EqualFold(to, "closed") {
		icon = "✅"
	}
	return StructuredMessage{
		Icon:  icon,
		Title: fmt.Sprintf("外部行情源熔断 %s", symbol),
		Sections: []MessageSection{{
			Title: "状态",
			Lines: []string{
				fmt.Sprintf("%s -> %s", from, to),
				fmt.Sprintf("阈值 %d 次连续失败, 冷却 %s", threshold, cooldown),
			},
		}},
		Timestamp: at,
	}
}

// SyncFailure 汇总一轮定时同步中失败的 symbol。
func SyncFailure(failures map[string]string, at time.Time) StructuredMessage {
	lines := make([]string, 0, len(failures))
	for sym, reason := range failures {
		lines = append(lines, fmt.Sprintf("%s: %s", sym, reason))
	}
	sort.Strings(lines)
	return StructuredMessage{
		Icon:      "❌",
		Title:     "规范库同步失败",
		Sections:  []MessageSection{{Title: fmt.Sprintf("%d 个标的", len(lines)), Lines: lines}},
		Timestamp: at,
	}
}
