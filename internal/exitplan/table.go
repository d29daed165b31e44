package exitplan

import (
	"sort"
	"strings"
)

// Table 是策略代码到退出规则的只读映射。新增策略只需改表，不改引擎代码。
type Table struct {
	rules map[string]ExitRule
}

// defaultRules 为内置映射；多个策略代码共享 StopOrTarget。
var defaultRules = map[string]ExitRule{
	"stop-or-target": StopOrTarget,
	"stop-only":      StopOnly,
	"time-or-stop":   TimeOrStop,
	"breakout":       StopOrTarget,
	"momentum":       StopOrTarget,
	"mean-reversion": StopOrTarget,
	"gap-up":         StopOrTarget,
	"trend-follow":   StopOnly,
	"swing":          TimeOrStop,
}

func NewTable(rules map[string]ExitRule) Table {
	t := Table{rules: make(map[string]ExitRule, len(rules))}
	for code, rule := range rules {
		if key := normalizeCode(code); key != "" {
			t.rules[key] = rule
		}
	}
	return t
}

func DefaultTable() Table {
	return NewTable(defaultRules)
}

// Lookup 返回策略代码对应的规则；未登记时返回 UnmappedFallback 与 false。
func (t Table) Lookup(code string) (ExitRule, bool) {
	if rule, ok := t.rules[normalizeCode(code)]; ok {
		return rule, true
	}
	return UnmappedFallback, false
}

// Merge 返回以 overrides 覆盖当前表后的新表。
func (t Table) Merge(overrides map[string]ExitRule) Table {
	merged := make(map[string]ExitRule, len(t.rules)+len(overrides))
	for code, rule := range t.rules {
		merged[code] = rule
	}
	for code, rule := range overrides {
		merged[normalizeCode(code)] = rule
	}
	return NewTable(merged)
}

func (t Table) Len() int { return len(t.rules) }

// Entries 以规则名返回全部映射，便于展示。
func (t Table) Entries() map[string]string {
	out := make(map[string]string, len(t.rules))
	for code, rule := range t.rules {
		out[code] = rule.String()
	}
	return out
}

func (t Table) Codes() []string {
	out := make([]string, 0, len(t.rules))
	for code := range t.rules {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "_", "-")
}
