package exitplan

import (
	"fmt"
	"strings"
)

// ExitRule 是封闭的退出规则集合；策略代码到规则的映射见 Table。
type ExitRule int

const (
	StopOrTarget ExitRule = iota + 1
	StopOnly
	TimeOrStop
	// UnmappedFallback 用于未登记的策略代码，行为等同 StopOnly，但单独标记以便告警。
	UnmappedFallback
)

func (r ExitRule) String() string {
	switch r {
	case StopOrTarget:
		return "stop-or-target"
	case StopOnly:
		return "stop-only"
	case TimeOrStop:
		return "time-or-stop"
	case UnmappedFallback:
		return "unmapped-fallback"
	default:
		return "unknown"
	}
}

// ParseRule 只接受三种可配置的规则名，UnmappedFallback 不能被显式配置。
func ParseRule(raw string) (ExitRule, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stop-or-target", "stop_or_target":
		return StopOrTarget, nil
	case "stop-only", "stop_only":
		return StopOnly, nil
	case "time-or-stop", "time_or_stop":
		return TimeOrStop, nil
	default:
		return 0, fmt.Errorf("unknown exit rule %q", raw)
	}
}

func (r ExitRule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
