package resolver

import "stratlab/internal/config"

// Mode 区分两种服务场景；二者共用同一合并算法，仅策略开关不同。
type Mode int

const (
	ModeScreening Mode = iota
	ModeBacktest
)

func (m Mode) String() string {
	switch m {
	case ModeScreening:
		return "screening"
	case ModeBacktest:
		return "backtest"
	default:
		return "unknown"
	}
}

// ParseMode 接受 screening/backtest，其他值回落到 screening。
func ParseMode(raw string) Mode {
	if raw == "backtest" {
		return ModeBacktest
	}
	return ModeScreening
}

type Policy struct {
	Mode Mode
	// AllowFeed 为 false 时完全跳过外部源，保证回测可复现。
	AllowFeed bool
	// CheckStaleness 为 true 时，规范库未覆盖最新日期会标记 Stale 并告警。
	CheckStaleness bool
}

func ScreeningPolicy(checkStaleness bool) Policy {
	return Policy{Mode: ModeScreening, AllowFeed: true, CheckStaleness: checkStaleness}
}

func BacktestPolicy(allowFeed bool) Policy {
	return Policy{Mode: ModeBacktest, AllowFeed: allowFeed}
}

// PolicyFor 按配置生成指定模式的策略。
func PolicyFor(mode Mode, cfg config.ResolverConfig) Policy {
	if mode == ModeBacktest {
		return BacktestPolicy(cfg.BacktestAllowFeed)
	}
	return ScreeningPolicy(cfg.ScreeningStalenessCheck)
}
