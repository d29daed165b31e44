package config

import (
	"strings"
	"time"
)

// Config 是 stratlab 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Store      StoreConfig      `toml:"store"`
	Feed       FeedConfig       `toml:"feed"`
	Breaker    BreakerConfig    `toml:"breaker"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Simulation SimulationConfig `toml:"simulation"`
	Analytics  AnalyticsConfig  `toml:"analytics"`
	Sync       SyncConfig       `toml:"sync"`
	Notify     NotifyConfig     `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// StoreConfig 指定规范 K 线库与回测结果库的位置。
type StoreConfig struct {
	CandleDBPath string `toml:"candle_db_path"`
	ResultDBDir  string `toml:"result_db_dir"`
}

// FeedConfig 描述外部行情源（Source B）。provider 为 none 时不启用。
type FeedConfig struct {
	Provider        string `toml:"provider"` // binance | fmp | none
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	ProxyURL        string `toml:"proxy_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
}

func (f FeedConfig) Enabled() bool {
	p := strings.ToLower(strings.TrimSpace(f.Provider))
	return p != "" && p != "none"
}

func (f FeedConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// BreakerConfig 为每个 symbol 的外部源熔断参数。
type BreakerConfig struct {
	FailureThreshold int `toml:"failure_threshold"`
	CooldownSeconds  int `toml:"cooldown_seconds"`
}

func (b BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSeconds) * time.Second
}

// ResolverConfig 控制两种服务模式的策略开关。
type ResolverConfig struct {
	BacktestAllowFeed       bool `toml:"backtest_allow_feed"`
	ScreeningStalenessCheck bool `toml:"screening_staleness_check"`
	MaxConcurrent           int  `toml:"max_concurrent"`
}

type SimulationConfig struct {
	HoldingPeriodDays int    `toml:"holding_period_days"`
	ExitRulesPath     string `toml:"exit_rules_path"`
}

type AnalyticsConfig struct {
	StartingCapital float64 `toml:"starting_capital"`
}

// SyncConfig 控制 serve 模式下按日线收盘定时把外部源写入规范库；symbols 为空时不启用。
type SyncConfig struct {
	Symbols       []string `toml:"symbols"`
	Interval      string   `toml:"interval"`
	OffsetMinutes int      `toml:"offset_minutes"`
	LookbackDays  int      `toml:"lookback_days"`
	RunOnStart    bool     `toml:"run_on_start"`
}

func (s SyncConfig) Enabled() bool { return len(s.Symbols) > 0 }

func (s SyncConfig) Offset() time.Duration {
	return time.Duration(s.OffsetMinutes) * time.Minute
}

// keySet 用于追踪配置文件或环境变量中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

// NotifyConfig 配置 Telegram 告警（熔断状态变化、定时同步失败）。
type NotifyConfig struct {
	TelegramBotToken string `toml:"telegram_bot_token"`
	TelegramChatID   string `toml:"telegram_chat_id"`
}

func (n NotifyConfig) Enabled() bool {
	return strings.TrimSpace(n.TelegramBotToken) != "" && strings.TrimSpace(n.TelegramChatID) != ""
}
