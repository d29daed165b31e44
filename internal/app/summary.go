package app

import (
	"fmt"
	"strings"

	"stratlab/internal/config"
)

type StartupSummary struct {
	HTTPAddr  string
	Store     StoreSummary
	Feed      FeedSummary
	Breaker   BreakerSummary
	Policy    PolicySummary
	ExitRules ExitRuleSummary
}

type StoreSummary struct {
	CandleDB string
	ResultDB string
	Symbols  []string
}

type FeedSummary struct {
	Provider   string
	Enabled    bool
	RatePerMin int
	TimeoutS   int
}

type BreakerSummary struct {
	Threshold int
	Cooldown  string
}

type PolicySummary struct {
	BacktestAllowFeed bool
	StalenessCheck    bool
	MaxConcurrent     int
	HoldingDays       int
	StartingCapital   float64
}

type ExitRuleSummary struct {
	Path    string
	Version int64
	Codes   []string
}

func newStartupSummary(cfg *config.Config, comp *Components) *StartupSummary {
	s := &StartupSummary{
		HTTPAddr: cfg.App.HTTPAddr,
		Store: StoreSummary{
			CandleDB: cfg.Store.CandleDBPath,
			ResultDB: cfg.Store.ResultDBDir,
		},
		Feed: FeedSummary{
			Provider:   cfg.Feed.Provider,
			Enabled:    comp != nil && comp.Feed != nil,
			RatePerMin: cfg.Feed.RateLimitPerMin,
			TimeoutS:   cfg.Feed.TimeoutSeconds,
		},
		Breaker: BreakerSummary{
			Threshold: cfg.Breaker.FailureThreshold,
			Cooldown:  cfg.Breaker.Cooldown().String(),
		},
		Policy: PolicySummary{
			BacktestAllowFeed: cfg.Resolver.BacktestAllowFeed,
			StalenessCheck:    cfg.Resolver.ScreeningStalenessCheck,
			MaxConcurrent:     cfg.Resolver.MaxConcurrent,
			HoldingDays:       cfg.Simulation.HoldingPeriodDays,
			StartingCapital:   cfg.Analytics.StartingCapital,
		},
		ExitRules: ExitRuleSummary{Path: cfg.Simulation.ExitRulesPath},
	}
	if comp != nil && comp.Rules != nil {
		snap := comp.Rules.Snapshot()
		s.ExitRules.Version = snap.Version
		s.ExitRules.Codes = snap.Table.Codes()
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[存储 (STORAGE)]")
	fmt.Printf("  规范 K 线库: %s\n", s.Store.CandleDB)
	fmt.Printf("  回测结果库: %s\n", s.Store.ResultDB)
	fmt.Println()

	fmt.Println("[外部行情源 (FEED)]")
	if s.Feed.Enabled {
		fmt.Printf("  提供方: %s\n", s.Feed.Provider)
		fmt.Printf("  限速: %d req/min, 超时: %ds\n", s.Feed.RatePerMin, s.Feed.TimeoutS)
	} else {
		fmt.Println("  (未启用)")
	}
	fmt.Printf("  熔断: %d 次失败, 冷却 %s\n", s.Breaker.Threshold, s.Breaker.Cooldown)
	fmt.Println()

	fmt.Println("[解析与模拟 (RESOLVER / SIMULATION)]")
	fmt.Printf("  回测允许外部源: %t\n", s.Policy.BacktestAllowFeed)
	fmt.Printf("  筛选陈旧检查: %t\n", s.Policy.StalenessCheck)
	fmt.Printf("  并发: %d\n", s.Policy.MaxConcurrent)
	fmt.Printf("  持有天数: %d\n", s.Policy.HoldingDays)
	fmt.Printf("  初始资金: %.2f\n", s.Policy.StartingCapital)
	fmt.Println()

	fmt.Println("[退出规则 (EXIT RULES)]")
	path := s.ExitRules.Path
	if path == "" {
		path = "(内置)"
	}
	fmt.Printf("  文件: %s (version=%d)\n", path, s.ExitRules.Version)
	fmt.Printf("  策略代码: %s\n", formatList(s.ExitRules.Codes))
	fmt.Println()

	fmt.Printf("HTTP API: %s\n", s.HTTPAddr)
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
