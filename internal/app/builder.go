package app

import (
	"context"
	"fmt"
	"time"

	"stratlab/internal/backtest"
	"stratlab/internal/config"
	"stratlab/internal/exitplan"
	"stratlab/internal/gateway"
	"stratlab/internal/gateway/notifier"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/circuit"
	"stratlab/internal/resolver"
	"stratlab/internal/simulation"
	"stratlab/internal/store/gormstore"
	apihttp "stratlab/internal/transport/http/api"

	"github.com/shopspring/decimal"
)

const notifyTimeout = 30 * time.Second

// Components 是一次装配得到的全部服务对象。
type Components struct {
	Candles   *gormstore.CandleStore
	Feed      market.CandleSource
	Tracker   *circuit.Tracker
	Resolver  *resolver.Resolver
	Rules     *exitplan.Registry
	Engine    *simulation.Engine
	Results   *backtest.ResultStore
	Backtests *backtest.Service
	Ingestor  *backtest.Ingestor
	Notifier  notifier.TextNotifier
}

type AppBuilder struct {
	cfg *config.Config

	candleStoreFn func(string) (*gormstore.CandleStore, error)
	feedFn        func(config.FeedConfig) (market.CandleSource, error)
	rulesFn       func(string) (*exitplan.Registry, error)
	resultStoreFn func(string) (*backtest.ResultStore, error)
}

type AppBuilderOption func(*AppBuilder)

// WithFeed 替换外部行情源构造（测试中注入假源）。
func WithFeed(fn func(config.FeedConfig) (market.CandleSource, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.feedFn = fn
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		candleStoreFn: gormstore.NewCandleStore,
		feedFn:        gateway.NewFeedFromConfig,
		rulesFn:       exitplan.NewRegistry,
		resultStoreFn: backtest.NewResultStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	comp, err := b.buildComponents()
	if err != nil {
		return nil, err
	}
	srv, err := apihttp.NewServer(apihttp.Config{
		Addr:            cfg.App.HTTPAddr,
		Resolver:        comp.Resolver,
		Policies:        cfg.Resolver,
		Engine:          comp.Engine,
		Backtests:       comp.Backtests,
		Ingestor:        comp.Ingestor,
		Rules:           comp.Rules,
		StartingCapital: decimal.NewFromFloat(cfg.Analytics.StartingCapital),
	})
	if err != nil {
		closeComponents(comp)
		return nil, err
	}
	return &App{
		cfg:     cfg,
		comp:    comp,
		http:    srv,
		Summary: newStartupSummary(cfg, comp),
	}, nil
}

func (b *AppBuilder) buildComponents() (*Components, error) {
	cfg := b.cfg
	comp := &Components{}
	var err error

	if comp.Candles, err = b.candleStoreFn(cfg.Store.CandleDBPath); err != nil {
		return nil, fmt.Errorf("打开规范 K 线库失败: %w", err)
	}
	logger.Infof("✓ 规范 K 线库: %s", cfg.Store.CandleDBPath)

	if comp.Feed, err = b.feedFn(cfg.Feed); err != nil {
		closeComponents(comp)
		return nil, fmt.Errorf("初始化外部行情源失败: %w", err)
	}
	if comp.Feed != nil {
		logger.Infof("✓ 外部行情源: %s (%d req/min)", comp.Feed.Name(), cfg.Feed.RateLimitPerMin)
	} else {
		logger.Infof("外部行情源未启用，仅使用规范库")
	}

	if cfg.Notify.Enabled() {
		comp.Notifier = notifier.NewTelegram(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID)
		logger.Infof("✓ Telegram 告警已启用")
	}
	comp.Tracker = circuit.NewTracker(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown(),
		circuit.WithStateChangeHandler(breakerAlerts(comp.Notifier, cfg.Breaker)))
	comp.Resolver = resolver.New(comp.Candles, comp.Feed, comp.Tracker,
		resolver.WithPolicy(resolver.PolicyFor(resolver.ModeScreening, cfg.Resolver)),
		resolver.WithMaxConcurrent(cfg.Resolver.MaxConcurrent),
	)

	if comp.Rules, err = b.rulesFn(cfg.Simulation.ExitRulesPath); err != nil {
		closeComponents(comp)
		return nil, fmt.Errorf("加载退出规则失败: %w", err)
	}
	comp.Rules.OnChange(func(s exitplan.Snapshot) {
		logger.Infof("退出规则已重载: version=%d rules=%d", s.Version, s.Table.Len())
	})
	comp.Engine = simulation.NewEngine(comp.Rules, cfg.Simulation.HoldingPeriodDays)

	if comp.Results, err = b.resultStoreFn(cfg.Store.ResultDBDir); err != nil {
		closeComponents(comp)
		return nil, fmt.Errorf("打开回测结果库失败: %w", err)
	}
	comp.Backtests, err = backtest.NewService(backtest.ServiceConfig{
		Resolver:        comp.Resolver.WithPolicy(resolver.PolicyFor(resolver.ModeBacktest, cfg.Resolver)),
		Engine:          comp.Engine,
		Results:         comp.Results,
		StartingCapital: decimal.NewFromFloat(cfg.Analytics.StartingCapital),
	})
	if err != nil {
		closeComponents(comp)
		return nil, err
	}
	if comp.Feed != nil {
		comp.Ingestor = backtest.NewIngestor(comp.Feed, comp.Candles, comp.Tracker)
	}
	return comp, nil
}

// breakerAlerts 记录熔断状态变化，配置了通知器时同时推送。
func breakerAlerts(n notifier.TextNotifier, cfg config.BreakerConfig) circuit.StateChangeHandler {
	return func(name string, from, to circuit.State) {
		logger.Warnf("[breaker] %s state change: %s -> %s (threshold=%d cooldown=%s)",
			name, from, to, cfg.FailureThreshold, cfg.Cooldown())
		if n == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		msg := notifier.BreakerAlert(name, from.String(), to.String(), cfg.FailureThreshold, cfg.Cooldown(), time.Now())
		if err := n.SendText(ctx, msg.RenderMarkdown()); err != nil {
			logger.Warnf("[breaker] %s alert failed: %v", name, err)
		}
	}
}

func closeComponents(comp *Components) {
	if comp == nil {
		return
	}
	if comp.Results != nil {
		_ = comp.Results.Close()
	}
	if comp.Candles != nil {
		_ = comp.Candles.Close()
	}
}
