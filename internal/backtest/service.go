package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stratlab/internal/analysis/performance"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/symbol"
	"stratlab/internal/resolver"
	"stratlab/internal/simulation"
	"stratlab/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceConfig 配置 Service。
type ServiceConfig struct {
	Resolver        *resolver.Resolver
	Engine          *simulation.Engine
	Results         *ResultStore
	StartingCapital decimal.Decimal
}

// Service 串联 K 线解析、交易模拟、绩效统计与结果落库。
type Service struct {
	resolver *resolver.Resolver
	engine   *simulation.Engine
	results  *ResultStore
	capital  decimal.Decimal
	now      func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver 不能为空")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("simulation engine 不能为空")
	}
	capital := cfg.StartingCapital
	if !capital.IsPositive() {
		capital = performance.DefaultStartingCapital()
	}
	return &Service{
		resolver: cfg.Resolver,
		engine:   cfg.Engine,
		results:  cfg.Results,
		capital:  capital,
		now:      time.Now,
	}, nil
}

// Run 以回测策略解析所需 K 线，模拟全部信号并保存结果。
func (s *Service) Run(ctx context.Context, req RunRequest) (Run, error) {
	if req.Signals == nil {
		return Run{}, simulation.ErrNilSignals
	}
	from, to, err := s.window(req)
	if err != nil {
		return Run{}, err
	}
	capital := s.capital
	if req.StartingCapital > 0 {
		capital = decimal.NewFromFloat(req.StartingCapital)
	}
	symbols := signalSymbols(req.Signals)
	policy := s.resolver.Policy()
	run := Run{
		ID:     uuid.NewString(),
		Status: RunStatusDone,
		Config: RunConfig{
			From:            from,
			To:              to,
			Symbols:         symbols,
			AllowFeed:       policy.AllowFeed,
			HoldingDays:     s.engine.HoldingDays(),
			StartingCapital: capital,
			Notes:           strings.TrimSpace(req.Notes),
		},
		CreatedAt: s.now(),
	}

	resolved := s.resolver.ResolveMany(ctx, symbols, from, to)
	candles := make([]market.Candle, 0)
	for _, sym := range symbols {
		res := resolved[sym]
		candles = append(candles, res.Candles...)
		run.Coverage = append(run.Coverage, SymbolCoverage{
			Symbol:      sym,
			Candles:     len(res.Candles),
			FromFeed:    res.FeedCount,
			Stale:       res.Stale,
			FeedSkipped: res.FeedSkipped,
			FeedError:   res.FeedError,
		})
	}

	trades, report, err := s.engine.Execute(req.Signals, candles)
	if err != nil {
		return Run{}, err
	}
	run.Trades = trades
	run.Report = report
	run.Summary = performance.Summarize(trades, capital)
	run.CompletedAt = s.now()

	logger.Infof("[backtest] run %s: %d signals, %d symbols, %d trades, pnl=%s maxDD=%s",
		run.ID, len(req.Signals), len(symbols), len(trades),
		run.Summary.TotalPnL.StringFixed(2), run.Summary.MaxDrawdown.StringFixed(4))

	if s.results != nil {
		if err := s.results.InsertRun(ctx, run); err != nil {
			run.Status = RunStatusFailed
			run.Message = fmt.Sprintf("persist failed: %v", err)
			logger.Errorf("[backtest] run %s persist failed: %v", run.ID, err)
			return run, err
		}
	}
	return run, nil
}

// Get 读取历史回测，并由存储的交易重新计算绩效。
func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	if s.results == nil {
		return Run{}, ErrRunNotFound
	}
	run, err := s.results.GetRun(ctx, id)
	if err != nil {
		return Run{}, err
	}
	trades, err := s.results.ListTrades(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Trades = trades
	run.Summary = performance.Summarize(trades, run.Config.StartingCapital)
	return run, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	if s.results == nil {
		return nil, nil
	}
	return s.results.ListRuns(ctx, limit)
}

// window 解析区间；缺省 from 为最早信号日，to 为今天。
func (s *Service) window(req RunRequest) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if raw := strings.TrimSpace(req.From); raw != "" {
		if from, err = market.ParseDate(raw); err != nil {
			return from, to, fmt.Errorf("invalid from %q: %w", raw, err)
		}
	} else {
		for _, sig := range req.Signals {
			d := market.Day(sig.Date)
			if !d.IsZero() && (from.IsZero() || d.Before(from)) {
				from = d
			}
		}
	}
	if raw := strings.TrimSpace(req.To); raw != "" {
		if to, err = market.ParseDate(raw); err != nil {
			return from, to, fmt.Errorf("invalid to %q: %w", raw, err)
		}
	} else {
		to = market.Day(s.now())
	}
	if !from.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("to %s is before from %s", market.FormatDate(to), market.FormatDate(from))
	}
	return from, to, nil
}

func signalSymbols(signals []types.Signal) []string {
	raw := make([]string, 0, len(signals))
	for _, sig := range signals {
		raw = append(raw, sig.Symbol)
	}
	return symbol.NormalizeList(raw)
}
