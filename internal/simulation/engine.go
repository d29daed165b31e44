package simulation

import (
	"fmt"
	"sort"

	"stratlab/internal/exitplan"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/symbol"
	"stratlab/internal/types"

	"github.com/shopspring/decimal"
)

const DefaultHoldingDays = 3

// RuleLookup 把策略代码映射到退出规则；exitplan.Table 与 exitplan.Registry 均实现。
type RuleLookup interface {
	Lookup(code string) (exitplan.ExitRule, bool)
}

// Engine 将信号与 K 线推演为已平仓交易。Engine 无状态，可并发调用。
type Engine struct {
	rules       RuleLookup
	holdingDays int
}

func NewEngine(rules RuleLookup, holdingDays int) *Engine {
	if rules == nil {
		rules = exitplan.DefaultTable()
	}
	if holdingDays <= 0 {
		holdingDays = DefaultHoldingDays
	}
	return &Engine{rules: rules, holdingDays: holdingDays}
}

func (e *Engine) HoldingDays() int { return e.holdingDays }

// Execute 按标的分组、组内按信号日期 FIFO 推演。单个信号的问题记入 Report，
// 只有 nil 输入才返回错误。
func (e *Engine) Execute(signals []types.Signal, candles []market.Candle) ([]types.SimulatedTrade, Report, error) {
	if signals == nil {
		return nil, Report{}, ErrNilSignals
	}
	if candles == nil {
		return nil, Report{}, ErrNilCandles
	}
	report := Report{Signals: len(signals)}
	series := IndexBySymbol(candles)

	groups := make(map[string][]types.Signal)
	for _, sig := range signals {
		key := symbol.Normalize(sig.Symbol)
		groups[key] = append(groups[key], sig)
	}
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[string]struct{}, len(signals))
	trades := make([]types.SimulatedTrade, 0, len(signals))
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })
		for _, sig := range group {
			id := sig.Key()
			if _, dup := seen[id]; dup {
				report.Skipped = append(report.Skipped, Skip{SignalID: id, Symbol: key, Reason: ReasonDuplicate})
				continue
			}
			seen[id] = struct{}{}
			trade, skip, warn := e.simulate(key, sig, series[key])
			if warn != nil {
				report.Warnings = append(report.Warnings, *warn)
			}
			if skip != nil {
				report.Skipped = append(report.Skipped, *skip)
				continue
			}
			trades = append(trades, trade)
		}
	}
	report.Trades = len(trades)
	if len(report.Skipped) > 0 || len(report.Warnings) > 0 {
		logger.Infof("[simulation] %d signals -> %d trades, skipped=%d warnings=%d",
			report.Signals, report.Trades, len(report.Skipped), len(report.Warnings))
	}
	return trades, report, nil
}

func (e *Engine) simulate(key string, sig types.Signal, s *Series) (types.SimulatedTrade, *Skip, *Warning) {
	id := sig.Key()
	skip := func(reason SkipReason, detail string, err error) *Skip {
		return &Skip{SignalID: id, Symbol: key, Reason: reason, Detail: detail, Err: err}
	}
	if sig.Side != types.SideBuy {
		return types.SimulatedTrade{}, skip(ReasonUnsupportedSide, string(sig.Side), nil), nil
	}
	if sig.Date.IsZero() || sig.Quantity.IsNegative() || sig.EntryPrice.IsNegative() {
		return types.SimulatedTrade{}, skip(ReasonInvalidSignal, "missing date or negative price/quantity", nil), nil
	}
	entry, ok := s.At(sig.Date)
	if !ok {
		return types.SimulatedTrade{}, skip(ReasonNoEntryCandle, market.FormatDate(sig.Date), nil), nil
	}

	var warn *Warning
	rule, mapped := e.rules.Lookup(sig.StrategyCode)
	if !mapped {
		rule = exitplan.UnmappedFallback
		warn = &Warning{
			SignalID:     id,
			StrategyCode: sig.StrategyCode,
			Message:      fmt.Sprintf("unmapped strategy code %q, falling back to stop-only", sig.StrategyCode),
		}
		logger.Warnf("[simulation] signal %s: %s", id, warn.Message)
	}

	exit, ok := FindExit(rule, sig, s.After(entry.Date), e.holdingDays)
	if !ok {
		return types.SimulatedTrade{}, skip(ReasonOpenPosition, rule.String(), nil), warn
	}
	if sig.EntryPrice.IsZero() {
		err := &ComputationError{SignalID: id, Reason: "entry price is zero, pnl% undefined"}
		return types.SimulatedTrade{}, skip(ReasonComputation, err.Error(), err), warn
	}
	diff := exit.Price.Sub(sig.EntryPrice)
	return types.SimulatedTrade{
		SignalID:     id,
		Symbol:       key,
		StrategyCode: sig.StrategyCode,
		EntryDate:    entry.Date,
		EntryPrice:   sig.EntryPrice,
		ExitDate:     exit.Date,
		ExitPrice:    exit.Price,
		Quantity:     sig.Quantity,
		PnL:          decimal.NewNullDecimal(diff.Mul(sig.Quantity)),
		PnLPct:       decimal.NewNullDecimal(diff.Div(sig.EntryPrice)),
		ExitReason:   exit.Reason,
	}, nil, warn
}
