package performance

import (
	"sort"
	"time"

	"stratlab/internal/types"

	"github.com/shopspring/decimal"
)

// DefaultStartingCapitalUnits 在调用方未提供初始资金时使用。
const DefaultStartingCapitalUnits = 100000

func DefaultStartingCapital() decimal.Decimal {
	return decimal.NewFromInt(DefaultStartingCapitalUnits)
}

// EquityPoint 是某笔交易平仓后的累计权益。
type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
	Peak   decimal.Decimal `json:"peak"`
	// Drawdown 为相对峰值的回撤比例，范围 [0, 1]。
	Drawdown decimal.Decimal `json:"drawdown"`
}

// Summary 是交易集合与初始资金的纯函数结果，不做持久化。
type Summary struct {
	TotalTrades     int             `json:"total_trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         decimal.Decimal `json:"win_rate"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
	FinalEquity     decimal.Decimal `json:"final_equity"`
	ReturnPct       decimal.Decimal `json:"return_pct"`
	EquityCurve     []EquityPoint   `json:"equity_curve"`
}

// Summarize 计算胜率、总盈亏、权益曲线与最大回撤。
// startingCapital <= 0 时使用 DefaultStartingCapital。
// PnL 为空的交易计入总笔数，但不参与求和，也不产生权益点。
func Summarize(trades []types.SimulatedTrade, startingCapital decimal.Decimal) Summary {
	if !startingCapital.IsPositive() {
		startingCapital = DefaultStartingCapital()
	}
	s := Summary{
		TotalTrades:     len(trades),
		WinRate:         decimal.Zero,
		TotalPnL:        decimal.Zero,
		MaxDrawdown:     decimal.Zero,
		StartingCapital: startingCapital,
		FinalEquity:     startingCapital,
		ReturnPct:       decimal.Zero,
		EquityCurve:     []EquityPoint{},
	}
	if len(trades) == 0 {
		return s
	}

	for _, t := range trades {
		if !t.PnL.Valid {
			continue
		}
		s.TotalPnL = s.TotalPnL.Add(t.PnL.Decimal)
		switch {
		case t.PnL.Decimal.IsPositive():
			s.Wins++
		case t.PnL.Decimal.IsNegative():
			s.Losses++
		}
	}
	s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(s.TotalTrades)))

	s.EquityCurve = equityCurve(trades, startingCapital)
	s.MaxDrawdown = maxDrawdown(s.EquityCurve)
	if n := len(s.EquityCurve); n > 0 {
		s.FinalEquity = s.EquityCurve[n-1].Equity
	}
	s.ReturnPct = s.FinalEquity.Sub(startingCapital).Div(startingCapital)
	return s
}

// equityCurve 按平仓日稳定排序，同日平仓的交易各自产生一个点。
func equityCurve(trades []types.SimulatedTrade, startingCapital decimal.Decimal) []EquityPoint {
	sorted := make([]types.SimulatedTrade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ExitDate.Before(sorted[j].ExitDate) })

	curve := make([]EquityPoint, 0, len(sorted))
	equity := startingCapital
	peak := startingCapital
	for _, t := range sorted {
		if !t.PnL.Valid {
			continue
		}
		equity = equity.Add(t.PnL.Decimal)
		if equity.GreaterThanOrEqual(peak) {
			peak = equity
		}
		curve = append(curve, EquityPoint{
			Date:     t.ExitDate,
			Equity:   equity,
			Peak:     peak,
			Drawdown: drawdown(peak, equity),
		})
	}
	return curve
}

func maxDrawdown(curve []EquityPoint) decimal.Decimal {
	maxDD := decimal.Zero
	for _, p := range curve {
		if p.Drawdown.GreaterThan(maxDD) {
			maxDD = p.Drawdown
		}
	}
	return maxDD
}

// drawdown 截断到 [0, 1]；峰值非正时回撤视为 1。
func drawdown(peak, equity decimal.Decimal) decimal.Decimal {
	if !peak.IsPositive() {
		return decimal.NewFromInt(1)
	}
	dd := peak.Sub(equity).Div(peak)
	if dd.IsNegative() {
		return decimal.Zero
	}
	if dd.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return dd
}
