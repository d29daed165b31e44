package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason 记录模拟平仓的触发原因。
type ExitReason string

const (
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonTarget     ExitReason = "target"
	ExitReasonTime       ExitReason = "time"
	ExitReasonLastCandle ExitReason = "last_candle"
)

// SimulatedTrade 是由单个信号推演出的已平仓交易。ExitDate 严格晚于 EntryDate。
// PnL/PnLPct 为可空值：从存储恢复的历史记录可能缺失盈亏。
type SimulatedTrade struct {
	SignalID     string              `json:"signal_id"`
	Symbol       string              `json:"symbol"`
	StrategyCode string              `json:"strategy_code"`
	EntryDate    time.Time           `json:"entry_date"`
	EntryPrice   decimal.Decimal     `json:"entry_price"`
	ExitDate     time.Time           `json:"exit_date"`
	ExitPrice    decimal.Decimal     `json:"exit_price"`
	Quantity     decimal.Decimal     `json:"quantity"`
	PnL          decimal.NullDecimal `json:"pnl"`
	PnLPct       decimal.NullDecimal `json:"pnl_pct"`
	ExitReason   ExitReason          `json:"exit_reason"`
}

// HoldingDays 返回自然日持仓天数。
func (t SimulatedTrade) HoldingDays() int {
	return int(t.ExitDate.Sub(t.EntryDate).Hours() / 24)
}
