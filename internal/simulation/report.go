package simulation

import (
	"errors"
	"fmt"
)

var (
	ErrNilSignals = errors.New("simulation: signal list is nil")
	ErrNilCandles = errors.New("simulation: candle list is nil")
)

// ComputationError 表示单个信号的盈亏无法计算（入场价为 0）。只跳过该信号。
type ComputationError struct {
	SignalID string
	Reason   string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("signal %s: %s", e.SignalID, e.Reason)
}

type SkipReason string

const (
	ReasonNoEntryCandle   SkipReason = "no_entry_candle"
	ReasonOpenPosition    SkipReason = "open_position"
	ReasonComputation     SkipReason = "computation_error"
	ReasonUnsupportedSide SkipReason = "unsupported_side"
	ReasonDuplicate       SkipReason = "duplicate_signal"
	ReasonInvalidSignal   SkipReason = "invalid_signal"
)

// Skip 记录未生成交易的信号。
type Skip struct {
	SignalID string     `json:"signal_id"`
	Symbol   string     `json:"symbol"`
	Reason   SkipReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
	Err      error      `json:"-"`
}

// Warning 用于需要运维关注、但不影响批次的降级，例如未登记的策略代码。
type Warning struct {
	SignalID     string `json:"signal_id"`
	StrategyCode string `json:"strategy_code"`
	Message      string `json:"message"`
}

type Report struct {
	Signals  int       `json:"signals"`
	Trades   int       `json:"trades"`
	Skipped  []Skip    `json:"skipped,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Count 返回指定原因的跳过数量。
func (r Report) Count(reason SkipReason) int {
	n := 0
	for _, s := range r.Skipped {
		if s.Reason == reason {
			n++
		}
	}
	return n
}
