package backtest

import (
	"time"

	"stratlab/internal/analysis/performance"
	"stratlab/internal/simulation"
	"stratlab/internal/types"

	"github.com/shopspring/decimal"
)

const (
	RunStatusDone   = "done"
	RunStatusFailed = "failed"
)

// RunConfig 记录本次模拟的参数快照，便于重放。
type RunConfig struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	Symbols         []string        `json:"symbols"`
	AllowFeed       bool            `json:"allow_feed"`
	HoldingDays     int             `json:"holding_days"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
	Notes           string          `json:"notes,omitempty"`
}

// SymbolCoverage 汇总单个标的的 K 线解析情况。
type SymbolCoverage struct {
	Symbol      string `json:"symbol"`
	Candles     int    `json:"candles"`
	FromFeed    int    `json:"from_feed"`
	Stale       bool   `json:"stale"`
	FeedSkipped string `json:"feed_skipped,omitempty"`
	FeedError   string `json:"feed_error,omitempty"`
}

// Run 表示一次回测。Summary 总是由 Trades 重新计算得到。
type Run struct {
	ID          string                 `json:"id"`
	Status      string                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	Config      RunConfig              `json:"config"`
	Coverage    []SymbolCoverage       `json:"coverage"`
	Report      simulation.Report      `json:"report"`
	Summary     performance.Summary    `json:"summary"`
	Trades      []types.SimulatedTrade `json:"trades,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt time.Time              `json:"completed_at"`
}

// RunRequest 为 HTTP/CLI 提交使用。From/To 为空时由信号日期推断。
type RunRequest struct {
	Signals         []types.Signal `json:"signals" binding:"required"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	StartingCapital float64        `json:"starting_capital"`
	Notes           string         `json:"notes"`
}
