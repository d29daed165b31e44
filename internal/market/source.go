package market

import (
	"context"
	"time"
)

// CandleSource 统一规范库与外部行情源的日线读取行为。
// 实现需返回 [from, to]（含两端）内按日期升序的 K 线。
type CandleSource interface {
	Candles(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error)
	Name() string
}

// SourceFunc 便于测试与轻量适配。
type SourceFunc struct {
	Label string
	Fn    func(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error)
}

func (f SourceFunc) Candles(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	return f.Fn(ctx, symbol, from, to)
}

func (f SourceFunc) Name() string {
	if f.Label == "" {
		return "func"
	}
	return f.Label
}
