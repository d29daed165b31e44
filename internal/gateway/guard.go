package gateway

import (
	"context"
	"time"

	"stratlab/internal/market"

	"golang.org/x/time/rate"
)

// GuardedSource 为外部行情源加上全局限速与单次调用超时。
type GuardedSource struct {
	inner   market.CandleSource
	limiter *rate.Limiter
	timeout time.Duration
}

var _ market.CandleSource = (*GuardedSource)(nil)

// Guard 包装 src；perMinute<=0 表示不限速，timeout<=0 表示不额外设超时。
func Guard(src market.CandleSource, perMinute int, timeout time.Duration) *GuardedSource {
	g := &GuardedSource{inner: src, timeout: timeout}
	if perMinute > 0 {
		burst := perMinute / 60
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
	return g
}

func (g *GuardedSource) Name() string { return g.inner.Name() }

func (g *GuardedSource) Candles(ctx context.Context, symbol string, from, to time.Time) ([]market.Candle, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return g.inner.Candles(ctx, symbol, from, to)
}
