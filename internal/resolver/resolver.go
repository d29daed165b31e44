package resolver

import (
	"context"
	"sync"
	"time"

	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/circuit"
	"stratlab/internal/pkg/symbol"

	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrent = 4

// Skip reasons reported when Source B is not consulted.
const (
	SkipCovered     = "covered"
	SkipPolicy      = "policy"
	SkipBreakerOpen = "breaker_open"
	SkipNoFeed      = "no_feed"
)

// Resolution 是一次解析的结果；Candles 为空表示两个源都没有数据（DataUnavailable）。
type Resolution struct {
	Symbol         string          `json:"symbol"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	Mode           string          `json:"mode"`
	Candles        []market.Candle `json:"candles"`
	CanonicalCount int             `json:"canonical_count"`
	FeedCount      int             `json:"feed_count"`
	FeedAttempted  bool            `json:"feed_attempted"`
	FeedSkipped    string          `json:"feed_skipped,omitempty"`
	FeedError      string          `json:"feed_error,omitempty"`
	Stale          bool            `json:"stale"`
}

// LastDate 返回合并后序列的最后日期。
func (r Resolution) LastDate() (time.Time, bool) {
	return market.LastDate(r.Candles)
}

type Option func(*Resolver)

// WithClock 注入"今天"的来源，便于测试覆盖判断。
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

func WithMaxConcurrent(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// Resolver 合并规范库（Source A）与外部源（Source B），外部源调用受 per-symbol 熔断器保护。
type Resolver struct {
	canonical     market.CandleSource
	feed          market.CandleSource
	tracker       *circuit.Tracker
	policy        Policy
	maxConcurrent int
	now           func() time.Time
}

// New 构造 Resolver；feed 可为 nil，tracker 为 nil 时使用默认阈值。
func New(canonical market.CandleSource, feed market.CandleSource, tracker *circuit.Tracker, opts ...Option) *Resolver {
	if tracker == nil {
		tracker = circuit.NewTracker(circuit.DefaultThreshold, circuit.DefaultCooldown)
	}
	r := &Resolver{
		canonical:     canonical,
		feed:          feed,
		tracker:       tracker,
		policy:        ScreeningPolicy(true),
		maxConcurrent: defaultMaxConcurrent,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// WithPolicy 返回共享同一数据源与熔断器、但使用不同策略的视图。
func (r *Resolver) WithPolicy(p Policy) *Resolver {
	cp := *r
	cp.policy = p
	return &cp
}

func (r *Resolver) Policy() Policy            { return r.policy }
func (r *Resolver) Tracker() *circuit.Tracker { return r.tracker }

// Resolve 返回 [from, to] 内按日期升序、无重复的 K 线，从不返回错误。
func (r *Resolver) Resolve(ctx context.Context, sym string, from, to time.Time) Resolution {
	key := symbol.Normalize(sym)
	from, to = market.Day(from), market.Day(to)
	res := Resolution{Symbol: key, From: from, To: to, Mode: r.policy.Mode.String()}
	if key == "" || to.IsZero() || (!from.IsZero() && to.Before(from)) {
		return res
	}

	primary := r.fetchCanonical(ctx, key, from, to)
	res.CanonicalCount = len(primary)

	end := to
	if today := market.Day(r.now()); today.Before(end) {
		end = today
	}
	lastA, hasA := market.LastDate(primary)
	if hasA && !lastA.Before(end) {
		res.Candles = primary
		res.FeedSkipped = SkipCovered
		return res
	}

	gapFrom := from
	if hasA {
		gapFrom = market.NextDay(lastA)
	}
	// 缺口只含周末时股票没有新日线，不视为过期；加密货币仍可从外部源补齐。
	tradingGap := market.HasWeekday(gapFrom, end)
	if r.policy.CheckStaleness && tradingGap {
		res.Stale = true
		logger.Warnf("[resolver] %s canonical data stale: last=%s want=%s", key, market.FormatDate(lastA), market.FormatDate(end))
	}

	secondary := r.fillGap(ctx, key, gapFrom, to, tradingGap, &res)
	res.FeedCount = countFilled(primary, secondary)
	res.Candles = Merge(primary, secondary)
	if len(res.Candles) == 0 {
		logger.Infof("[resolver] %s no data for %s..%s", key, market.FormatDate(from), market.FormatDate(to))
	}
	return res
}

func (r *Resolver) fetchCanonical(ctx context.Context, key string, from, to time.Time) []market.Candle {
	if r.canonical == nil {
		return nil
	}
	candles, err := r.canonical.Candles(ctx, key, from, to)
	if err != nil {
		logger.Errorf("[resolver] %s canonical source %s failed: %v", key, r.canonical.Name(), err)
		return nil
	}
	out, _ := clip(key, candles, from, to)
	return out
}

// fillGap 在策略与熔断器允许时调用外部源，并记录成功/失败。
// tradingGap 为 false 时（缺口只有周末），空结果不计为失败。
func (r *Resolver) fillGap(ctx context.Context, key string, from, to time.Time, tradingGap bool, res *Resolution) []market.Candle {
	switch {
	case r.policy.Mode == ModeBacktest && !r.policy.AllowFeed:
		res.FeedSkipped = SkipPolicy
		return nil
	case r.feed == nil:
		res.FeedSkipped = SkipNoFeed
		return nil
	case r.tracker.IsOpen(key):
		res.FeedSkipped = SkipBreakerOpen
		logger.Debugf("[resolver] %s feed skipped: circuit open", key)
		return nil
	}
	res.FeedAttempted = true
	candles, err := r.feed.Candles(ctx, key, from, to)
	if err != nil {
		r.tracker.RecordFailure(key)
		res.FeedError = err.Error()
		logger.Warnf("[resolver] %s feed %s failed: %v", key, r.feed.Name(), err)
		return nil
	}
	candles, dropped := clip(key, candles, from, to)
	if len(candles) == 0 {
		if !tradingGap && dropped == 0 {
			logger.Debugf("[resolver] %s feed has no candles for non-trading days %s..%s", key, market.FormatDate(from), market.FormatDate(to))
			return nil
		}
		r.tracker.RecordFailure(key)
		res.FeedError = "empty result"
		logger.Warnf("[resolver] %s feed %s returned no candles for %s..%s", key, r.feed.Name(), market.FormatDate(from), market.FormatDate(to))
		return nil
	}
	r.tracker.RecordSuccess(key)
	return candles
}

// ResolveMany 并发解析相互独立的多个 symbol。
func (r *Resolver) ResolveMany(ctx context.Context, symbols []string, from, to time.Time) map[string]Resolution {
	keys := symbol.NormalizeList(symbols)
	out := make(map[string]Resolution, len(keys))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)
	for _, key := range keys {
		g.Go(func() error {
			res := r.Resolve(ctx, key, from, to)
			mu.Lock()
			out[key] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// clip 去掉范围外或 symbol 不匹配的 K 线。
func clip(key string, candles []market.Candle, from, to time.Time) ([]market.Candle, int) {
	out, dropped := market.Clip(key, candles, from, to)
	if dropped > 0 {
		logger.Warnf("[resolver] %s dropped %d candles with mismatched symbol", key, dropped)
	}
	return out, dropped
}

func countFilled(primary, secondary []market.Candle) int {
	if len(secondary) == 0 {
		return 0
	}
	seen := make(map[time.Time]struct{}, len(primary))
	for _, c := range primary {
		seen[c.Date] = struct{}{}
	}
	n := 0
	for _, c := range secondary {
		if _, ok := seen[c.Date]; !ok {
			seen[c.Date] = struct{}{}
			n++
		}
	}
	return n
}
