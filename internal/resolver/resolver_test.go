package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stratlab/internal/market"
	"stratlab/internal/pkg/circuit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
	name string
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Candles(ctx context.Context, symbol string, from, to time.Time) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, from, to)
	candles, _ := args.Get(0).([]market.Candle)
	return candles, args.Error(1)
}

func d(s string) time.Time {
	t, err := market.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func bars(sym, closePx string, dates ...string) []market.Candle {
	px := decimal.RequireFromString(closePx)
	out := make([]market.Candle, 0, len(dates))
	for _, ds := range dates {
		out = append(out, market.Candle{Symbol: sym, Date: d(ds), Open: px, High: px, Low: px, Close: px})
	}
	return out
}

func fixedNow(s string) Option {
	return WithClock(func() time.Time { return d(s).Add(15 * time.Hour) })
}

func TestResolveCanonicalCoversRange(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	want := bars("AAPL", "100", "2024-01-02", "2024-01-03", "2024-01-04")
	canon.On("Candles", mock.Anything, "AAPL", d("2024-01-02"), d("2024-01-04")).Return(want, nil)

	r := New(canon, feed, nil, fixedNow("2024-02-01"))
	res := r.Resolve(context.Background(), "aapl", d("2024-01-02"), d("2024-01-04"))

	assert.Equal(t, want, res.Candles)
	assert.False(t, res.FeedAttempted)
	assert.Equal(t, SkipCovered, res.FeedSkipped)
	assert.False(t, res.Stale)
	feed.AssertNotCalled(t, "Candles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	canon.AssertExpectations(t)
}

func TestResolveFutureEndCoveredThroughToday(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "AAPL", mock.Anything, mock.Anything).
		Return(bars("AAPL", "100", "2024-01-08", "2024-01-09"), nil)

	r := New(canon, feed, nil, fixedNow("2024-01-09"))
	res := r.Resolve(context.Background(), "AAPL", d("2024-01-08"), d("2024-01-31"))
	assert.Len(t, res.Candles, 2)
	assert.False(t, res.FeedAttempted)
}

func TestResolveFillsGapAndCanonicalWins(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "MSFT", d("2024-01-02"), d("2024-01-05")).
		Return(bars("MSFT", "300", "2024-01-02", "2024-01-03"), nil)
	// the feed overlaps the canonical range; overlapping dates must be ignored
	feed.On("Candles", mock.Anything, "MSFT", d("2024-01-04"), d("2024-01-05")).
		Return(append(bars("MSFT", "999", "2024-01-03"), bars("MSFT", "310", "2024-01-04", "2024-01-05")...), nil)

	tracker := circuit.NewTracker(3, time.Minute)
	r := New(canon, feed, tracker, fixedNow("2024-02-01"))
	res := r.Resolve(context.Background(), "MSFT", d("2024-01-02"), d("2024-01-05"))

	require.Len(t, res.Candles, 4)
	assert.True(t, res.FeedAttempted)
	assert.Equal(t, 2, res.CanonicalCount)
	assert.Equal(t, 2, res.FeedCount)
	assert.True(t, res.Stale)
	assert.True(t, res.Candles[1].Close.Equal(decimal.RequireFromString("300")))
	assert.True(t, res.Candles[3].Close.Equal(decimal.RequireFromString("310")))
	for i := 1; i < len(res.Candles); i++ {
		assert.True(t, res.Candles[i-1].Date.Before(res.Candles[i].Date))
	}
	feed.AssertExpectations(t)
}

func TestResolveNoCanonicalUsesWholeRange(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "BTC/USDT", mock.Anything, mock.Anything).Return(nil, errors.New("disk gone"))
	feed.On("Candles", mock.Anything, "BTC/USDT", d("2024-01-01"), d("2024-01-02")).
		Return(bars("BTCUSDT", "42000", "2024-01-01", "2024-01-02"), nil)

	r := New(canon, feed, nil, fixedNow("2024-02-01"))
	res := r.Resolve(context.Background(), "btc/usdt", d("2024-01-01"), d("2024-01-02"))
	require.Len(t, res.Candles, 2)
	assert.Equal(t, "BTC/USDT", res.Candles[0].Symbol)
	assert.Equal(t, 0, res.CanonicalCount)
}

func TestResolveFeedFailuresOpenBreaker(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "TSLA", mock.Anything, mock.Anything).Return(nil, nil)
	feed.On("Candles", mock.Anything, "TSLA", mock.Anything, mock.Anything).Return(nil, errors.New("429")).Once()
	feed.On("Candles", mock.Anything, "TSLA", mock.Anything, mock.Anything).Return([]market.Candle{}, nil).Twice()

	tracker := circuit.NewTracker(3, time.Minute)
	r := New(canon, feed, tracker, fixedNow("2024-02-01"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := r.Resolve(ctx, "TSLA", d("2024-01-02"), d("2024-01-05"))
		assert.True(t, res.FeedAttempted)
		assert.Empty(t, res.Candles)
		assert.NotEmpty(t, res.FeedError)
	}
	assert.True(t, tracker.IsOpen("TSLA"))

	res := r.Resolve(ctx, "TSLA", d("2024-01-02"), d("2024-01-05"))
	assert.False(t, res.FeedAttempted)
	assert.Equal(t, SkipBreakerOpen, res.FeedSkipped)
	feed.AssertNumberOfCalls(t, "Candles", 3)
}

func TestResolveFeedSuccessResetsBreaker(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "NVDA", mock.Anything, mock.Anything).Return(nil, nil)
	feed.On("Candles", mock.Anything, "NVDA", mock.Anything, mock.Anything).Return(bars("NVDA", "500", "2024-01-02"), nil)

	tracker := circuit.NewTracker(3, time.Minute)
	tracker.RecordFailure("NVDA")
	tracker.RecordFailure("NVDA")
	r := New(canon, feed, tracker, fixedNow("2024-02-01"))
	res := r.Resolve(context.Background(), "NVDA", d("2024-01-02"), d("2024-01-02"))
	require.Len(t, res.Candles, 1)
	assert.Equal(t, 0, tracker.Snapshot("NVDA").Failures)
}

func TestResolveFeedSymbolMismatchIsFailure(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "AMD", mock.Anything, mock.Anything).Return(nil, nil)
	feed.On("Candles", mock.Anything, "AMD", mock.Anything, mock.Anything).Return(bars("AMZN", "150", "2024-01-02"), nil)

	tracker := circuit.NewTracker(3, time.Minute)
	r := New(canon, feed, tracker, fixedNow("2024-02-01"))
	res := r.Resolve(context.Background(), "AMD", d("2024-01-02"), d("2024-01-02"))
	assert.Empty(t, res.Candles)
	assert.Equal(t, 1, tracker.Snapshot("AMD").Failures)
}

func TestBacktestPolicySkipsFeed(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "SPY", mock.Anything, mock.Anything).Return(bars("SPY", "470", "2024-01-02"), nil)

	base := New(canon, feed, nil, fixedNow("2024-02-01"))
	res := base.WithPolicy(BacktestPolicy(false)).Resolve(context.Background(), "SPY", d("2024-01-02"), d("2024-01-10"))
	assert.Len(t, res.Candles, 1)
	assert.Equal(t, SkipPolicy, res.FeedSkipped)
	assert.Equal(t, "backtest", res.Mode)
	assert.False(t, res.Stale)
	feed.AssertNotCalled(t, "Candles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// the base resolver keeps its own policy
	assert.Equal(t, ModeScreening, base.Policy().Mode)
}

func TestScreeningWithoutStalenessCheck(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	canon.On("Candles", mock.Anything, "SPY", mock.Anything, mock.Anything).Return(bars("SPY", "470", "2024-01-02"), nil)
	r := New(canon, nil, nil, fixedNow("2024-02-01"), WithPolicy(ScreeningPolicy(false)))
	res := r.Resolve(context.Background(), "SPY", d("2024-01-02"), d("2024-01-10"))
	assert.False(t, res.Stale)
	assert.Equal(t, SkipNoFeed, res.FeedSkipped)
}

func TestResolveInvalidRange(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	r := New(canon, nil, nil)
	res := r.Resolve(context.Background(), "SPY", d("2024-01-10"), d("2024-01-02"))
	assert.Empty(t, res.Candles)
	canon.AssertNotCalled(t, "Candles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveManyConcurrent(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	canon := market.SourceFunc{Label: "canonical", Fn: func(_ context.Context, sym string, from, to time.Time) ([]market.Candle, error) {
		mu.Lock()
		calls[sym]++
		mu.Unlock()
		return bars(sym, "10", "2024-01-02", "2024-01-03"), nil
	}}
	r := New(canon, nil, nil, fixedNow("2024-02-01"), WithMaxConcurrent(2))
	out := r.ResolveMany(context.Background(), []string{"aapl", "MSFT", "AAPL", "spy"}, d("2024-01-02"), d("2024-01-03"))
	require.Len(t, out, 3)
	for _, sym := range []string{"AAPL", "MSFT", "SPY"} {
		assert.Len(t, out[sym].Candles, 2, sym)
		assert.Equal(t, 1, calls[sym])
	}
}

func TestResolveWeekendGapIsNotStale(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	// Mon 01-08 .. Fri 01-12; 01-13/01-14 are a weekend
	canon.On("Candles", mock.Anything, "AAPL", mock.Anything, mock.Anything).
		Return(bars("AAPL", "185", "2024-01-08", "2024-01-09", "2024-01-10", "2024-01-11", "2024-01-12"), nil)
	feed.On("Candles", mock.Anything, "AAPL", d("2024-01-13"), d("2024-01-14")).Return([]market.Candle{}, nil)

	tracker := circuit.NewTracker(3, time.Minute)
	r := New(canon, feed, tracker, fixedNow("2024-02-01"))
	for i := 0; i < 4; i++ {
		res := r.Resolve(context.Background(), "AAPL", d("2024-01-08"), d("2024-01-14"))
		assert.Len(t, res.Candles, 5)
		assert.False(t, res.Stale)
		assert.Empty(t, res.FeedError)
	}
	assert.Equal(t, 0, tracker.Snapshot("AAPL").Failures)
	assert.False(t, tracker.IsOpen("AAPL"))
}

func TestResolveWeekendGapStillFilledByFeed(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "BTC/USDT", mock.Anything, mock.Anything).
		Return(bars("BTC/USDT", "42000", "2024-01-12"), nil)
	feed.On("Candles", mock.Anything, "BTC/USDT", d("2024-01-13"), d("2024-01-14")).
		Return(bars("BTCUSDT", "43000", "2024-01-13", "2024-01-14"), nil)

	r := New(canon, feed, nil, fixedNow("2024-02-01"))
	res := r.Resolve(context.Background(), "BTC/USDT", d("2024-01-12"), d("2024-01-14"))
	require.Len(t, res.Candles, 3)
	assert.Equal(t, 2, res.FeedCount)
	assert.False(t, res.Stale)
}

func TestResolveWeekendGapMismatchStillFails(t *testing.T) {
	canon := &mockSource{name: "canonical"}
	feed := &mockSource{name: "feed"}
	canon.On("Candles", mock.Anything, "AMD", mock.Anything, mock.Anything).Return(bars("AMD", "140", "2024-01-12"), nil)
	feed.On("Candles", mock.Anything, "AMD", mock.Anything, mock.Anything).Return(bars("AMZN", "150", "2024-01-13"), nil)

	tracker := circuit.NewTracker(3, time.Minute)
	r := New(canon, feed, tracker, fixedNow("2024-02-01"))
	res := r.Resolve(context.Background(), "AMD", d("2024-01-12"), d("2024-01-14"))
	assert.Len(t, res.Candles, 1)
	assert.Equal(t, "empty result", res.FeedError)
	assert.Equal(t, 1, tracker.Snapshot("AMD").Failures)
}
