package gateway

import (
	"context"
	"testing"
	"time"

	"stratlab/internal/config"
	"stratlab/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardAppliesTimeout(t *testing.T) {
	slow := market.SourceFunc{Label: "slow", Fn: func(ctx context.Context, _ string, _, _ time.Time) ([]market.Candle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := Guard(slow, 0, 20*time.Millisecond)
	start := time.Now()
	_, err := g.Candles(context.Background(), "AAPL", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "slow", g.Name())
}

func TestGuardRateLimitHonorsContext(t *testing.T) {
	calls := 0
	src := market.SourceFunc{Label: "feed", Fn: func(context.Context, string, time.Time, time.Time) ([]market.Candle, error) {
		calls++
		return nil, nil
	}}
	g := Guard(src, 1, 0)
	_, err := g.Candles(context.Background(), "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Candles(ctx, "AAPL", time.Time{}, time.Time{})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewFeedFromConfig(t *testing.T) {
	src, err := NewFeedFromConfig(config.FeedConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = NewFeedFromConfig(config.FeedConfig{Provider: "binance", TimeoutSeconds: 5, RateLimitPerMin: 120})
	require.NoError(t, err)
	assert.Equal(t, "binance", src.Name())

	src, err = NewFeedFromConfig(config.FeedConfig{Provider: "FMP", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "fmp", src.Name())

	_, err = NewFeedFromConfig(config.FeedConfig{Provider: "fmp"})
	assert.Error(t, err)

	_, err = NewFeedFromConfig(config.FeedConfig{Provider: "yahoo"})
	assert.Error(t, err)
}
