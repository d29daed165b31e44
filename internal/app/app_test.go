package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stratlab/internal/config"
	"stratlab/internal/market"
	"stratlab/internal/pkg/circuit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STRATLAB_STORE_CANDLE_DB_PATH", filepath.Join(dir, "candles.db"))
	t.Setenv("STRATLAB_STORE_RESULT_DB_DIR", filepath.Join(dir, "runs"))
	t.Setenv("STRATLAB_APP_HTTP_ADDR", "127.0.0.1:0")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuildWithoutFeed(t *testing.T) {
	cfg := loadTestConfig(t)
	app, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	comp := app.Components()
	require.NotNil(t, comp)
	assert.Nil(t, comp.Feed)
	assert.Nil(t, comp.Ingestor)
	assert.NotNil(t, comp.Backtests)
	assert.Equal(t, 3, comp.Engine.HoldingDays())
	assert.False(t, app.Summary.Feed.Enabled)
	assert.NotEmpty(t, app.Summary.ExitRules.Codes)
}

func TestBuildWiresFeedIntoIngestor(t *testing.T) {
	cfg := loadTestConfig(t)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	feed := market.SourceFunc{Label: "fake", Fn: func(_ context.Context, sym string, from, to time.Time) ([]market.Candle, error) {
		px := decimal.NewFromInt(10)
		return []market.Candle{{Symbol: sym, Date: day, Open: px, High: px, Low: px, Close: px, Volume: 5}}, nil
	}}
	app, err := NewAppBuilder(cfg, WithFeed(func(config.FeedConfig) (market.CandleSource, error) {
		return feed, nil
	})).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	comp := app.Components()
	require.NotNil(t, comp.Ingestor)
	ctx := context.Background()
	res, err := comp.Ingestor.Sync(ctx, "aapl", day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)

	candles, err := comp.Candles.Candles(ctx, "AAPL", day, day)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.True(t, candles[0].Close.Equal(decimal.NewFromInt(10)))
}

func TestNewAppRejectsNilConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
	_, err = NewAppBuilder(nil).Build(context.Background())
	assert.Error(t, err)
}

func TestSyncOnceWritesConfiguredSymbols(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Sync.Symbols = []string{"BTCUSDT"}
	cfg.Sync.LookbackDays = 5
	today := market.Day(time.Now())
	var askedFrom time.Time
	feed := market.SourceFunc{Label: "fake", Fn: func(_ context.Context, sym string, from, to time.Time) ([]market.Candle, error) {
		askedFrom = from
		px := decimal.NewFromInt(42)
		return []market.Candle{{Symbol: sym, Date: to, Open: px, High: px, Low: px, Close: px}}, nil
	}}
	app, err := NewAppBuilder(cfg, WithFeed(func(config.FeedConfig) (market.CandleSource, error) {
		return feed, nil
	})).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NotNil(t, app.syncScheduler())
	app.syncOnce(context.Background())
	assert.Equal(t, today.AddDate(0, 0, -5), askedFrom)

	latest, ok, err := app.Components().Candles.LatestDate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, today, latest)
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingNotifier) SendText(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingNotifier) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func TestSyncOnceAlertsOnFailure(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Sync.Symbols = []string{"AAPL"}
	cfg.Sync.LookbackDays = 5
	feed := market.SourceFunc{Label: "down", Fn: func(context.Context, string, time.Time, time.Time) ([]market.Candle, error) {
		return nil, errors.New("upstream 503")
	}}
	app, err := NewAppBuilder(cfg, WithFeed(func(config.FeedConfig) (market.CandleSource, error) {
		return feed, nil
	})).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := &recordingNotifier{}
	app.comp.Notifier = rec
	app.syncOnce(context.Background())

	sent := rec.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "AAPL: upstream 503")
}

func TestBreakerAlertsSendsOnTransition(t *testing.T) {
	rec := &recordingNotifier{}
	handler := breakerAlerts(rec, config.BreakerConfig{FailureThreshold: 3, CooldownSeconds: 60})
	handler("MSFT", circuit.StateClosed, circuit.StateOpen)

	sent := rec.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "MSFT")
	assert.Contains(t, sent[0], "CLOSED -> OPEN")

	// 没有通知器时只记录日志
	breakerAlerts(nil, config.BreakerConfig{})("MSFT", circuit.StateOpen, circuit.StateClosed)
}
