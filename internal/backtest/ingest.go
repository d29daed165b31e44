package backtest

import (
	"context"
	"fmt"
	"time"

	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/circuit"
	"stratlab/internal/pkg/symbol"
)

// CandleWriter 是规范库的写入面。
type CandleWriter interface {
	Upsert(ctx context.Context, candles []market.Candle, source string) (int, error)
	LatestDate(ctx context.Context, symbol string) (time.Time, bool, error)
}

// SyncResult 描述一次入库同步。
type SyncResult struct {
	Symbol   string    `json:"symbol"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Fetched  int       `json:"fetched"`
	Written  int       `json:"written"`
	UpToDate bool      `json:"up_to_date"`
}

// Ingestor 将外部源的日线写入规范库，只补最新日期之后的部分。
type Ingestor struct {
	feed    market.CandleSource
	store   CandleWriter
	tracker *circuit.Tracker
}

func NewIngestor(feed market.CandleSource, store CandleWriter, tracker *circuit.Tracker) *Ingestor {
	return &Ingestor{feed: feed, store: store, tracker: tracker}
}

func (i *Ingestor) Sync(ctx context.Context, sym string, from, to time.Time) (SyncResult, error) {
	key := symbol.Normalize(sym)
	res := SyncResult{Symbol: key, From: market.Day(from), To: market.Day(to)}
	if i == nil || i.feed == nil {
		return res, fmt.Errorf("no external feed configured")
	}
	if i.store == nil {
		return res, fmt.Errorf("candle store 未初始化")
	}
	if key == "" {
		return res, fmt.Errorf("symbol is required")
	}
	if res.To.IsZero() {
		res.To = market.Day(time.Now())
	}
	latest, ok, err := i.store.LatestDate(ctx, key)
	if err != nil {
		return res, err
	}
	if ok && !latest.Before(res.From) {
		res.From = market.NextDay(latest)
	}
	if res.From.After(res.To) {
		res.UpToDate = true
		return res, nil
	}
	if i.tracker != nil && i.tracker.IsOpen(key) {
		return res, fmt.Errorf("feed circuit open for %s", key)
	}
	log := logger.With("component", "ingest", "symbol", key, "feed", i.feed.Name())
	fetched, err := i.feed.Candles(ctx, key, res.From, res.To)
	if err != nil {
		i.recordFailure(key)
		return res, err
	}
	res.Fetched = len(fetched)
	// 只写入窗口内、symbol 匹配的 K 线，避免覆盖规范库已有日期。
	candles, dropped := market.Clip(key, fetched, res.From, res.To)
	if dropped > 0 {
		log.Warn("dropped candles with mismatched symbol", "count", dropped)
	}
	if len(candles) == 0 {
		i.recordFailure(key)
		return res, fmt.Errorf("feed %s returned no usable candles for %s %s..%s",
			i.feed.Name(), key, market.FormatDate(res.From), market.FormatDate(res.To))
	}
	if i.tracker != nil {
		i.tracker.RecordSuccess(key)
	}
	if res.Written, err = i.store.Upsert(ctx, candles, i.feed.Name()); err != nil {
		return res, err
	}
	log.Info("synced candles", "written", res.Written, "from", market.FormatDate(res.From), "to", market.FormatDate(res.To))
	return res, nil
}

func (i *Ingestor) recordFailure(key string) {
	if i.tracker != nil {
		i.tracker.RecordFailure(key)
	}
}
