package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stratlab/internal/market"
	symbolpkg "stratlab/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	maxHistoryLimit = 1500
	dailyInterval   = "1d"
)

// Source 基于 go-binance SDK 拉取 U 本位合约日线，实现 market.CandleSource。
type Source struct {
	cfg    Config
	client *futures.Client
	now    func() time.Time
}

var _ market.CandleSource = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client, now: time.Now}, nil
}

func (s *Source) Name() string { return "binance" }

// Candles 分页拉取 [from, to] 内已收盘的日线。
func (s *Source) Candles(ctx context.Context, symbol string, from, to time.Time) ([]market.Candle, error) {
	key := symbolpkg.Normalize(symbol)
	if key == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance requires symbols without slashes (e.g., ETHUSDT)
	clean := symbolpkg.ToBinance(key)
	from, to = market.Day(from), market.Day(to)
	if to.IsZero() {
		to = market.Day(s.now())
	}
	if to.Before(from) {
		return nil, nil
	}
	endMs := to.AddDate(0, 0, 1).UnixMilli() - 1
	nowMs := s.now().UnixMilli()

	var out []market.Candle
	cursor := from.UnixMilli()
	for cursor <= endMs {
		kls, err := s.client.NewKlinesService().
			Symbol(clean).
			Interval(dailyInterval).
			StartTime(cursor).
			EndTime(endMs).
			Limit(maxHistoryLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", clean, err)
		}
		if len(kls) == 0 {
			break
		}
		last := cursor
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			last = kl.OpenTime
			// 丢弃未收盘的当日 K 线
			if kl.CloseTime > nowMs {
				continue
			}
			c, err := toCandle(key, kl)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		if len(kls) < maxHistoryLimit || last < cursor {
			break
		}
		cursor = last + 1
	}
	return out, nil
}

func toCandle(symbol string, kl *futures.Kline) (market.Candle, error) {
	c := market.Candle{
		Symbol: symbol,
		Date:   market.Day(time.UnixMilli(kl.OpenTime)),
	}
	var err error
	if c.Open, err = decimal.NewFromString(kl.Open); err != nil {
		return c, fmt.Errorf("binance kline open %q: %w", kl.Open, err)
	}
	if c.High, err = decimal.NewFromString(kl.High); err != nil {
		return c, fmt.Errorf("binance kline high %q: %w", kl.High, err)
	}
	if c.Low, err = decimal.NewFromString(kl.Low); err != nil {
		return c, fmt.Errorf("binance kline low %q: %w", kl.Low, err)
	}
	if c.Close, err = decimal.NewFromString(kl.Close); err != nil {
		return c, fmt.Errorf("binance kline close %q: %w", kl.Close, err)
	}
	if vol, err := decimal.NewFromString(kl.Volume); err == nil {
		c.Volume = vol.IntPart()
	}
	return c, nil
}
