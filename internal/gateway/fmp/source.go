package fmp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"stratlab/internal/market"
	symbolpkg "stratlab/internal/pkg/symbol"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://financialmodelingprep.com/api/v3"

// Config represents the configuration for the FMP daily feed.
type Config struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

// Source fetches end-of-day bars from Financial Modeling Prep.
type Source struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

var _ market.CandleSource = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("fmp: api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{baseURL: base, apiKey: key, httpc: &http.Client{Timeout: timeout}}, nil
}

func (s *Source) Name() string { return "fmp" }

// Candles fetches daily history for symbol within [from, to].
func (s *Source) Candles(ctx context.Context, symbol string, from, to time.Time) ([]market.Candle, error) {
	key := symbolpkg.Normalize(symbol)
	if key == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	params := url.Values{}
	params.Add("apikey", s.apiKey)
	if !from.IsZero() {
		params.Add("from", market.FormatDate(from))
	}
	if !to.IsZero() {
		params.Add("to", market.FormatDate(to))
	}
	endpoint := fmt.Sprintf("%s/historical-price-full/%s?%s", s.baseURL, url.PathEscape(key), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching daily history for %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fmp %s: status %d: %s", key, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("fmp %s: invalid json payload", key)
	}
	return ParseHistorical(body, key)
}

// ParseHistorical parses a historical-price-full payload into ascending candles.
// The payload symbol must match the requested one.
func ParseHistorical(body []byte, symbol string) ([]market.Candle, error) {
	root := gjson.ParseBytes(body)
	if msg := root.Get("Error Message"); msg.Exists() {
		return nil, fmt.Errorf("fmp %s: %s", symbol, msg.String())
	}
	// 无数据时 FMP 返回 {}
	if !root.Get("historical").Exists() {
		return nil, nil
	}
	if got := root.Get("symbol").String(); got != "" && !symbolpkg.Equal(got, symbol) {
		return nil, fmt.Errorf("fmp: symbol mismatch, requested %s got %s", symbol, got)
	}
	rows := root.Get("historical").Array()
	out := make([]market.Candle, 0, len(rows))
	for idx := range rows {
		row := rows[idx]
		dt, err := market.ParseDate(row.Get("date").String())
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick date: %w", err)
		}
		c := market.Candle{Symbol: symbol, Date: dt, Volume: row.Get("volume").Int()}
		for _, f := range []struct {
			name string
			dst  *decimal.Decimal
		}{{"open", &c.Open}, {"high", &c.High}, {"low", &c.Low}, {"close", &c.Close}} {
			v, err := decimal.NewFromString(row.Get(f.name).Raw)
			if err != nil {
				return nil, fmt.Errorf("fmp %s@%s: bad %s %q", symbol, market.FormatDate(dt), f.name, row.Get(f.name).Raw)
			}
			*f.dst = v
		}
		out = append(out, c)
	}
	// FMP 默认按日期倒序
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
