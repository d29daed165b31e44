package gateway

import (
	"fmt"
	"strings"

	"stratlab/internal/config"
	"stratlab/internal/gateway/binance"
	"stratlab/internal/gateway/fmp"
	"stratlab/internal/market"
)

// NewFeedFromConfig 构造 Source B；provider 为 none 时返回 nil, nil。
func NewFeedFromConfig(cfg config.FeedConfig) (market.CandleSource, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	var (
		src market.CandleSource
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "binance", "binance-futures":
		src, err = binance.New(binance.Config{
			RESTBaseURL: cfg.BaseURL,
			HTTPTimeout: cfg.Timeout(),
			ProxyURL:    cfg.ProxyURL,
		})
	case "fmp":
		src, err = fmp.New(fmp.Config{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			HTTPTimeout: cfg.Timeout(),
		})
	default:
		return nil, fmt.Errorf("unsupported feed provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Guard(src, cfg.RateLimitPerMin, cfg.Timeout()), nil
}
