package config

import (
	"fmt"
	"strings"

	"stratlab/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Feed.validate(); err != nil {
		return err
	}
	if err := c.Breaker.validate(); err != nil {
		return err
	}
	if err := c.Resolver.validate(); err != nil {
		return err
	}
	if err := c.Simulation.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(c.Feed); err != nil {
		return err
	}
	return nil
}

func (s StoreConfig) validate() error {
	if strings.TrimSpace(s.CandleDBPath) == "" {
		return fmt.Errorf("store.candle_db_path cannot be empty")
	}
	if strings.TrimSpace(s.ResultDBDir) == "" {
		return fmt.Errorf("store.result_db_dir cannot be empty")
	}
	return nil
}

func (f FeedConfig) validate() error {
	switch f.Provider {
	case "none", "":
		return nil
	case "binance":
	case "fmp":
		if strings.TrimSpace(f.APIKey) == "" {
			return fmt.Errorf("feed.api_key is required for provider fmp")
		}
	default:
		return fmt.Errorf("feed.provider must be one of binance|fmp|none, got %q", f.Provider)
	}
	if strings.TrimSpace(f.BaseURL) == "" {
		return fmt.Errorf("feed.base_url cannot be empty for provider %s", f.Provider)
	}
	return nil
}

func (b BreakerConfig) validate() error {
	if b.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be > 0")
	}
	if b.CooldownSeconds <= 0 {
		return fmt.Errorf("breaker.cooldown_seconds must be > 0")
	}
	return nil
}

func (r ResolverConfig) validate() error {
	if r.MaxConcurrent <= 0 {
		return fmt.Errorf("resolver.max_concurrent must be > 0")
	}
	return nil
}

func (s SimulationConfig) validate() error {
	if s.HoldingPeriodDays <= 0 {
		return fmt.Errorf("simulation.holding_period_days must be > 0")
	}
	return nil
}

func (s SyncConfig) validate(feed FeedConfig) error {
	if !s.Enabled() {
		return nil
	}
	if !feed.Enabled() {
		return fmt.Errorf("sync.symbols requires feed.provider to be set")
	}
	if _, ok := scheduler.ParseIntervalDuration(s.Interval); !ok {
		return fmt.Errorf("sync.interval %q is invalid", s.Interval)
	}
	return nil
}
