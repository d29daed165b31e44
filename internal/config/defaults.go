package config

import "strings"

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9992"
	defaultCandleDBPath      = "data/candles.db"
	defaultResultDBDir       = "data/backtest"
	defaultFeedProvider      = "none"
	defaultBinanceREST       = "https://fapi.binance.com"
	defaultFMPREST           = "https://financialmodelingprep.com/api/v3"
	defaultFeedTimeout       = 10
	defaultFeedRatePerMin    = 240
	defaultFailureThreshold  = 3
	defaultCooldownSeconds   = 60
	defaultResolverMaxConc   = 4
	defaultHoldingPeriodDays = 3
	defaultStartingCapital   = 100000
	defaultSyncInterval      = "1d"
	defaultSyncOffsetMinutes = 30
	defaultSyncLookbackDays  = 365
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Feed.applyDefaults(keys)
	c.Breaker.applyDefaults(keys)
	c.Resolver.applyDefaults(keys)
	c.Simulation.applyDefaults(keys)
	c.Analytics.applyDefaults(keys)
	c.Sync.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.candle_db_path", &s.CandleDBPath, defaultCandleDBPath),
		stringFieldDefault("store.result_db_dir", &s.ResultDBDir, defaultResultDBDir),
	)
}

func (f *FeedConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("feed.provider", &f.Provider, defaultFeedProvider),
		fieldDefault{
			key:   "feed.timeout_seconds",
			need:  func() bool { return f.TimeoutSeconds <= 0 },
			apply: func() { f.TimeoutSeconds = defaultFeedTimeout },
		},
		fieldDefault{
			key:   "feed.rate_limit_per_min",
			need:  func() bool { return f.RateLimitPerMin <= 0 },
			apply: func() { f.RateLimitPerMin = defaultFeedRatePerMin },
		},
	)
	f.Provider = strings.ToLower(strings.TrimSpace(f.Provider))
	if strings.TrimSpace(f.BaseURL) == "" {
		switch f.Provider {
		case "binance":
			f.BaseURL = defaultBinanceREST
		case "fmp":
			f.BaseURL = defaultFMPREST
		}
	}
}

func (b *BreakerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "breaker.failure_threshold",
			need:  func() bool { return b.FailureThreshold <= 0 },
			apply: func() { b.FailureThreshold = defaultFailureThreshold },
		},
		fieldDefault{
			key:   "breaker.cooldown_seconds",
			need:  func() bool { return b.CooldownSeconds <= 0 },
			apply: func() { b.CooldownSeconds = defaultCooldownSeconds },
		},
	)
}

func (r *ResolverConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("resolver.backtest_allow_feed", &r.BacktestAllowFeed, true),
		boolFieldDefault("resolver.screening_staleness_check", &r.ScreeningStalenessCheck, true),
		fieldDefault{
			key:   "resolver.max_concurrent",
			need:  func() bool { return r.MaxConcurrent <= 0 },
			apply: func() { r.MaxConcurrent = defaultResolverMaxConc },
		},
	)
}

func (s *SimulationConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "simulation.holding_period_days",
			need:  func() bool { return s.HoldingPeriodDays <= 0 },
			apply: func() { s.HoldingPeriodDays = defaultHoldingPeriodDays },
		},
	)
	s.ExitRulesPath = strings.TrimSpace(s.ExitRulesPath)
}

func (a *AnalyticsConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "analytics.starting_capital",
			need:  func() bool { return a.StartingCapital <= 0 },
			apply: func() { a.StartingCapital = defaultStartingCapital },
		},
	)
}

func (s *SyncConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("sync.interval", &s.Interval, defaultSyncInterval),
		fieldDefault{
			key:   "sync.offset_minutes",
			need:  func() bool { return s.OffsetMinutes <= 0 },
			apply: func() { s.OffsetMinutes = defaultSyncOffsetMinutes },
		},
		fieldDefault{
			key:   "sync.lookback_days",
			need:  func() bool { return s.LookbackDays <= 0 },
			apply: func() { s.LookbackDays = defaultSyncLookbackDays },
		},
	)
	cleaned := s.Symbols[:0]
	for _, sym := range s.Symbols {
		if sym = strings.TrimSpace(sym); sym != "" {
			cleaned = append(cleaned, sym)
		}
	}
	s.Symbols = cleaned
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
