package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，如 STRATLAB_BREAKER_FAILURE_THRESHOLD。
const EnvPrefix = "STRATLAB"

// envKeys 列出允许通过环境变量覆盖的配置项。
var envKeys = []string{
	"app.env",
	"app.log_level",
	"app.log_path",
	"app.http_addr",
	"store.candle_db_path",
	"store.result_db_dir",
	"feed.provider",
	"feed.base_url",
	"feed.api_key",
	"feed.proxy_url",
	"feed.timeout_seconds",
	"feed.rate_limit_per_min",
	"breaker.failure_threshold",
	"breaker.cooldown_seconds",
	"resolver.backtest_allow_feed",
	"resolver.screening_staleness_check",
	"resolver.max_concurrent",
	"simulation.holding_period_days",
	"simulation.exit_rules_path",
	"analytics.starting_capital",
	"sync.interval",
	"sync.offset_minutes",
	"sync.lookback_days",
	"sync.run_on_start",
	"notify.telegram_bot_token",
	"notify.telegram_chat_id",
}

// Load 读取 YAML 配置（支持 include），再叠加环境变量，最后补默认值并校验。
// path 为空时只使用环境变量与默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if strings.TrimSpace(path) != "" {
		files, err := resolveConfigIncludes(path)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := mergeConfigFile(v, file); err != nil {
				return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
			}
		}
	}
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

// resolveConfigIncludes 按 include 深度优先展开，被包含文件排在前面，后者覆盖前者。
func resolveConfigIncludes(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var (
		ordered []string
		done    = make(map[string]bool)
		visit   func(p string, chain map[string]bool) error
	)
	visit = func(p string, chain map[string]bool) error {
		p = filepath.Clean(p)
		if chain[p] {
			return fmt.Errorf("include cycle detected: %s", p)
		}
		if done[p] {
			return nil
		}
		chain[p] = true
		defer delete(chain, p)
		includes, err := parseIncludeList(p)
		if err != nil {
			return fmt.Errorf("parsing include failed (%s): %w", p, err)
		}
		for _, inc := range includes {
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(p), inc)
			}
			if err := visit(inc, chain); err != nil {
				return err
			}
		}
		done[p] = true
		ordered = append(ordered, p)
		return nil
	}
	if err := visit(abs, make(map[string]bool)); err != nil {
		return nil, err
	}
	return ordered, nil
}

func parseIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, child := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, child, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
