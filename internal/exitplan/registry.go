package exitplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stratlab/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// fileSchema 约束 exit_rules.yaml 的结构：strategies 为 code -> 规则名。
const fileSchema = `{
  "type": "object",
  "required": ["strategies"],
  "additionalProperties": false,
  "properties": {
    "strategies": {
      "type": "object",
      "additionalProperties": {
        "type": "string",
        "enum": ["stop-or-target", "stop-only", "time-or-stop", "stop_or_target", "stop_only", "time_or_stop"]
      }
    }
  }
}`

// FileConfig 映射 exit_rules.yaml。
type FileConfig struct {
	Strategies map[string]string `yaml:"strategies"`
}

// Snapshot 是某次加载后的映射表。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Table    Table
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// Registry 在内置映射之上叠加文件配置，并在文件变化时热加载。
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取配置文件并监听更新；path 为空时只使用内置映射。
func NewRegistry(path string) (*Registry, error) {
	schema, err := compileSchema(fileSchema)
	if err != nil {
		return nil, fmt.Errorf("compile exit rule schema failed: %w", err)
	}
	r := &Registry{path: strings.TrimSpace(path), schema: schema}
	if r.path == "" {
		r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Table: DefaultTable()}
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read exit rule config failed: %w", err)
	}
	r.v = v
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("exit rule reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前映射。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Lookup 使用当前快照查找策略代码对应的规则。
func (r *Registry) Lookup(code string) (ExitRule, bool) {
	return r.Snapshot().Table.Lookup(code)
}

func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := r.readFile()
	if err != nil {
		return err
	}
	overrides := make(map[string]ExitRule, len(cfg.Strategies))
	for code, name := range cfg.Strategies {
		rule, err := ParseRule(name)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", code, err)
		}
		overrides[code] = rule
	}
	table := DefaultTable().Merge(overrides)
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Table:    table,
	}
	r.mu.Unlock()
	logger.Infof("Exit rule registry loaded %d strategy codes from %s", table.Len(), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("exit rule listener")
			cb(snap)
		}(fn)
	}
}

// readFile 先按 schema 校验整份文档，再用 KnownFields 严格解码。
func (r *Registry) readFile() (FileConfig, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read exit rule config failed: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return FileConfig{}, fmt.Errorf("parse exit rule config failed: %w", err)
	}
	jsonDoc, err := toJSONValue(doc)
	if err != nil {
		return FileConfig{}, err
	}
	if err := r.schema.Validate(jsonDoc); err != nil {
		return FileConfig{}, fmt.Errorf("exit rule config invalid: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse exit rule config failed: %w", err)
	}
	return cfg, nil
}

// toJSONValue 通过 JSON 往返把 YAML 解码结果转成 jsonschema 可校验的值。
func toJSONValue(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("exit rule config not representable as json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema(raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("exit_rules.json", strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("exit_rules.json")
}
