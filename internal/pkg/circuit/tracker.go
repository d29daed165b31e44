package circuit

import (
	"sort"
	"sync"
	"time"

	"stratlab/internal/pkg/symbol"
)

const (
	DefaultThreshold = 3
	DefaultCooldown  = 60 * time.Second
)

// Tracker 按 symbol 维护独立的 CircuitBreaker。
// 每个 key 的 breaker 通过 LoadOrStore 原子创建，之后的状态变更只锁该 key 自己的 mutex，
// 不同 symbol 之间互不阻塞。
type Tracker struct {
	cells     sync.Map // normalized symbol -> *CircuitBreaker
	threshold int
	cooldown  time.Duration
	clock     Clock
	onChange  StateChangeHandler
}

type Option func(*Tracker)

func WithClock(clock Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

func WithStateChangeHandler(fn StateChangeHandler) Option {
	return func(t *Tracker) { t.onChange = fn }
}

func NewTracker(threshold int, cooldown time.Duration, opts ...Option) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	t := &Tracker{threshold: threshold, cooldown: cooldown}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Tracker) breaker(sym string) *CircuitBreaker {
	key := symbol.Normalize(sym)
	if v, ok := t.cells.Load(key); ok {
		return v.(*CircuitBreaker)
	}
	cb := NewCircuitBreaker(key, t.threshold, t.cooldown)
	cb.setClock(t.clock)
	if t.onChange != nil {
		cb.SetStateChangeHandler(t.onChange)
	}
	actual, _ := t.cells.LoadOrStore(key, cb)
	return actual.(*CircuitBreaker)
}

func (t *Tracker) IsOpen(sym string) bool {
	return t.breaker(sym).IsOpen()
}

func (t *Tracker) RecordSuccess(sym string) {
	t.breaker(sym).RecordSuccess()
}

func (t *Tracker) RecordFailure(sym string) {
	t.breaker(sym).RecordFailure()
}

// Snapshot 返回指定 symbol 的状态；从未记录过的 symbol 为 closed/0。
func (t *Tracker) Snapshot(sym string) Snapshot {
	key := symbol.Normalize(sym)
	if v, ok := t.cells.Load(key); ok {
		return v.(*CircuitBreaker).Snapshot()
	}
	return Snapshot{Name: key, State: StateClosed}
}

// Snapshots 按 symbol 排序返回全部已知状态。
func (t *Tracker) Snapshots() []Snapshot {
	var out []Snapshot
	t.cells.Range(func(_, v any) bool {
		out = append(out, v.(*CircuitBreaker).Snapshot())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *Tracker) Threshold() int          { return t.threshold }
func (t *Tracker) Cooldown() time.Duration { return t.cooldown }
