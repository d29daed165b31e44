package circuit

import (
	"sync"
	"time"

	"stratlab/internal/logger"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Clock 便于测试注入时间。
type Clock func() time.Time

// StateChangeHandler 在状态迁移后异步调用。
type StateChangeHandler func(name string, from, to State)

// CircuitBreaker 是单个 key 的连续失败计数器。
//
// open 状态下冷却期（自最后一次失败起）过后，IsOpen 恰好放行一次探测调用并进入 half-open；
// 探测失败重新 open，成功则清零并回到 closed。探测结果迟迟未上报时，
// 再过一个冷却期允许下一次探测，避免永久卡在 half-open。
type CircuitBreaker struct {
	mu            sync.Mutex
	name          string
	state         State
	failures      int
	threshold     int
	cooldown      time.Duration
	lastFailure   time.Time
	probeAt       time.Time
	now           Clock
	onStateChange StateChangeHandler
}

func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) SetStateChangeHandler(handler StateChangeHandler) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = handler
}

func (cb *CircuitBreaker) setClock(clock Clock) {
	if clock == nil {
		return
	}
	cb.mu.Lock()
	cb.now = clock
	cb.mu.Unlock()
}

// IsOpen 报告是否应跳过外部调用。
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	switch cb.state {
	case StateClosed:
		return false
	case StateOpen:
		if now.Sub(cb.lastFailure) > cb.cooldown {
			cb.probeAt = now
			cb.transition(StateHalfOpen)
			return false
		}
		return true
	case StateHalfOpen:
		if now.Sub(cb.probeAt) > cb.cooldown {
			cb.probeAt = now
			return false
		}
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.threshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// Snapshot 返回当前状态的只读副本。
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		Name:        cb.name,
		State:       cb.state,
		Open:        cb.state != StateClosed,
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
	}
}

// transition 需在持锁状态下调用。
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, from, to)
		return
	}
	logger.Warnf("CircuitBreaker %s state change: %s -> %s (failures=%d/%d, cooldown=%s)",
		cb.name, from, to, cb.failures, cb.threshold, cb.cooldown)
}

// Snapshot 对应单个 key 的失败追踪状态。
type Snapshot struct {
	Name        string    `json:"name"`
	State       State     `json:"-"`
	Open        bool      `json:"open"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

func (s Snapshot) StateLabel() string { return s.State.String() }
