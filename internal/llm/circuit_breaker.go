package llm

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the count of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before allowing a
	// half-open probe.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the service defaults: open after 5
// consecutive failures, probe after 60s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// CircuitBreaker gates calls to one named downstream dependency.
//
// Transitions: closed -> open when consecutive failures reach the
// threshold; open -> half-open after the reset timeout; half-open -> closed
// on the next success, half-open -> open on the next failure.
type CircuitBreaker struct {
	mu     sync.Mutex
	name   string
	config BreakerConfig
	logger *logrus.Logger

	state         CircuitState
	failures      int
	openedAt      time.Time
	lastProbeAt   time.Time
	probeInflight bool
	totalAllowed int64
	totalDenied  int64

	// onTransition, when set, is called with the new state on every change.
	onTransition func(name string, state CircuitState)

	// now is replaceable in tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for the named dependency.
func NewCircuitBreaker(name string, config BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		state:  CircuitClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. An open breaker whose reset
// timeout has elapsed transitions to half-open and admits one probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.totalAllowed++
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
			cb.setState(CircuitHalfOpen)
			cb.probeInflight = true
			cb.lastProbeAt = cb.now()
			cb.totalAllowed++
			cb.logger.WithField("breaker", cb.name).Info("circuit breaker half-open, allowing probe")
			return true
		}
		cb.totalDenied++
		return false
	case CircuitHalfOpen:
		// One probe at a time; everyone else waits for its outcome.
		if cb.probeInflight {
			cb.totalDenied++
			return false
		}
		cb.probeInflight = true
		cb.lastProbeAt = cb.now()
		cb.totalAllowed++
		return true
	}
	return false
}

// RecordSuccess registers a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.setState(CircuitClosed)
		cb.failures = 0
		cb.probeInflight = false
		cb.logger.WithField("breaker", cb.name).Info("circuit breaker closed after successful probe")
	}
}

// RecordFailure registers a failed call and opens the circuit when the
// threshold is reached. A failed half-open probe reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.setState(CircuitOpen)
			cb.openedAt = cb.now()
			cb.logger.WithFields(logrus.Fields{
				"breaker":  cb.name,
				"failures": cb.failures,
			}).Warn("circuit breaker opened")
		}
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
		cb.openedAt = cb.now()
		cb.probeInflight = false
		cb.logger.WithField("breaker", cb.name).Warn("circuit breaker reopened after failed probe")
	}
}

// setState changes state and fires the transition hook. Callers hold cb.mu.
func (cb *CircuitBreaker) setState(state CircuitState) {
	cb.state = state
	if cb.onTransition != nil {
		cb.onTransition(cb.name, state)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	// Surface the pending transition so status endpoints don't report a
	// stale open state past the reset timeout.
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// BreakerStatus is a snapshot for the status endpoint.
type BreakerStatus struct {
	Name         string       `json:"name"`
	State        CircuitState `json:"state"`
	Failures     int          `json:"failures"`
	OpenedAt     time.Time    `json:"opened_at,omitempty"`
	LastProbeAt  time.Time    `json:"last_probe_at,omitempty"`
	TotalAllowed int64        `json:"total_allowed"`
	TotalDenied  int64        `json:"total_denied"`
}

// Status returns a point-in-time snapshot.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStatus{
		Name:         cb.name,
		State:        cb.state,
		Failures:     cb.failures,
		OpenedAt:     cb.openedAt,
		LastProbeAt:  cb.lastProbeAt,
		TotalAllowed: cb.totalAllowed,
		TotalDenied:  cb.totalDenied,
	}
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.probeInflight = false
}

// BreakerManager owns one breaker per named dependency.
type BreakerManager struct {
	mu           sync.RWMutex
	breakers     map[string]*CircuitBreaker
	config       BreakerConfig
	logger       *logrus.Logger
	onTransition func(name string, state CircuitState)
}

// NewBreakerManager creates a manager that builds breakers on demand.
func NewBreakerManager(config BreakerConfig, logger *logrus.Logger) *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// Get returns the breaker for name, creating it if needed.
func (bm *BreakerManager) Get(name string) *CircuitBreaker {
	bm.mu.RLock()
	cb, ok := bm.breakers[name]
	bm.mu.RUnlock()
	if ok {
		return cb
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	if cb, ok = bm.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, bm.config, bm.logger)
	cb.onTransition = bm.onTransition
	bm.breakers[name] = cb
	return cb
}

// OnTransition registers a hook fired on every state change of every breaker
// the manager creates. Call it before the first Get.
func (bm *BreakerManager) OnTransition(fn func(name string, state CircuitState)) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.onTransition = fn
	for _, cb := range bm.breakers {
		cb.onTransition = fn
	}
}

// AllStatus returns a snapshot of every breaker.
func (bm *BreakerManager) AllStatus() map[string]BreakerStatus {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	out := make(map[string]BreakerStatus, len(bm.breakers))
	for name, cb := range bm.breakers {
		out[name] = cb.Status()
	}
	return out
}
