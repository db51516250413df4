package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents the circuit breaker state
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned by Execute while the circuit for a key is open
var ErrOpen = errors.New("circuit breaker is open")

// permanentError marks a failure of one request, not of the guarded key
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Execute returns it without counting it against the key.
// The key answered, so the call counts as a success for the circuit.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// CircuitBreaker tracks failures per key (a mail host, for example) and fails fast
// once a key has failed maxFailures times in a row
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	failures    map[string]int
	lastFailure map[string]time.Time
	state       map[string]State
	trialing    map[string]bool
	mu          sync.Mutex

	now    func() time.Time
	logger *zap.Logger
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		failures:     make(map[string]int),
		lastFailure:  make(map[string]time.Time),
		state:        make(map[string]State),
		trialing:     make(map[string]bool),
		now:          time.Now,
		logger:       logger,
	}
}

// allow reports whether a call for key may proceed. An expired open circuit turns
// half-open and lets exactly one trial through until that trial is recorded.
func (cb *CircuitBreaker) allow(key string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state[key] {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure[key]) <= cb.resetTimeout {
			return false
		}
		cb.state[key] = StateHalfOpen
		cb.logger.Info("Circuit breaker half-open", zap.String("key", key))
	case StateHalfOpen:
		if cb.trialing[key] {
			return false
		}
	default:
		return true
	}

	cb.trialing[key] = true
	return true
}

// IsOpen reports whether a call for key would currently be rejected. It does not
// start a half-open trial.
func (cb *CircuitBreaker) IsOpen(key string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state[key] {
	case StateOpen:
		return cb.now().Sub(cb.lastFailure[key]) <= cb.resetTimeout
	case StateHalfOpen:
		return cb.trialing[key]
	}
	return false
}

// Execute runs a function with circuit breaker protection
func (cb *CircuitBreaker) Execute(key string, fn func() error) error {
	if !cb.allow(key) {
		return fmt.Errorf("%w for %s", ErrOpen, key)
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && !IsPermanent(err) {
		cb.recordFailure(key)
	} else {
		cb.recordSuccess(key)
	}

	return err
}

// recordSuccess (internal, must be called with lock held)
func (cb *CircuitBreaker) recordSuccess(key string) {
	delete(cb.failures, key)
	delete(cb.lastFailure, key)
	delete(cb.trialing, key)

	if cb.state[key] == StateHalfOpen {
		cb.logger.Info("Circuit breaker closed", zap.String("key", key))
	}
	delete(cb.state, key)
}

// recordFailure (internal, must be called with lock held)
func (cb *CircuitBreaker) recordFailure(key string) {
	cb.failures[key]++
	cb.lastFailure[key] = cb.now()
	delete(cb.trialing, key)

	// a failed half-open trial reopens immediately
	if cb.state[key] == StateHalfOpen || cb.failures[key] >= cb.maxFailures {
		if cb.state[key] != StateOpen {
			cb.logger.Warn("Circuit breaker opened",
				zap.String("key", key),
				zap.Int("failures", cb.failures[key]),
			)
		}
		cb.state[key] = StateOpen
	}
}

// State returns the current state for a key
func (cb *CircuitBreaker) State(key string) State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if state, ok := cb.state[key]; ok {
		return state
	}
	return StateClosed
}

// Failures returns the current consecutive failure count for a key
func (cb *CircuitBreaker) Failures(key string) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.failures[key]
}

// Reset forgets everything recorded for a key
func (cb *CircuitBreaker) Reset(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	delete(cb.failures, key)
	delete(cb.lastFailure, key)
	delete(cb.state, key)
	delete(cb.trialing, key)
}
