// Package resilience guards remote price sources with a circuit breaker.
package resilience

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, rejecting requests
	CircuitHalfOpen CircuitState = "HALF_OPEN" // Probing whether the source recovered
)

// ErrCircuitOpen is returned when the circuit rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes needed to close
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing
	Cooldown time.Duration
	// IsFailure decides which errors count against the source; nil counts all.
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig returns the configuration used for market data APIs.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker stops calling a source after repeated failures.
type CircuitBreaker struct {
	breaker  *gobreaker.CircuitBreaker
	failures atomic.Int64
	rejected atomic.Int64
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	threshold := uint32(max(config.FailureThreshold, 1))
	logger = logger.With().Str("breaker", name).Logger()

	cb := &CircuitBreaker{}
	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(max(config.SuccessThreshold, 1)),
		Timeout:     config.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil || (config.IsFailure != nil && !config.IsFailure(err)) {
				return true
			}
			cb.failures.Add(1)
			return false
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Warn().Dur("cooldown", config.Cooldown).Msg("circuit opened")
				return
			}
			logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
		},
	})
	return cb
}

// Do runs fn unless the circuit is open.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.rejected.Add(1)
		return zero, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	v, ok := res.(T)
	if !ok {
		return zero, err
	}
	return v, err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	switch cb.breaker.State() {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.breaker.Name()
}

// CircuitBreakerStats holds circuit breaker statistics.
type CircuitBreakerStats struct {
	Name     string       `json:"name"`
	State    CircuitState `json:"state"`
	Failures int64        `json:"failures"`
	Rejected int64        `json:"rejected"`
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	return CircuitBreakerStats{
		Name:     cb.Name(),
		State:    cb.State(),
		Failures: cb.failures.Load(),
		Rejected: cb.rejected.Load(),
	}
}
