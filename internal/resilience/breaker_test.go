package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cooldown = 20 * time.Millisecond

var (
	errDown    = errors.New("connection refused")
	errNoBars  = errors.New("no bars")
	callFailed = func() (int, error) { return 0, errDown }
	callOK     = func() (int, error) { return 1, nil }
)

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Cooldown:         cooldown,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNoBars) },
	}, zerolog.Nop())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker()
	assert.Equal(t, "test", cb.Name())

	_, err := Do(cb, callFailed)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, CircuitClosed, cb.State())

	_, err = Do(cb, callFailed)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	_, err = Do(cb, func() (int, error) { calls++; return 1, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "open circuit does not call through")

	stats := cb.Stats()
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, CircuitOpen, stats.State)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker()
	Do(cb, callFailed)
	Do(cb, callFailed)
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(2 * cooldown)
	assert.Equal(t, CircuitHalfOpen, cb.State())
	v, err := Do(cb, callOK)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker()
	Do(cb, callFailed)
	Do(cb, callFailed)

	time.Sleep(2 * cooldown)
	_, err := Do(cb, callFailed)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 5; i++ {
		_, err := Do(cb, func() (int, error) { return 0, errNoBars })
		assert.ErrorIs(t, err, errNoBars)
	}
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.Stats().Failures)

	Do(cb, callFailed)
	Do(cb, callOK)
	Do(cb, callFailed)
	assert.Equal(t, CircuitClosed, cb.State(), "a success resets the failure count")
}
