package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(resetTimeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     resetTimeout,
		HalfOpenMaxCalls: 2,
	})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	assert.True(t, cb.Allow())

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Success()

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.Success()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)

	cb.Failure()
	cb.Failure()
	cb.Failure()

	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreakerReset(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.Allow())
}

func TestBreakerMetrics(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	cb.Failure()

	metrics := cb.GetMetrics()

	assert.Equal(t, "closed", metrics["state"])
	assert.Equal(t, int64(1), metrics["failure_count"])
	assert.Equal(t, int64(3), metrics["failure_threshold"])
}
