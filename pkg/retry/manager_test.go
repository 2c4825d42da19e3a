package retry

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusError struct{ code int }

func (e statusError) Error() string  { return http.StatusText(e.code) }
func (e statusError) StatusCode() int { return e.code }

type fakeBreaker struct {
	allow     bool
	successes int32
	failures  int32
}

func (f *fakeBreaker) Allow() bool          { return f.allow }
func (f *fakeBreaker) RecordSuccess()       { atomic.AddInt32(&f.successes, 1) }
func (f *fakeBreaker) RecordFailure(error)  { atomic.AddInt32(&f.failures, 1) }

func TestExecute_SucceedsFirstTry(t *testing.T) {
	m := New(Config{MaxAttempts: 3, InitialDelayMs: 1, MaxDelayMs: 10, Multiplier: 2}, nil, nil)
	calls := 0
	err := m.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetriesRetryableThenSucceeds(t *testing.T) {
	m := New(Config{MaxAttempts: 5, InitialDelayMs: 1, MaxDelayMs: 10, Multiplier: 2}, nil, nil)
	calls := 0
	err := m.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return statusError{502}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_NonRetryableFailsImmediately(t *testing.T) {
	m := New(Config{MaxAttempts: 5, InitialDelayMs: 1, MaxDelayMs: 10, Multiplier: 2}, nil, nil)
	calls := 0
	err := m.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return statusError{400}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a non-retryable error must not be retried")
}

func TestExecute_ExhaustsMaxAttempts(t *testing.T) {
	m := New(Config{MaxAttempts: 3, InitialDelayMs: 1, MaxDelayMs: 5, Multiplier: 2}, nil, nil)
	calls := 0
	err := m.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return statusError{503}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_BreakerOpenShortCircuits(t *testing.T) {
	breaker := &fakeBreaker{allow: false}
	m := New(Config{MaxAttempts: 5, InitialDelayMs: 1, MaxDelayMs: 5, Multiplier: 2}, nil, breaker)
	calls := 0
	err := m.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 0, calls, "operation must not run when the breaker refuses")
}

func TestExecute_RecordsBreakerOutcomes(t *testing.T) {
	breaker := &fakeBreaker{allow: true}
	m := New(Config{MaxAttempts: 2, InitialDelayMs: 1, MaxDelayMs: 5, Multiplier: 2}, nil, breaker)

	_ = m.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.EqualValues(t, 1, breaker.successes)

	// The error is retryable, so both of the 2 allowed attempts run and fail.
	_ = m.Execute(context.Background(), func(ctx context.Context) error { return errors.New("timeout dialing host") })
	assert.EqualValues(t, 2, breaker.failures)
}

func TestComputeDelay_MatchesFormula(t *testing.T) {
	cfg := Config{InitialDelayMs: 1000, MaxDelayMs: 30000, Multiplier: 2}

	assert.Equal(t, 1000*time.Millisecond, computeDelay(cfg, 2))
	assert.Equal(t, 2000*time.Millisecond, computeDelay(cfg, 3))
	assert.Equal(t, 4000*time.Millisecond, computeDelay(cfg, 4))
}

func TestComputeDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := Config{InitialDelayMs: 1000, MaxDelayMs: 3000, Multiplier: 2}
	assert.Equal(t, 3000*time.Millisecond, computeDelay(cfg, 6))
}

func TestComputeDelay_JitterStaysInBounds(t *testing.T) {
	cfg := Config{InitialDelayMs: 1000, MaxDelayMs: 30000, Multiplier: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		d := computeDelay(cfg, 3)
		assert.GreaterOrEqual(t, d, 2000*time.Millisecond)
		assert.LessOrEqual(t, d, 3000*time.Millisecond)
	}
}

func TestDefaultClassifier_NetworkErrorsRetryable(t *testing.T) {
	assert.True(t, DefaultClassifier(errors.New("dial tcp: connection reset by peer")))
	assert.True(t, DefaultClassifier(statusError{429}))
	assert.True(t, DefaultClassifier(statusError{503}))
	assert.False(t, DefaultClassifier(statusError{404}))
	assert.False(t, DefaultClassifier(nil))
}
