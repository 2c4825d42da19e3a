// Package retry drives the retry-with-backoff loop shared by every
// outbound sink, consulting a circuit breaker before each attempt and
// classifying errors as retryable or terminal.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrBreakerOpen is returned (wrapped) when the breaker refuses an
// attempt; it is always a terminal, non-retryable failure.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Breaker is the subset of pkg/circuit.Breaker the retry manager needs.
// Any breaker satisfying this (or a nil Breaker, meaning "no breaker") works.
type Breaker interface {
	Allow() bool
	RecordSuccess()
	RecordFailure(err error)
}

// Config mirrors the retry schema: delay before attempt n (1-indexed,
// n=1 immediate) is min(MaxDelayMs, InitialDelayMs * Multiplier^(n-2))
// plus, when Jitter is set, a uniform random addition in [0, delay/2].
type Config struct {
	MaxAttempts    int
	InitialDelayMs int
	MaxDelayMs     int
	Multiplier     float64
	Jitter         bool
}

// Manager executes operations under this package's retry/backoff policy.
type Manager struct {
	cfg      Config
	classify Classifier
	breaker  Breaker
}

// New builds a Manager. classify defaults to DefaultClassifier if nil;
// breaker may be nil to skip breaker consultation entirely.
func New(cfg Config, classify Classifier, breaker Breaker) *Manager {
	if classify == nil {
		classify = DefaultClassifier
	}
	return &Manager{cfg: cfg, classify: classify, breaker: breaker}
}

// Execute runs operation, retrying retryable failures per Config until
// success, a terminal (non-retryable) failure, MaxAttempts is exhausted,
// or ctx is canceled. The breaker, if set, is consulted before every
// attempt including the first.
func (m *Manager) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	bo := &spacedBackoff{cfg: m.cfg}

	op := func() (struct{}, error) {
		if m.breaker != nil && !m.breaker.Allow() {
			return struct{}{}, backoff.Permanent(ErrBreakerOpen)
		}

		err := operation(ctx)
		if err == nil {
			if m.breaker != nil {
				m.breaker.RecordSuccess()
			}
			return struct{}{}, nil
		}

		if m.breaker != nil {
			m.breaker.RecordFailure(err)
		}

		if !m.classify(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	maxTries := uint(m.cfg.MaxAttempts)
	if maxTries == 0 {
		maxTries = 1
	}

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(bo), backoff.WithMaxTries(maxTries))
	return err
}

// spacedBackoff implements backoff.BackOff using the retry contract's
// exact delay formula rather than the library's own exponential curve.
type spacedBackoff struct {
	cfg     Config
	attempt int // number of attempts already made
}

func (b *spacedBackoff) NextBackOff() time.Duration {
	b.attempt++
	return computeDelay(b.cfg, b.attempt+1)
}

func (b *spacedBackoff) Reset() { b.attempt = 0 }

// computeDelay returns the delay before attempt n (n>=2; n=1 is
// immediate and never passes through here).
func computeDelay(cfg Config, n int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	delayMs := float64(cfg.InitialDelayMs) * pow(multiplier, float64(n-2))
	if maxMs := float64(cfg.MaxDelayMs); maxMs > 0 && delayMs > maxMs {
		delayMs = maxMs
	}

	if cfg.Jitter && delayMs > 0 {
		delayMs += rand.Float64() * (delayMs / 2)
	}

	return time.Duration(delayMs) * time.Millisecond
}

func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}
