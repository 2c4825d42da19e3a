// Package circuit implements the three-state circuit breaker shared by
// outbound sinks: Closed, Open, and Half-Open, with observable state
// transitions for health surfacing.
package circuit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is one of the breaker's three states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config parameterizes a Breaker.
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures before tripping open
	ResetMs          int           // time spent Open before probing Half-Open
	FailureRateWindow time.Duration // moving window for the rate-based trip, 0 disables it
	FailureRateThreshold float64    // fraction in [0,1]; ignored when FailureRateWindow is 0
}

// Stats is a point-in-time snapshot of a Breaker's counters.
type Stats struct {
	State         State
	Failures      int64
	Successes     int64
	Requests      int64
	LastFailure   time.Time
	LastSuccess   time.Time
	NextRetryTime time.Time
}

// Breaker implements allow/recordSuccess/recordFailure per the contract:
// Closed -> Open after FailureThreshold consecutive failures (or a
// failure rate over FailureRateThreshold within FailureRateWindow) ->
// Half-Open after ResetMs -> Closed on the next success, Open again on
// the next failure.
type Breaker struct {
	cfg    Config
	logger *logrus.Logger

	mu                sync.RWMutex
	state             State
	consecutiveFails  int64
	failures          int64
	successes         int64
	requests          int64
	lastFailure       time.Time
	lastSuccess       time.Time
	nextRetryTime     time.Time
	windowEvents      []windowEvent

	onStateChange func(from, to State)
}

type windowEvent struct {
	at      time.Time
	failure bool
}

// New builds a Breaker in the Closed state.
func New(cfg Config, logger *logrus.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetMs <= 0 {
		cfg.ResetMs = 60_000
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Breaker{cfg: cfg, logger: logger, state: Closed}
}

// OnStateChange registers a callback fired on every transition.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a call may proceed. Open refuses until ResetMs
// has elapsed, at which point the breaker moves to Half-Open and allows
// exactly the probing call that triggered the transition.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Now().Before(b.nextRetryTime) {
			return false
		}
		b.setState(HalfOpen)
		return true
	case HalfOpen:
		// Only the probing call is admitted; concurrent callers during
		// the probe window are refused until it resolves.
		return false
	default:
		return false
	}
}

// RecordSuccess registers a successful call. In Half-Open this closes
// the breaker; in Closed it resets the consecutive-failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	b.lastSuccess = time.Now()
	b.recordWindowEvent(false)

	switch b.state {
	case HalfOpen:
		b.setState(Closed)
		b.consecutiveFails = 0
	case Closed:
		b.consecutiveFails = 0
	}
}

// RecordFailure registers a failed call. In Half-Open this reopens the
// breaker immediately; in Closed it may trip the breaker open.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.consecutiveFails++
	b.lastFailure = time.Now()
	b.recordWindowEvent(true)

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		if b.consecutiveFails >= int64(b.cfg.FailureThreshold) || b.rateExceeded() {
			b.trip()
		}
	}
}

func (b *Breaker) rateExceeded() bool {
	if b.cfg.FailureRateWindow <= 0 || b.cfg.FailureRateThreshold <= 0 {
		return false
	}
	cutoff := time.Now().Add(-b.cfg.FailureRateWindow)

	kept := b.windowEvents[:0]
	var failed, total int
	for _, ev := range b.windowEvents {
		if ev.at.Before(cutoff) {
			continue
		}
		kept = append(kept, ev)
		total++
		if ev.failure {
			failed++
		}
	}
	b.windowEvents = kept

	if total == 0 {
		return false
	}
	return float64(failed)/float64(total) > b.cfg.FailureRateThreshold
}

func (b *Breaker) recordWindowEvent(failure bool) {
	if b.cfg.FailureRateWindow <= 0 {
		return
	}
	b.windowEvents = append(b.windowEvents, windowEvent{at: time.Now(), failure: failure})
}

func (b *Breaker) trip() {
	if b.state == Open {
		return
	}
	b.setState(Open)
	b.nextRetryTime = time.Now().Add(time.Duration(b.cfg.ResetMs) * time.Millisecond)
}

func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState

	b.logger.WithFields(logrus.Fields{
		"breaker":   b.cfg.Name,
		"old_state": oldState.String(),
		"new_state": newState.String(),
	}).Info("circuit breaker state changed")

	if b.onStateChange != nil {
		b.onStateChange(oldState, newState)
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters, used for health
// surfacing.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		Requests:      b.requests,
		LastFailure:   b.lastFailure,
		LastSuccess:   b.lastSuccess,
		NextRetryTime: b.nextRetryTime,
	}
}
