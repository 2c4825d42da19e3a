// Package batch implements the per-sink batch manager: a bounded FIFO
// queue that groups records into batches by size or timeout and hands
// each batch to a caller-supplied dispatch function, never dropping a
// formed batch silently on dispatch failure.
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"logpipeline/pkg/record"
)

// Result classifies the outcome of a Submit call.
type Result int

const (
	Accepted Result = iota
	DroppedQueueFull
)

// ErrClosed is returned by Submit once the Manager has started shutting
// down; no further records are accepted after this point.
var ErrClosed = errors.New("batch manager closed")

// DispatchFunc delivers one batch to its sink, returning a classified
// error on failure (the caller composes retry and circuit-breaker logic
// around this — the batch manager itself never retries).
type DispatchFunc func(ctx context.Context, records []record.Record) error

// Config parameterizes a Manager. All fields are required to already be
// populated with defaults by the caller (the config package).
type Config struct {
	MaxSize        int
	TimeoutMs      int
	MaxConcurrency int
	MaxQueueSize   int
}

// Stats is a point-in-time snapshot of a Manager's counters.
type Stats struct {
	Enqueued       int64
	Dropped        int64
	Dispatched     int64
	DispatchErrors int64
	QueueDepth     int
}

// Manager owns one sink's queue, batching, and concurrency limiting.
type Manager struct {
	name     string
	cfg      Config
	dispatch DispatchFunc
	logger   *logrus.Logger

	queue chan record.Record
	sem   chan struct{}

	inQueue  atomic.Int64
	enqueued atomic.Int64
	dropped  atomic.Int64
	sent     atomic.Int64
	sendErrs atomic.Int64

	closed   atomic.Bool
	flushReq chan flushRequest
	loopDone chan struct{}
	inflight sync.WaitGroup

	warn *warnLimiter
}

type flushRequest struct {
	drain bool
	ack   chan struct{}
}

// New constructs a Manager and starts its processing loop. name
// identifies the owning sink in logs and the dropped-warning rate limiter.
func New(name string, cfg Config, dispatch DispatchFunc, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		name:     name,
		cfg:      cfg,
		dispatch: dispatch,
		logger:   logger,
		queue:    make(chan record.Record, cfg.MaxQueueSize),
		sem:      make(chan struct{}, cfg.MaxConcurrency),
		flushReq: make(chan flushRequest),
		loopDone: make(chan struct{}),
		warn:     newWarnLimiter(5 * time.Second),
	}
	go m.loop()
	return m
}

// Submit enqueues r. It returns promptly: Accepted, DroppedQueueFull, or
// ErrClosed if the manager has begun shutting down.
func (m *Manager) Submit(r record.Record) (Result, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	select {
	case m.queue <- r:
		m.inQueue.Add(1)
		m.enqueued.Add(1)
		return Accepted, nil
	default:
		m.dropped.Add(1)
		if m.warn.allow("queue-full:" + m.name) {
			m.logger.WithField("sink", m.name).
				WithField("dropped_total", m.dropped.Load()).
				Warn("batch queue full, dropping newest record")
		}
		return DroppedQueueFull, nil
	}
}

// Flush forces the current partial batch to dispatch now and waits for
// every in-flight batch to complete, bounded by ctx. Submissions may
// resume once Flush returns. It does not drain records still sitting in
// the queue that have not yet joined a batch.
func (m *Manager) Flush(ctx context.Context) error {
	if !m.requestFlush(ctx, false) {
		return ctx.Err()
	}
	if !m.waitInflight(ctx) {
		return ctx.Err()
	}
	return nil
}

// Close stops accepting new submissions and runs flush cycles — draining
// the queue into batches and dispatching them — until the queue is empty
// or ctx's deadline elapses. It returns the number of records still
// queued when it gave up (zero on a clean drain).
func (m *Manager) Close(ctx context.Context) int {
	if !m.closed.CompareAndSwap(false, true) {
		return int(m.inQueue.Load())
	}

	m.requestFlush(ctx, true)
	m.waitInflight(ctx)

	close(m.queue)
	select {
	case <-m.loopDone:
	case <-ctx.Done():
	}

	return int(m.inQueue.Load())
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Enqueued:       m.enqueued.Load(),
		Dropped:        m.dropped.Load(),
		Dispatched:     m.sent.Load(),
		DispatchErrors: m.sendErrs.Load(),
		QueueDepth:     len(m.queue),
	}
}

func (m *Manager) requestFlush(ctx context.Context, drain bool) bool {
	ack := make(chan struct{})
	select {
	case m.flushReq <- flushRequest{drain: drain, ack: ack}:
	case <-ctx.Done():
		return false
	case <-m.loopDone:
		return true
	}
	select {
	case <-ack:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) waitInflight(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) loop() {
	defer close(m.loopDone)

	batch := make([]record.Record, 0, m.cfg.MaxSize)
	timeout := time.Duration(m.cfg.TimeoutMs) * time.Millisecond
	timer := time.NewTimer(timeout)
	if !timer.Stop() {
		<-timer.C
	}
	timerActive := false

	stopTimer := func() {
		if timerActive {
			if !timer.Stop() {
				<-timer.C
			}
			timerActive = false
		}
	}

	dispatchNow := func() {
		if len(batch) == 0 {
			return
		}
		toSend := batch
		batch = make([]record.Record, 0, m.cfg.MaxSize)

		m.sem <- struct{}{}
		m.inflight.Add(1)
		go func(rs []record.Record) {
			defer m.inflight.Done()
			defer func() { <-m.sem }()

			if err := m.dispatch(context.Background(), rs); err != nil {
				m.sendErrs.Add(1)
				if m.warn.allow("dispatch-error:" + m.name) {
					m.logger.WithField("sink", m.name).WithError(err).Warn("batch dispatch failed")
				}
			} else {
				m.sent.Add(int64(len(rs)))
			}
		}(toSend)
	}

	for {
		select {
		case r, ok := <-m.queue:
			if !ok {
				stopTimer()
				dispatchNow()
				return
			}
			m.inQueue.Add(-1)
			batch = append(batch, r)
			if len(batch) == 1 {
				timer.Reset(timeout)
				timerActive = true
			}
			if len(batch) >= m.cfg.MaxSize {
				stopTimer()
				dispatchNow()
			}

		case <-timer.C:
			timerActive = false
			dispatchNow()

		case req := <-m.flushReq:
			stopTimer()
			dispatchNow()
			if req.drain {
				m.drainQueueIntoBatches(&batch, dispatchNow)
			}
			close(req.ack)
		}
	}
}

// drainQueueIntoBatches pulls everything currently buffered in the queue
// into batches of at most cfg.MaxSize, dispatching each as it fills, used
// by Close to empty the queue before the shutdown deadline.
func (m *Manager) drainQueueIntoBatches(batch *[]record.Record, dispatchNow func()) {
	for {
		select {
		case r, ok := <-m.queue:
			if !ok {
				dispatchNow()
				return
			}
			m.inQueue.Add(-1)
			*batch = append(*batch, r)
			if len(*batch) >= m.cfg.MaxSize {
				dispatchNow()
			}
		default:
			dispatchNow()
			return
		}
	}
}
