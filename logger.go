// Package logpipeline is the public facade over the structured logging
// pipeline: a Logger submits records non-blockingly to a fan-out
// Processor, which batches, retries, and delivers them to every
// configured sink.
package logpipeline

import (
	"context"
	"sync/atomic"
	"time"

	"logpipeline/internal/health"
	"logpipeline/internal/pipeline"
	"logpipeline/pkg/record"
)

// Handle is returned by every logging call. It never blocks on
// delivery; Err only reports whether the submission was refused because
// the logger is closed. A record dropped by a full route queue or later
// failing delivery still yields a nil Err.
type Handle struct {
	err error
}

// Err returns the error, if any, raised while submitting the record —
// ErrClosed once the logger has been closed, nil otherwise.
func (h Handle) Err() error { return h.err }

// procHolder indirects every Logger in a WithContext family through one
// shared, swappable Processor pointer, so a config-driven SwapProcessor
// call on the root logger is visible to every child derived from it.
type procHolder struct {
	p atomic.Pointer[pipeline.Processor]
}

// Logger is an immutable, append-only facade: WithContext returns a new
// Logger carrying merged context, never mutating the receiver, so a
// parent logger and its children can be used concurrently.
type Logger struct {
	holder  *procHolder
	ctx     record.Context
	minimum record.Level
	clock   *record.MonotonicClock
}

// New wraps proc with the root logger context and minimum emitted level.
func New(proc *pipeline.Processor, ctx record.Context, minimum record.Level) *Logger {
	h := &procHolder{}
	h.p.Store(proc)
	return &Logger{holder: h, ctx: ctx, minimum: minimum, clock: &record.MonotonicClock{}}
}

// WithContext returns a child Logger whose context is the receiver's
// merged with overrides, per record.Context.Merge's append-only rules.
// The child shares the parent's MonotonicClock and procHolder, so
// timestamps stay non-decreasing and a later SwapProcessor call is
// visible across the whole logger family, not just one instance.
func (l *Logger) WithContext(overrides record.Context) *Logger {
	return &Logger{holder: l.holder, ctx: l.ctx.Merge(overrides), minimum: l.minimum, clock: l.clock}
}

// WithRequestID returns a child Logger carrying the given request ID.
func (l *Logger) WithRequestID(id string) *Logger {
	return l.WithContext(record.Context{RequestID: id})
}

// WithCorrelationID returns a child Logger carrying the given
// correlation ID.
func (l *Logger) WithCorrelationID(id string) *Logger {
	return l.WithContext(record.Context{CorrelationID: id})
}

func (l *Logger) log(level record.Level, message string, fields map[string]any) Handle {
	if level < l.minimum {
		return Handle{}
	}
	rec := record.New(level, message, fields, l.ctx, record.Source{}, l.clock.Now())
	return Handle{err: l.holder.p.Load().Submit(rec)}
}

func (l *Logger) Debug(message string, fields ...map[string]any) Handle {
	return l.log(record.Debug, message, firstOrNil(fields))
}

func (l *Logger) Info(message string, fields ...map[string]any) Handle {
	return l.log(record.Info, message, firstOrNil(fields))
}

func (l *Logger) Warn(message string, fields ...map[string]any) Handle {
	return l.log(record.Warn, message, firstOrNil(fields))
}

func (l *Logger) Error(message string, fields ...map[string]any) Handle {
	return l.log(record.Error, message, firstOrNil(fields))
}

// Fatal submits a fatal-level record and then flushes every route
// before returning, so the record is not lost to a process exit the
// caller performs immediately after. It does not call os.Exit itself —
// that decision belongs to the caller.
func (l *Logger) Fatal(message string, fields ...map[string]any) Handle {
	h := l.log(record.Fatal, message, firstOrNil(fields))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = l.holder.p.Load().Flush(ctx)
	return h
}

func firstOrNil(fields []map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	return fields[0]
}

// Flush forces every route to dispatch its current partial batch and
// waits for in-flight deliveries, bounded by ctx. It does not stop the
// logger; submissions may continue afterward.
func (l *Logger) Flush(ctx context.Context) error {
	return l.holder.p.Load().Flush(ctx)
}

// Close performs the shutdown sequence: refuse new submissions, drain
// every route's queue within ctx's deadline, and close every sink. It
// returns the number of records still queued when the deadline elapsed.
func (l *Logger) Close(ctx context.Context) (int, error) {
	return l.holder.p.Load().Close(ctx)
}

// SinkStatuses implements health.Reporter against the logger's current
// Processor, so the health server stays accurate across a SwapProcessor
// call instead of holding a stale Processor reference.
func (l *Logger) SinkStatuses() []health.SinkStatus {
	return l.holder.p.Load().SinkStatuses()
}

// GetTransportHealth reports the current health and circuit state of
// every configured sink, mirroring the teacher's Dispatcher.GetStats()
// as an in-process call rather than only through the /healthz endpoint.
func (l *Logger) GetTransportHealth() []health.SinkStatus {
	return l.SinkStatuses()
}

// SwapProcessor atomically replaces the Processor this logger (and every
// Logger sharing its procHolder, including WithContext-derived children)
// submits to, and returns the previous Processor so the caller can drain
// and close it in the background. This is how a critical config change
// (sink identity/address) is reinstantiated in-band without losing the
// caller's Logger handle or its context chain.
func (l *Logger) SwapProcessor(next *pipeline.Processor) *pipeline.Processor {
	return l.holder.p.Swap(next)
}
