// Package pipeline fans a submitted record out to every configured
// sink's route (batch manager -> retry manager -> circuit breaker ->
// sink), applies debug/info sampling, and coordinates graceful
// shutdown across all routes.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"logpipeline/internal/config"
	"logpipeline/internal/health"
	"logpipeline/internal/metrics"
	"logpipeline/internal/sinks"
	"logpipeline/pkg/batch"
	"logpipeline/pkg/circuit"
	"logpipeline/pkg/perr"
	"logpipeline/pkg/record"
	"logpipeline/pkg/retry"
)

// ErrClosed is returned by Submit once shutdown has begun.
var ErrClosed error = perr.Shutdown("pipeline")

const fallbackFloodWindow = 5 * time.Second

// NamedSink pairs a constructed Sink with the config sections that
// parameterize its route — the Processor builds one route per entry.
type NamedSink struct {
	Name   string
	Sink   sinks.Sink
	Batch  config.BatchConfig
	Retry  config.RetryConfig
	Breaker circuit.Config
}

// Processor is the fan-out core of the logging pipeline: every
// submitted record is (optionally sampled, then) handed to every
// route's batch manager concurrently with the others.
type Processor struct {
	routes []*route
	logger *logrus.Logger

	sampleRate float64
	rng        *rand.Rand
	rngMu      sync.Mutex

	fallbackLimiter *rate.Limiter
	fallbackOut     *os.File

	isClosed bool
	mu       sync.RWMutex
}

// New builds a Processor with one route per entry in sinkSpecs.
func New(sinkSpecs []NamedSink, perf config.PerformanceConfig, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Processor{
		logger:          logger,
		sampleRate:      1.0,
		rng:             rand.New(rand.NewSource(1)),
		fallbackLimiter: rate.NewLimiter(rate.Every(fallbackFloodWindow), 1),
		fallbackOut:     os.Stderr,
	}
	if perf.Enabled {
		p.sampleRate = perf.SampleRate
	}

	for _, spec := range sinkSpecs {
		r := newRoute(spec.Name, spec.Sink, batch.Config{
			MaxSize:        spec.Batch.MaxSize,
			TimeoutMs:      spec.Batch.TimeoutMs,
			MaxConcurrency: spec.Batch.MaxConcurrency,
			MaxQueueSize:   spec.Batch.MaxQueueSize,
		}, retry.Config{
			MaxAttempts:    spec.Retry.MaxAttempts,
			InitialDelayMs: spec.Retry.InitialDelayMs,
			MaxDelayMs:     spec.Retry.MaxDelayMs,
			Multiplier:     spec.Retry.Multiplier,
			Jitter:         spec.Retry.Jitter,
		}, spec.Breaker, logger)
		r.onFallback = p.emergencyFallback
		p.routes = append(p.routes, r)
	}
	return p
}

// shouldSample reports whether rec should proceed given the configured
// sample rate. Only debug/info records are ever sampled out; warn and
// above always pass, per the pipeline's resolved sampling scope.
func (p *Processor) shouldSample(rec record.Record) bool {
	if rec.Level >= record.Warn || p.sampleRate >= 1.0 {
		return true
	}
	p.rngMu.Lock()
	keep := p.rng.Float64() < p.sampleRate
	p.rngMu.Unlock()
	return keep
}

// Submit fans rec out to every route's batch manager. It returns
// ErrClosed once shutdown has begun; per-route drops are counted but do
// not themselves produce an error, matching the non-blocking submission
// guarantee the logger facade relies on.
func (p *Processor) Submit(rec record.Record) error {
	p.mu.RLock()
	closed := p.isClosed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	metrics.RecordsSubmittedTotal.WithLabelValues(rec.Level.String()).Inc()

	if !p.shouldSample(rec) {
		metrics.RecordsSampledOutTotal.WithLabelValues(rec.Level.String()).Inc()
		return nil
	}

	for _, r := range p.routes {
		result, err := r.batch.Submit(rec)
		if err != nil {
			continue // route already closed; others still receive the record
		}
		if result == batch.DroppedQueueFull {
			metrics.SinkDroppedTotal.WithLabelValues(r.name).Inc()
		}
		metrics.SinkQueueDepth.WithLabelValues(r.name).Set(float64(r.batch.Stats().QueueDepth))
	}
	return nil
}

// Flush forces every route's current partial batch out and waits for
// in-flight dispatches, bounded by ctx.
func (p *Processor) Flush(ctx context.Context) error {
	var firstErr error
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, r := range p.routes {
		wg.Add(1)
		go func(r *route) {
			defer wg.Done()
			if err := r.batch.Flush(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()
	return firstErr
}

// Close refuses further submissions, drains every route's queue into
// dispatched batches within the shutdown deadline carried by ctx, closes
// every sink, and reports how many records were still queued when the
// deadline elapsed.
func (p *Processor) Close(ctx context.Context) (droppedAtDeadline int, err error) {
	p.mu.Lock()
	if p.isClosed {
		p.mu.Unlock()
		return 0, nil
	}
	p.isClosed = true
	p.mu.Unlock()

	for _, r := range p.routes {
		r.setState(stateClosing)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, r := range p.routes {
		wg.Add(1)
		go func(r *route) {
			defer wg.Done()
			remaining := r.batch.Close(ctx)
			mu.Lock()
			droppedAtDeadline += remaining
			mu.Unlock()

			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if cerr := r.sink.Close(closeCtx); cerr != nil {
				p.logger.WithField("sink", r.name).WithError(cerr).Warn("sink close failed")
				mu.Lock()
				if err == nil {
					err = perr.Wrap(perr.ClassShutdown, r.name, "close", cerr)
				}
				mu.Unlock()
			}
			r.setState(stateClosed)
		}(r)
	}
	wg.Wait()

	if droppedAtDeadline > 0 {
		metrics.ShutdownDroppedRecords.Set(float64(droppedAtDeadline))
		fmt.Fprintf(p.fallbackOut, "logpipeline: shutdown deadline reached with %d records still queued\n", droppedAtDeadline)
	}
	return droppedAtDeadline, err
}

// emergencyFallback writes rec directly to stderr, bypassing every sink,
// when a route's dispatch fails while every route is degraded. It is
// rate-limited so a sustained outage doesn't flood stderr.
func (p *Processor) emergencyFallback(rec record.Record, err error) {
	for _, r := range p.routes {
		if r.currentState() != stateDegraded {
			return
		}
	}
	if !p.fallbackLimiter.Allow() {
		return
	}
	metrics.FallbackEmittedTotal.Inc()
	fmt.Fprintf(p.fallbackOut, "logpipeline: delivery failed, emergency fallback: level=%s message=%q error=%v\n",
		rec.Level.String(), rec.Message, err)
}

// SinkStatuses implements health.Reporter.
func (p *Processor) SinkStatuses() []health.SinkStatus {
	out := make([]health.SinkStatus, 0, len(p.routes))
	for _, r := range p.routes {
		out = append(out, r.status())
	}
	return out
}
