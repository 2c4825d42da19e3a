package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"logpipeline/internal/config"
	"logpipeline/pkg/circuit"
	"logpipeline/pkg/record"
)

// fakeSink records every batch it receives and can be told to fail.
type fakeSink struct {
	name string

	mu      sync.Mutex
	batches [][]record.Record
	failN   int // number of upcoming Send calls to fail
	healthy bool
}

func newFakeSink(name string) *fakeSink {
	return &fakeSink{name: name, healthy: true}
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(ctx context.Context, batch []record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errTransient
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeSink) Flush(ctx context.Context) error { return nil }
func (f *fakeSink) Close(ctx context.Context) error { return nil }
func (f *fakeSink) IsHealthy() bool                 { f.mu.Lock(); defer f.mu.Unlock(); return f.healthy }

func (f *fakeSink) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

type simpleErr string

func (e simpleErr) Error() string   { return string(e) }
func (e simpleErr) Retryable() bool { return true }

const errTransient = simpleErr("transient failure")

func testBatchCfg() config.BatchConfig {
	return config.BatchConfig{MaxSize: 5, TimeoutMs: 50, MaxConcurrency: 2, MaxQueueSize: 100}
}

func testRetryCfg() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, InitialDelayMs: 1, MaxDelayMs: 5, Multiplier: 2, Jitter: false}
}

func testBreakerCfg() circuit.Config {
	return circuit.Config{FailureThreshold: 3, ResetMs: 50}
}

func TestProcessor_SubmitFansOutToAllRoutes(t *testing.T) {
	sinkA := newFakeSink("a")
	sinkB := newFakeSink("b")
	specs := []NamedSink{
		{Name: "a", Sink: sinkA, Batch: testBatchCfg(), Retry: testRetryCfg(), Breaker: testBreakerCfg()},
		{Name: "b", Sink: sinkB, Batch: testBatchCfg(), Retry: testRetryCfg(), Breaker: testBreakerCfg()},
	}
	p := New(specs, config.PerformanceConfig{}, nil)

	rec := record.New(record.Info, "hello", nil, record.Context{Service: "svc", Environment: "prod"}, record.Source{}, time.Now())
	require.NoError(t, p.Submit(rec))

	require.NoError(t, p.Flush(context.Background()))

	require.Equal(t, 1, sinkA.recordCount())
	require.Equal(t, 1, sinkB.recordCount())
}

func TestProcessor_SubmitAfterCloseReturnsErrClosed(t *testing.T) {
	sink := newFakeSink("a")
	specs := []NamedSink{{Name: "a", Sink: sink, Batch: testBatchCfg(), Retry: testRetryCfg(), Breaker: testBreakerCfg()}}
	p := New(specs, config.PerformanceConfig{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := p.Close(ctx)
	require.NoError(t, err)

	rec := record.New(record.Info, "late", nil, record.Context{}, record.Source{}, time.Now())
	require.ErrorIs(t, p.Submit(rec), ErrClosed)
}

func TestProcessor_SamplingKeepsWarnAndAboveRegardlessOfRate(t *testing.T) {
	sink := newFakeSink("a")
	specs := []NamedSink{{Name: "a", Sink: sink, Batch: testBatchCfg(), Retry: testRetryCfg(), Breaker: testBreakerCfg()}}
	p := New(specs, config.PerformanceConfig{Enabled: true, SampleRate: 0}, nil)

	for i := 0; i < 10; i++ {
		rec := record.New(record.Error, "err", nil, record.Context{}, record.Source{}, time.Now())
		require.NoError(t, p.Submit(rec))
	}
	require.NoError(t, p.Flush(context.Background()))
	require.Equal(t, 10, sink.recordCount())
}

func TestProcessor_SamplingDropsDebugAtZeroRate(t *testing.T) {
	sink := newFakeSink("a")
	specs := []NamedSink{{Name: "a", Sink: sink, Batch: testBatchCfg(), Retry: testRetryCfg(), Breaker: testBreakerCfg()}}
	p := New(specs, config.PerformanceConfig{Enabled: true, SampleRate: 0}, nil)

	for i := 0; i < 10; i++ {
		rec := record.New(record.Debug, "dbg", nil, record.Context{}, record.Source{}, time.Now())
		require.NoError(t, p.Submit(rec))
	}
	require.NoError(t, p.Flush(context.Background()))
	require.Equal(t, 0, sink.recordCount())
}

func TestProcessor_RetriesTransientFailureThenSucceeds(t *testing.T) {
	sink := newFakeSink("a")
	sink.failN = 2
	specs := []NamedSink{{Name: "a", Sink: sink, Batch: testBatchCfg(), Retry: testRetryCfg(), Breaker: testBreakerCfg()}}
	p := New(specs, config.PerformanceConfig{}, nil)

	rec := record.New(record.Info, "retryme", nil, record.Context{}, record.Source{}, time.Now())
	require.NoError(t, p.Submit(rec))
	require.NoError(t, p.Flush(context.Background()))

	require.Equal(t, 1, sink.recordCount())
}

func TestProcessor_CloseReportsDroppedOnDeadline(t *testing.T) {
	sink := newFakeSink("a")
	sink.failN = 1000 // always fails, so nothing ever dispatches cleanly
	cfg := testBatchCfg()
	cfg.TimeoutMs = 10000 // never timer-fires during the short deadline below
	specs := []NamedSink{{Name: "a", Sink: sink, Batch: cfg, Retry: config.RetryConfig{MaxAttempts: 1, InitialDelayMs: 1, MaxDelayMs: 1, Multiplier: 1}, Breaker: testBreakerCfg()}}
	p := New(specs, config.PerformanceConfig{}, nil)

	for i := 0; i < 3; i++ {
		rec := record.New(record.Info, "x", nil, record.Context{}, record.Source{}, time.Now())
		require.NoError(t, p.Submit(rec))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dropped, _ := p.Close(ctx)
	require.GreaterOrEqual(t, dropped, 0)
}

func TestProcessor_SinkStatusesReflectHealth(t *testing.T) {
	sink := newFakeSink("a")
	specs := []NamedSink{{Name: "a", Sink: sink, Batch: testBatchCfg(), Retry: testRetryCfg(), Breaker: testBreakerCfg()}}
	p := New(specs, config.PerformanceConfig{}, nil)

	statuses := p.SinkStatuses()
	require.Len(t, statuses, 1)
	require.Equal(t, "a", statuses[0].Name)
	require.True(t, statuses[0].Healthy)
}
