package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"logpipeline/internal/health"
	"logpipeline/internal/metrics"
	"logpipeline/internal/sinks"
	"logpipeline/pkg/batch"
	"logpipeline/pkg/circuit"
	"logpipeline/pkg/record"
	"logpipeline/pkg/retry"
)

// sinkState is one position in a route's lifecycle: a route starts
// initializing, becomes ready as soon as newRoute has built it, moves to
// degraded whenever the breaker trips or a batch dispatch fails,
// and recovers to ready on the next successful dispatch. closing/closed
// only happen once, during shutdown.
type sinkState int32

const (
	stateInitializing sinkState = iota
	stateReady
	stateDegraded
	stateClosing
	stateClosed
)

func (s sinkState) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateDegraded:
		return "degraded"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "initializing"
	}
}

// route owns everything needed to deliver records to one configured
// sink: its batch manager, retry manager, circuit breaker, and current
// lifecycle state.
type route struct {
	name    string
	sink    sinks.Sink
	batch   *batch.Manager
	retry   *retry.Manager
	breaker *circuit.Breaker
	state   atomic.Int32

	onFallback func(rec record.Record, err error)
}

func newRoute(name string, sink sinks.Sink, batchCfg batch.Config, retryCfg retry.Config, breakerCfg circuit.Config, logger *logrus.Logger) *route {
	r := &route{name: name, sink: sink}
	r.state.Store(int32(stateInitializing))

	breakerCfg.Name = name
	r.breaker = circuit.New(breakerCfg, logger)
	r.breaker.OnStateChange(func(from, to circuit.State) {
		metrics.CircuitBreakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
		metrics.SetCircuitBreakerState(name, int(to))
		if to == circuit.Open {
			r.setState(stateDegraded)
		}
	})

	r.retry = retry.New(retryCfg, retry.DefaultClassifier, r.breaker)

	r.batch = batch.New(name, batchCfg, r.dispatch, logger)

	metrics.SetSinkStateGauge(name, stateInitializing.String())
	r.setState(stateReady)
	return r
}

func (r *route) setState(s sinkState) {
	r.state.Store(int32(s))
	metrics.SetSinkStateGauge(r.name, s.String())
}

func (r *route) currentState() sinkState {
	return sinkState(r.state.Load())
}

// dispatch is the batch manager's DispatchFunc: it runs the sink's Send
// through the retry manager (which itself consults the breaker before
// every attempt), and records timing/outcome metrics.
func (r *route) dispatch(ctx context.Context, records []record.Record) error {
	start := time.Now()
	err := r.retry.Execute(ctx, func(ctx context.Context) error {
		metrics.RetryAttemptsTotal.WithLabelValues(r.name).Inc()
		return r.sink.Send(ctx, records)
	})
	metrics.BatchDispatchDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SinkDispatchErrorsTotal.WithLabelValues(r.name).Inc()
		metrics.SinkHealthy.WithLabelValues(r.name).Set(0)
		r.setState(stateDegraded)
		if r.onFallback != nil && len(records) > 0 {
			r.onFallback(records[len(records)-1], err)
		}
		return err
	}

	metrics.SinkDispatchedTotal.WithLabelValues(r.name).Inc()
	metrics.SinkHealthy.WithLabelValues(r.name).Set(1)
	if r.currentState() == stateDegraded {
		r.setState(stateReady)
	}
	return nil
}

func (r *route) status() health.SinkStatus {
	return health.SinkStatus{
		Name:         r.name,
		Healthy:      r.sink.IsHealthy() && r.breaker.State() != circuit.Open,
		CircuitState: r.breaker.State().String(),
	}
}
