package logpipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"logpipeline/internal/config"
	"logpipeline/internal/pipeline"
	"logpipeline/internal/sinks"
	"logpipeline/pkg/circuit"
	"logpipeline/pkg/record"
)

// Build constructs every configured sink and the fan-out Processor
// behind them, then wraps it in a root Logger carrying cfg's service
// identity. diagLogger receives the pipeline's own operational
// diagnostics (batch warnings, sink errors, breaker transitions) — it is
// independent of the Logger returned, which is for application use.
func Build(cfg *config.Config, diagLogger *logrus.Logger) (*Logger, *pipeline.Processor, error) {
	proc, err := BuildProcessor(cfg, diagLogger)
	if err != nil {
		return nil, nil, err
	}

	rootCtx := record.Context{Service: cfg.Service, Environment: cfg.Environment, Version: cfg.Version}
	logger := New(proc, rootCtx, record.ParseLevel(cfg.Level))

	return logger, proc, nil
}

// BuildProcessor constructs every configured sink and the fan-out
// Processor behind them, without wrapping it in a Logger. It is used
// directly by Build, and again by the config Reloader's critical-change
// callback to rebuild a fresh Processor (closing and reinstantiating
// every affected sink) that then replaces the running Logger's
// Processor via Logger.SwapProcessor.
func BuildProcessor(cfg *config.Config, diagLogger *logrus.Logger) (*pipeline.Processor, error) {
	if diagLogger == nil {
		diagLogger = logrus.StandardLogger()
	}

	var specs []pipeline.NamedSink

	if cfg.Console.Enabled {
		specs = append(specs, pipeline.NamedSink{
			Name:  "console",
			Sink:  sinks.NewConsole(cfg.Console),
			Batch: cfg.Batch,
			Retry: cfg.Retry,
			Breaker: circuit.Config{
				FailureThreshold: 5,
				ResetMs:          60_000,
			},
		})
	}

	if cfg.File.Enabled {
		fileSink, err := sinks.NewFile(cfg.File, diagLogger)
		if err != nil {
			return nil, fmt.Errorf("build file sink: %w", err)
		}
		specs = append(specs, pipeline.NamedSink{
			Name:  "file",
			Sink:  fileSink,
			Batch: cfg.Batch,
			Retry: cfg.Retry,
			Breaker: circuit.Config{
				FailureThreshold: 5,
				ResetMs:          60_000,
			},
		})
	}

	if cfg.OTLP.Enabled {
		specs = append(specs, pipeline.NamedSink{
			Name: "otlp",
			Sink: sinks.NewOTLP(cfg.OTLP, diagLogger),
			Batch: config.BatchConfig{
				MaxSize:        cfg.OTLP.BatchSize,
				TimeoutMs:      cfg.OTLP.BatchTimeoutMs,
				MaxConcurrency: cfg.OTLP.MaxConcurrency,
				MaxQueueSize:   cfg.Batch.MaxQueueSize,
			},
			Retry: cfg.Retry,
			Breaker: circuit.Config{
				FailureThreshold: cfg.OTLP.CircuitBreakerThreshold,
				ResetMs:          cfg.OTLP.CircuitBreakerResetMs,
			},
		})
	}

	if cfg.Redis.Enabled {
		redisSink, err := sinks.NewRedis(cfg.Redis, diagLogger)
		if err != nil {
			return nil, fmt.Errorf("build redis sink: %w", err)
		}
		specs = append(specs, pipeline.NamedSink{
			Name:  "redis",
			Sink:  redisSink,
			Batch: cfg.Batch,
			Retry: cfg.Retry,
			Breaker: circuit.Config{
				FailureThreshold: 5,
				ResetMs:          60_000,
			},
		})
	}

	return pipeline.New(specs, cfg.Performance, diagLogger), nil
}
