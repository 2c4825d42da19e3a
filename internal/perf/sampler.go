// Package perf periodically samples process CPU and memory usage into
// the metrics package, gated by the performance config section's
// collectCpuUsage/collectMemoryUsage flags.
package perf

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"logpipeline/internal/config"
	"logpipeline/internal/metrics"
)

const defaultInterval = 15 * time.Second

// Sampler periodically records process resource usage. A nil Sampler
// (from NewSampler on a disabled config) is safe to Start/Stop as a
// no-op, so callers don't need to branch on whether it's enabled.
type Sampler struct {
	cfg      config.PerformanceConfig
	proc     *process.Process
	logger   *logrus.Logger
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSampler builds a Sampler for the current process. It returns nil
// if cfg disables performance collection entirely.
func NewSampler(cfg config.PerformanceConfig, logger *logrus.Logger) (*Sampler, error) {
	if !cfg.Enabled || (!cfg.CollectCPUUsage && !cfg.CollectMemUsage) {
		return nil, nil
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &Sampler{cfg: cfg, proc: proc, logger: logger, interval: defaultInterval}, nil
}

// Start begins the sampling loop in the background. Calling Start on a
// nil Sampler is a no-op.
func (s *Sampler) Start() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop ends the sampling loop and waits for it to exit. A no-op on a
// nil Sampler.
func (s *Sampler) Stop() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sampler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	if s.cfg.CollectCPUUsage {
		if pct, err := s.proc.CPUPercent(); err == nil {
			metrics.ProcessCPUPercent.Set(pct)
		} else {
			s.logger.WithError(err).Debug("perf sampler: cpu percent unavailable")
		}
	}
	if s.cfg.CollectMemUsage {
		if info, err := s.proc.MemoryInfo(); err == nil && info != nil {
			metrics.ProcessMemoryRSSBytes.Set(float64(info.RSS))
		} else if err != nil {
			s.logger.WithError(err).Debug("perf sampler: memory info unavailable")
		}
	}
}
