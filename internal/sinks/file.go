package sinks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"logpipeline/internal/config"
	"logpipeline/pkg/perr"
	"logpipeline/pkg/record"
	"logpipeline/pkg/serializer"
)

// File appends serialized records to a single writer file, rotating on
// size (via lumberjack) or on a wall-clock daily/hourly boundary (via an
// explicit Rotate() call lumberjack doesn't otherwise make). The sink is
// single-writer: concurrent Send calls are serialized by mu.
type File struct {
	cfg    config.FileConfig
	ser    *serializer.Serializer
	lj     *lumberjack.Logger
	logger *logrus.Logger
	level  record.Level

	mu           sync.Mutex
	lastBoundary time.Time
	healthy      atomic.Bool
}

// NewFile builds a File sink. It returns a *perr.Error(ClassConfig) if
// the target directory cannot be created/written to, per the sink
// initialization-failure contract.
func NewFile(cfg config.FileConfig, logger *logrus.Logger) (*File, error) {
	lj := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    int(maxInt64(cfg.MaxSize/(1024*1024), 1)),
		MaxBackups: cfg.MaxFiles,
		MaxAge:     cfg.RetentionDays,
		Compress:   cfg.Compress,
	}

	// lumberjack creates the file lazily on first Write; force it now so
	// a missing/unwritable directory fails sink initialization rather
	// than the first Send call.
	if _, err := lj.Write(nil); err != nil {
		return nil, perr.Wrap(perr.ClassConfig, "file", "init", err)
	}

	f := &File{
		cfg:          cfg,
		ser:          serializer.New(serializer.Config{Format: serializer.FormatJSON}),
		lj:           lj,
		logger:       logger,
		level:        sinkLevel(cfg.Level),
		lastBoundary: currentBoundary(cfg.RotationInterval),
	}
	f.healthy.Store(true)
	return f, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (f *File) Name() string { return "file" }

func (f *File) Send(ctx context.Context, batch []record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cfg.RotateDaily || f.cfg.RotationInterval != "" {
		f.rotateIfBoundaryCrossed()
	}

	for _, rec := range filterByLevel(batch, f.level) {
		line := ensureNewline(f.ser.Serialize(rec))
		if _, err := f.lj.Write(line); err != nil {
			f.healthy.Store(false)
			return perr.Wrap(perr.ClassTransientTransport, "file", "write", err)
		}
	}
	f.healthy.Store(true)
	return nil
}

// rotateIfBoundaryCrossed forces a rotation when the wall-clock daily or
// hourly boundary configured via rotateDaily/rotationInterval has been
// crossed since the last write — a trigger lumberjack's own size-based
// rotation doesn't cover.
func (f *File) rotateIfBoundaryCrossed() {
	interval := f.cfg.RotationInterval
	if interval == "" && f.cfg.RotateDaily {
		interval = "daily"
	}
	boundary := currentBoundary(interval)
	if boundary.After(f.lastBoundary) {
		if err := f.lj.Rotate(); err != nil && f.logger != nil {
			f.logger.WithError(err).Warn("file sink boundary rotation failed")
		}
		f.lastBoundary = boundary
	}
}

func currentBoundary(interval string) time.Time {
	now := time.Now().UTC()
	switch interval {
	case "hourly":
		return now.Truncate(time.Hour)
	case "daily", "":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func (f *File) Flush(ctx context.Context) error { return nil }

func (f *File) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lj.Close()
}

func (f *File) IsHealthy() bool { return f.healthy.Load() }
