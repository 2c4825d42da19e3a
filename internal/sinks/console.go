package sinks

import (
	"context"
	"io"
	"os"
	"sync"

	"logpipeline/internal/config"
	"logpipeline/pkg/record"
	"logpipeline/pkg/serializer"
)

// Console writes serialized records to stdout (level <= warn) or stderr
// (level >= error). Writes are synchronous and best-effort; Flush is a
// no-op since os.Stdout/os.Stderr have no internal buffer to drain.
type Console struct {
	ser   *serializer.Serializer
	out   io.Writer
	err   io.Writer
	level record.Level
	mu    sync.Mutex
}

// NewConsole builds a Console sink from cfg. out/err default to
// os.Stdout/os.Stderr; tests may inject buffers.
func NewConsole(cfg config.ConsoleConfig) *Console {
	format := serializer.FormatJSON
	if cfg.Format == "pretty" {
		format = serializer.FormatPretty
	}
	return &Console{
		ser:   serializer.New(serializer.Config{Format: format, Colorize: cfg.Colorize}),
		out:   os.Stdout,
		err:   os.Stderr,
		level: sinkLevel(cfg.Level),
	}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Send(ctx context.Context, batch []record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range filterByLevel(batch, c.level) {
		line := ensureNewline(c.ser.Serialize(rec))
		w := c.out
		if rec.Level >= record.Error {
			w = c.err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) Flush(ctx context.Context) error { return nil }
func (c *Console) Close(ctx context.Context) error { return nil }
func (c *Console) IsHealthy() bool                 { return true }
