package sinks

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"logpipeline/internal/config"
	"logpipeline/pkg/record"
)

func TestConsole_InfoGoesToStdoutErrorGoesToStderr(t *testing.T) {
	c := NewConsole(config.ConsoleConfig{Enabled: true, Format: "json"})
	var out, errBuf bytes.Buffer
	c.out, c.err = &out, &errBuf

	batch := []record.Record{
		{Level: record.Info, Message: "info line", Timestamp: time.Now()},
		{Level: record.Error, Message: "error line", Timestamp: time.Now()},
	}
	require.NoError(t, c.Send(context.Background(), batch))

	require.Contains(t, out.String(), "info line")
	require.NotContains(t, out.String(), "error line")
	require.Contains(t, errBuf.String(), "error line")
}

func TestConsole_PrettyFormatColorizes(t *testing.T) {
	c := NewConsole(config.ConsoleConfig{Enabled: true, Format: "pretty", Colorize: true})
	var out bytes.Buffer
	c.out = &out

	batch := []record.Record{{Level: record.Warn, Message: "careful", Timestamp: time.Now()}}
	require.NoError(t, c.Send(context.Background(), batch))
	require.Contains(t, out.String(), "careful")
}

func TestConsole_AlwaysHealthy(t *testing.T) {
	c := NewConsole(config.ConsoleConfig{Enabled: true})
	require.True(t, c.IsHealthy())
	require.NoError(t, c.Flush(context.Background()))
	require.NoError(t, c.Close(context.Background()))
}
