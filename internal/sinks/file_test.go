package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"logpipeline/internal/config"
	"logpipeline/pkg/record"
)

func TestFile_WritesRecordsToDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.log")

	f, err := NewFile(config.FileConfig{Enabled: true, Filename: path, MaxSize: 10, MaxFiles: 1}, nil)
	require.NoError(t, err)
	defer f.Close(context.Background())

	batch := []record.Record{
		{Level: record.Info, Message: "written to disk", Timestamp: time.Now()},
	}
	require.NoError(t, f.Send(context.Background(), batch))
	require.True(t, f.IsHealthy())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "written to disk")
}

func TestFile_InitFailsOnUnwritableDirectory(t *testing.T) {
	_, err := NewFile(config.FileConfig{Enabled: true, Filename: "/nonexistent-root-dir/pipeline.log"}, nil)
	require.Error(t, err)
}

func TestFile_BoundaryRotationAdvancesLastBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotating.log")

	f, err := NewFile(config.FileConfig{Enabled: true, Filename: path, RotateDaily: true}, nil)
	require.NoError(t, err)
	defer f.Close(context.Background())

	f.lastBoundary = f.lastBoundary.Add(-48 * time.Hour)
	before := f.lastBoundary
	require.NoError(t, f.Send(context.Background(), []record.Record{{Message: "after rotation"}}))
	require.True(t, f.lastBoundary.After(before))
}
