package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloader_SwapsOnValidChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod","level":"info"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	r := NewReloader(path, cfg, logger)
	r.debounce = 20 * time.Millisecond

	reloaded := make(chan *Config, 1)
	r.OnReload(func(c *Config) { reloaded <- c })

	require.NoError(t, r.Start())
	defer r.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"service":"billing","environment":"prod","level":"debug"}`), 0o644))

	select {
	case c := <-reloaded:
		assert.Equal(t, "debug", c.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	assert.Equal(t, "debug", r.Current().Level)
}

func TestReloader_RetainsPreviousConfigOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	r := NewReloader(path, cfg, logger)
	r.debounce = 20 * time.Millisecond

	errs := make(chan error, 1)
	r.OnReloadError(func(e error) { errs <- e })

	require.NoError(t, r.Start())
	defer r.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"environment":"prod"}`), 0o644))

	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload-error")
	}
	assert.Equal(t, "billing", r.Current().Service, "previous config retained on failed reload")
}

func TestReloader_CriticalChangeFiresOnEndpointChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod","otlp":{"enabled":true,"endpoint":"http://a.example.com"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	r := NewReloader(path, cfg, logger)
	r.debounce = 20 * time.Millisecond

	critical := make(chan struct{}, 1)
	r.OnCriticalChange(func(old, new *Config) { critical <- struct{}{} })

	require.NoError(t, r.Start())
	defer r.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"service":"billing","environment":"prod","otlp":{"enabled":true,"endpoint":"http://b.example.com"}}`), 0o644))

	select {
	case <-critical:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for critical-changes event")
	}
}

func TestReloader_NoOpWithoutPath(t *testing.T) {
	cfg := &Config{Service: "billing", Environment: "prod"}
	r := NewReloader("", cfg, nil)
	assert.NoError(t, r.Start())
	r.Stop()
	assert.Equal(t, cfg, r.Current())
}

func TestReloader_AbsPathResolved(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod"}`)
	rel, err := filepath.Rel(".", path)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	r := NewReloader(rel, cfg, nil)
	require.NoError(t, r.Start())
	r.Stop()
}
