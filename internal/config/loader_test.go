package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "logging.config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsAppliedWhenFieldsOmitted(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 30000, cfg.ShutdownTimeoutMs)
	assert.Equal(t, 100, cfg.Batch.MaxSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod","level":"debug","batch":{"maxSize":50}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, 50, cfg.Batch.MaxSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod","level":"debug"}`)

	t.Setenv("LOG_LEVEL", "error")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Level)
}

func TestLoad_CodeOverrideHighestPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod","level":"debug"}`)

	t.Setenv("LOG_LEVEL", "error")
	cfg, err := Load(path, func(c *Config) { c.Level = "warn" })
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Level)
}

func TestLoad_MissingRequiredFieldsFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{}`)

	_, err := Load(path)
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	var paths []string
	for _, fe := range verr.Errors {
		paths = append(paths, fe.Path)
	}
	assert.Contains(t, paths, "service")
	assert.Contains(t, paths, "environment")
}

func TestLoad_InvalidJSONFailsWithPathMessage(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{not-json`)

	_, err := Load(path)
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, path, verr.Errors[0].Path)
}

func TestLoad_RequiredIfFieldsEnforced(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod","otlp":{"enabled":true}}`)

	_, err := Load(path)
	require.Error(t, err)
	verr := err.(*ValidationError)
	found := false
	for _, fe := range verr.Errors {
		if fe.Path == "otlp.endpoint" {
			found = true
		}
	}
	assert.True(t, found, "otlp.endpoint must be required when otlp.enabled is true")
}

func TestLoad_EnvBooleanParsing(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod"}`)

	for _, v := range []string{"true", "1", "yes"} {
		t.Setenv("LOG_CONSOLE_COLORIZE", v)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.Console.Colorize, "value %q should parse true", v)
	}

	t.Setenv("LOG_CONSOLE_COLORIZE", "not-a-bool")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOTLPHeadersJSONBlob(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"service":"billing","environment":"prod"}`)

	t.Setenv("LOG_OTLP_HEADERS", `{"x-api-key":"abc"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.OTLP.Headers["x-api-key"])
}

func TestLoad_NoConfigFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("LOG_SERVICE", "billing")
	t.Setenv("LOG_ENVIRONMENT", "prod")

	dir := t.TempDir()
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "billing", cfg.Service)
}
