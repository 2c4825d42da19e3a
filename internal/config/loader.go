package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// defaultConfigNames are searched, in order, in the working directory
// when no explicit path is given to Load.
var defaultConfigNames = []string{"logging.config.json", "logging.config.json.local"}

// Option is a code-supplied override applied after file and env layers,
// the highest-precedence layer per the load order.
type Option func(*Config)

// Load builds a Config from built-in defaults, an optional JSON file
// (explicit path, or the first of defaultConfigNames found in the
// working directory), environment variables, then opts, in that
// precedence order. The result is schema-validated before being
// returned; a file parse error, an env parse error, and a schema
// violation all fail the load immediately.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := Defaults()

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		if err := loadFile(resolved, &cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", &ValidationError{Errors: []FieldError{{Path: path, Message: "config file not found"}}}
		}
		return path, nil
	}
	for _, name := range defaultConfigNames {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Path: path, Message: fmt.Sprintf("failed to read config file: %v", err)}}}
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return &ValidationError{Errors: []FieldError{{Path: path, Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}
	return nil
}
