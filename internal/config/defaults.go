package config

// Defaults returns the built-in baseline document that a loaded file,
// then environment variables, then code overrides are layered onto.
func Defaults() Config {
	return Config{
		Level:                 "info",
		ShutdownTimeoutMs:     30000,
		EnableCorrelationIds:  true,
		EnableRequestTracking: true,
		Console: ConsoleConfig{
			Enabled: true,
			Format:  "json",
		},
		File: FileConfig{
			MaxSize:       10 * 1024 * 1024,
			MaxFiles:      5,
			RetentionDays: 30,
		},
		OTLP: OTLPConfig{
			TimeoutMs:               5000,
			BatchSize:               100,
			BatchTimeoutMs:          5000,
			MaxConcurrency:          10,
			CircuitBreakerThreshold: 5,
			CircuitBreakerResetMs:   60000,
		},
		Redis: RedisConfig{
			DataStructure: "list",
		},
		Batch: BatchConfig{
			MaxSize:        100,
			TimeoutMs:      5000,
			MaxConcurrency: 10,
			MaxQueueSize:   10000,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			MaxDelayMs:     30000,
			Multiplier:     2,
			Jitter:         true,
		},
	}
}

// applyDefaults fills zero-valued leaf fields of cfg from Defaults(),
// treating cfg as the higher-precedence layer. Unlike the teacher's
// monolithic applyDefaults, this never touches a field the caller set.
func applyDefaults(cfg *Config) {
	d := Defaults()

	if cfg.Level == "" {
		cfg.Level = d.Level
	}
	if cfg.ShutdownTimeoutMs == 0 {
		cfg.ShutdownTimeoutMs = d.ShutdownTimeoutMs
	}

	if cfg.Console.Format == "" {
		cfg.Console.Format = d.Console.Format
	}

	if cfg.File.MaxSize == 0 {
		cfg.File.MaxSize = d.File.MaxSize
	}
	if cfg.File.MaxFiles == 0 {
		cfg.File.MaxFiles = d.File.MaxFiles
	}
	if cfg.File.RetentionDays == 0 {
		cfg.File.RetentionDays = d.File.RetentionDays
	}

	if cfg.OTLP.TimeoutMs == 0 {
		cfg.OTLP.TimeoutMs = d.OTLP.TimeoutMs
	}
	if cfg.OTLP.BatchSize == 0 {
		cfg.OTLP.BatchSize = d.OTLP.BatchSize
	}
	if cfg.OTLP.BatchTimeoutMs == 0 {
		cfg.OTLP.BatchTimeoutMs = d.OTLP.BatchTimeoutMs
	}
	if cfg.OTLP.MaxConcurrency == 0 {
		cfg.OTLP.MaxConcurrency = d.OTLP.MaxConcurrency
	}
	if cfg.OTLP.CircuitBreakerThreshold == 0 {
		cfg.OTLP.CircuitBreakerThreshold = d.OTLP.CircuitBreakerThreshold
	}
	if cfg.OTLP.CircuitBreakerResetMs == 0 {
		cfg.OTLP.CircuitBreakerResetMs = d.OTLP.CircuitBreakerResetMs
	}

	if cfg.Redis.DataStructure == "" {
		cfg.Redis.DataStructure = d.Redis.DataStructure
	}

	if cfg.Batch.MaxSize == 0 {
		cfg.Batch.MaxSize = d.Batch.MaxSize
	}
	if cfg.Batch.TimeoutMs == 0 {
		cfg.Batch.TimeoutMs = d.Batch.TimeoutMs
	}
	if cfg.Batch.MaxConcurrency == 0 {
		cfg.Batch.MaxConcurrency = d.Batch.MaxConcurrency
	}
	if cfg.Batch.MaxQueueSize == 0 {
		cfg.Batch.MaxQueueSize = d.Batch.MaxQueueSize
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelayMs == 0 {
		cfg.Retry.InitialDelayMs = d.Retry.InitialDelayMs
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = d.Retry.MaxDelayMs
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = d.Retry.Multiplier
	}
}
