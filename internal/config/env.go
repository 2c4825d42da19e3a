package config

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/viper"
)

// applyEnvOverrides maps LOG_-prefixed environment variables onto cfg,
// one leaf option per variable in UPPER_SNAKE_CASE. Each variable is
// bound through its own *viper.Viper via BindEnv rather than read
// directly off os.Environ, so lookup and presence-detection go through
// the same library the rest of the tree already depends on for layered
// configuration (see ipiton-alert-history-service's
// internal/config/config.go for the AutomaticEnv/BindEnv pattern this
// follows). Values are still parsed with strconv rather than through a
// single viper.Unmarshal, since a malformed value must report the same
// {path, message} FieldError shape as a file schema violation, and
// viper's Get* accessors fail silently instead of returning an error.
func applyEnvOverrides(cfg *Config) error {
	v := viper.New()
	v.AutomaticEnv()

	var errs []FieldError

	bound := func(key, envVar string) (string, bool) {
		_ = v.BindEnv(key, envVar)
		if !v.IsSet(key) {
			return "", false
		}
		return v.GetString(key), true
	}

	str := func(path, key, envVar string, dst *string) {
		if val, ok := bound(key, envVar); ok {
			*dst = val
		}
	}
	b := func(path, key, envVar string, dst *bool) {
		val, ok := bound(key, envVar)
		if !ok {
			return
		}
		parsed, err := parseEnvBool(val)
		if err != nil {
			errs = append(errs, FieldError{Path: path, Message: err.Error()})
			return
		}
		*dst = parsed
	}
	i := func(path, key, envVar string, dst *int) {
		val, ok := bound(key, envVar)
		if !ok {
			return
		}
		parsed, err := strconv.Atoi(val)
		if err != nil {
			errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("invalid integer %q", val)})
			return
		}
		*dst = parsed
	}
	i64 := func(path, key, envVar string, dst *int64) {
		val, ok := bound(key, envVar)
		if !ok {
			return
		}
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("invalid integer %q", val)})
			return
		}
		*dst = parsed
	}
	f := func(path, key, envVar string, dst *float64) {
		val, ok := bound(key, envVar)
		if !ok {
			return
		}
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("invalid float %q", val)})
			return
		}
		*dst = parsed
	}

	str("level", "level", "LOG_LEVEL", &cfg.Level)
	str("service", "service", "LOG_SERVICE", &cfg.Service)
	str("environment", "environment", "LOG_ENVIRONMENT", &cfg.Environment)
	str("version", "version", "LOG_VERSION", &cfg.Version)
	i("shutdownTimeoutMs", "shutdown_timeout_ms", "LOG_SHUTDOWN_TIMEOUT_MS", &cfg.ShutdownTimeoutMs)
	b("enableCorrelationIds", "enable_correlation_ids", "LOG_ENABLE_CORRELATION_IDS", &cfg.EnableCorrelationIds)
	b("enableRequestTracking", "enable_request_tracking", "LOG_ENABLE_REQUEST_TRACKING", &cfg.EnableRequestTracking)

	b("console.enabled", "console.enabled", "LOG_CONSOLE_ENABLED", &cfg.Console.Enabled)
	str("console.format", "console.format", "LOG_CONSOLE_FORMAT", &cfg.Console.Format)
	b("console.colorize", "console.colorize", "LOG_CONSOLE_COLORIZE", &cfg.Console.Colorize)
	str("console.level", "console.level", "LOG_CONSOLE_LEVEL", &cfg.Console.Level)

	b("file.enabled", "file.enabled", "LOG_FILE_ENABLED", &cfg.File.Enabled)
	str("file.filename", "file.filename", "LOG_FILE_FILENAME", &cfg.File.Filename)
	i64("file.maxSize", "file.max_size", "LOG_FILE_MAX_SIZE", &cfg.File.MaxSize)
	i("file.maxFiles", "file.max_files", "LOG_FILE_MAX_FILES", &cfg.File.MaxFiles)
	b("file.rotateDaily", "file.rotate_daily", "LOG_FILE_ROTATE_DAILY", &cfg.File.RotateDaily)
	str("file.rotationInterval", "file.rotation_interval", "LOG_FILE_ROTATION_INTERVAL", &cfg.File.RotationInterval)
	b("file.compress", "file.compress", "LOG_FILE_COMPRESS", &cfg.File.Compress)
	i("file.retentionDays", "file.retention_days", "LOG_FILE_RETENTION_DAYS", &cfg.File.RetentionDays)
	str("file.level", "file.level", "LOG_FILE_LEVEL", &cfg.File.Level)

	b("otlp.enabled", "otlp.enabled", "LOG_OTLP_ENABLED", &cfg.OTLP.Enabled)
	str("otlp.endpoint", "otlp.endpoint", "LOG_OTLP_ENDPOINT", &cfg.OTLP.Endpoint)
	i("otlp.timeoutMs", "otlp.timeout_ms", "LOG_OTLP_TIMEOUT_MS", &cfg.OTLP.TimeoutMs)
	i("otlp.batchSize", "otlp.batch_size", "LOG_OTLP_BATCH_SIZE", &cfg.OTLP.BatchSize)
	i("otlp.batchTimeoutMs", "otlp.batch_timeout_ms", "LOG_OTLP_BATCH_TIMEOUT_MS", &cfg.OTLP.BatchTimeoutMs)
	i("otlp.maxConcurrency", "otlp.max_concurrency", "LOG_OTLP_MAX_CONCURRENCY", &cfg.OTLP.MaxConcurrency)
	i("otlp.circuitBreakerThreshold", "otlp.circuit_breaker_threshold", "LOG_OTLP_CIRCUIT_BREAKER_THRESHOLD", &cfg.OTLP.CircuitBreakerThreshold)
	i("otlp.circuitBreakerResetMs", "otlp.circuit_breaker_reset_ms", "LOG_OTLP_CIRCUIT_BREAKER_RESET_MS", &cfg.OTLP.CircuitBreakerResetMs)
	str("otlp.level", "otlp.level", "LOG_OTLP_LEVEL", &cfg.OTLP.Level)
	if val, ok := bound("otlp.headers", "LOG_OTLP_HEADERS"); ok {
		var headers map[string]string
		if err := json.Unmarshal([]byte(val), &headers); err != nil {
			errs = append(errs, FieldError{Path: "otlp.headers", Message: "must be a JSON object of string to string"})
		} else {
			cfg.OTLP.Headers = headers
		}
	}

	b("redis.enabled", "redis.enabled", "LOG_REDIS_ENABLED", &cfg.Redis.Enabled)
	str("redis.host", "redis.host", "LOG_REDIS_HOST", &cfg.Redis.Host)
	i("redis.port", "redis.port", "LOG_REDIS_PORT", &cfg.Redis.Port)
	str("redis.password", "redis.password", "LOG_REDIS_PASSWORD", &cfg.Redis.Password)
	i("redis.database", "redis.database", "LOG_REDIS_DATABASE", &cfg.Redis.Database)
	str("redis.keyPrefix", "redis.key_prefix", "LOG_REDIS_KEY_PREFIX", &cfg.Redis.KeyPrefix)
	str("redis.listName", "redis.list_name", "LOG_REDIS_LIST_NAME", &cfg.Redis.ListName)
	str("redis.dataStructure", "redis.data_structure", "LOG_REDIS_DATA_STRUCTURE", &cfg.Redis.DataStructure)
	i("redis.maxRetries", "redis.max_retries", "LOG_REDIS_MAX_RETRIES", &cfg.Redis.MaxRetries)
	i("redis.connectTimeoutMs", "redis.connect_timeout_ms", "LOG_REDIS_CONNECT_TIMEOUT_MS", &cfg.Redis.ConnectTimeoutMs)
	i("redis.commandTimeoutMs", "redis.command_timeout_ms", "LOG_REDIS_COMMAND_TIMEOUT_MS", &cfg.Redis.CommandTimeoutMs)
	b("redis.enableTLS", "redis.enable_tls", "LOG_REDIS_ENABLE_TLS", &cfg.Redis.EnableTLS)
	b("redis.enableCluster", "redis.enable_cluster", "LOG_REDIS_ENABLE_CLUSTER", &cfg.Redis.EnableCluster)
	str("redis.level", "redis.level", "LOG_REDIS_LEVEL", &cfg.Redis.Level)

	i("batch.maxSize", "batch.max_size", "LOG_BATCH_MAX_SIZE", &cfg.Batch.MaxSize)
	i("batch.timeoutMs", "batch.timeout_ms", "LOG_BATCH_TIMEOUT_MS", &cfg.Batch.TimeoutMs)
	i("batch.maxConcurrency", "batch.max_concurrency", "LOG_BATCH_MAX_CONCURRENCY", &cfg.Batch.MaxConcurrency)
	i("batch.maxQueueSize", "batch.max_queue_size", "LOG_BATCH_MAX_QUEUE_SIZE", &cfg.Batch.MaxQueueSize)

	i("retry.maxAttempts", "retry.max_attempts", "LOG_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	i("retry.initialDelayMs", "retry.initial_delay_ms", "LOG_RETRY_INITIAL_DELAY_MS", &cfg.Retry.InitialDelayMs)
	i("retry.maxDelayMs", "retry.max_delay_ms", "LOG_RETRY_MAX_DELAY_MS", &cfg.Retry.MaxDelayMs)
	f("retry.multiplier", "retry.multiplier", "LOG_RETRY_MULTIPLIER", &cfg.Retry.Multiplier)
	b("retry.jitter", "retry.jitter", "LOG_RETRY_JITTER", &cfg.Retry.Jitter)

	b("performance.enabled", "performance.enabled", "LOG_PERFORMANCE_ENABLED", &cfg.Performance.Enabled)
	f("performance.sampleRate", "performance.sample_rate", "LOG_PERFORMANCE_SAMPLE_RATE", &cfg.Performance.SampleRate)
	b("performance.collectCpuUsage", "performance.collect_cpu_usage", "LOG_PERFORMANCE_COLLECT_CPU_USAGE", &cfg.Performance.CollectCPUUsage)
	b("performance.collectMemoryUsage", "performance.collect_memory_usage", "LOG_PERFORMANCE_COLLECT_MEMORY_USAGE", &cfg.Performance.CollectMemUsage)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func parseEnvBool(v string) (bool, error) {
	switch v {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q (want true|false|1|0|yes|no)", v)
	}
}
