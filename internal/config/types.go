// Package config loads, validates, and hot-reloads the pipeline's
// configuration: built-in defaults, an optional JSON file, environment
// variables, and code-supplied overrides, in that precedence order.
package config

// Config is the root configuration document, matching the schema
// described for each component's recognized options.
type Config struct {
	Level                 string `json:"level" validate:"omitempty,oneof=debug info warn error fatal"`
	Service                string `json:"service" validate:"required"`
	Environment            string `json:"environment" validate:"required"`
	Version                string `json:"version"`
	ShutdownTimeoutMs      int    `json:"shutdownTimeoutMs" validate:"gte=0"`
	EnableCorrelationIds   bool   `json:"enableCorrelationIds"`
	EnableRequestTracking  bool   `json:"enableRequestTracking"`

	Console     ConsoleConfig     `json:"console"`
	File        FileConfig        `json:"file"`
	OTLP        OTLPConfig        `json:"otlp"`
	Redis       RedisConfig       `json:"redis"`
	Batch       BatchConfig       `json:"batch"`
	Retry       RetryConfig       `json:"retry"`
	Performance PerformanceConfig `json:"performance"`
}

type ConsoleConfig struct {
	Enabled  bool   `json:"enabled"`
	Format   string `json:"format" validate:"omitempty,oneof=json pretty"`
	Colorize bool   `json:"colorize"`
	Level    string `json:"level" validate:"omitempty,oneof=debug info warn error fatal"`
}

type FileConfig struct {
	Enabled          bool   `json:"enabled"`
	Filename         string `json:"filename" validate:"required_if=Enabled true"`
	MaxSize          int64  `json:"maxSize" validate:"gte=0"`
	MaxFiles         int    `json:"maxFiles" validate:"gte=0"`
	RotateDaily      bool   `json:"rotateDaily"`
	RotationInterval string `json:"rotationInterval" validate:"omitempty,oneof=daily hourly"`
	Compress         bool   `json:"compress"`
	RetentionDays    int    `json:"retentionDays" validate:"gte=0"`
	Level            string `json:"level" validate:"omitempty,oneof=debug info warn error fatal"`
}

type OTLPConfig struct {
	Enabled                 bool              `json:"enabled"`
	Endpoint                string            `json:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	Headers                 map[string]string `json:"headers"`
	TimeoutMs               int               `json:"timeoutMs" validate:"gte=0"`
	BatchSize               int               `json:"batchSize" validate:"gte=1"`
	BatchTimeoutMs          int               `json:"batchTimeoutMs" validate:"gte=0"`
	MaxConcurrency          int               `json:"maxConcurrency" validate:"gte=1"`
	CircuitBreakerThreshold int               `json:"circuitBreakerThreshold" validate:"gte=1"`
	CircuitBreakerResetMs   int               `json:"circuitBreakerResetMs" validate:"gte=0"`
	Level                   string            `json:"level" validate:"omitempty,oneof=debug info warn error fatal"`
}

type RedisConfig struct {
	Enabled          bool   `json:"enabled"`
	Host             string `json:"host" validate:"required_if=Enabled true"`
	Port             int    `json:"port" validate:"omitempty,gte=1,lte=65535"`
	Password         string `json:"password"`
	Database         int    `json:"database" validate:"gte=0"`
	KeyPrefix        string `json:"keyPrefix"`
	ListName         string `json:"listName" validate:"required_if=Enabled true"`
	DataStructure    string `json:"dataStructure" validate:"omitempty,oneof=list stream pubsub"`
	MaxRetries       int    `json:"maxRetries" validate:"gte=0"`
	ConnectTimeoutMs int    `json:"connectTimeoutMs" validate:"gte=0"`
	CommandTimeoutMs int    `json:"commandTimeoutMs" validate:"gte=0"`
	EnableTLS        bool   `json:"enableTLS"`
	EnableCluster    bool   `json:"enableCluster"`
	Level            string `json:"level" validate:"omitempty,oneof=debug info warn error fatal"`
}

type BatchConfig struct {
	MaxSize        int `json:"maxSize" validate:"gte=1"`
	TimeoutMs      int `json:"timeoutMs" validate:"gte=0"`
	MaxConcurrency int `json:"maxConcurrency" validate:"gte=1"`
	MaxQueueSize   int `json:"maxQueueSize" validate:"gte=1"`
}

type RetryConfig struct {
	MaxAttempts    int     `json:"maxAttempts" validate:"gte=1"`
	InitialDelayMs int     `json:"initialDelayMs" validate:"gte=0"`
	MaxDelayMs     int     `json:"maxDelayMs" validate:"gte=0"`
	Multiplier     float64 `json:"multiplier" validate:"gte=1"`
	Jitter         bool    `json:"jitter"`
}

type PerformanceConfig struct {
	Enabled           bool    `json:"enabled"`
	SampleRate        float64 `json:"sampleRate" validate:"gte=0,lte=1"`
	CollectCPUUsage   bool    `json:"collectCpuUsage"`
	CollectMemUsage   bool    `json:"collectMemoryUsage"`
}

// FieldError is a single schema or parse violation, identified by its
// dotted field path so callers can report {path, message} tuples.
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string { return e.Path + ": " + e.Message }

// ValidationError aggregates every FieldError found for one document.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "config validation failed"
	}
	msg := e.Errors[0].Error()
	for _, fe := range e.Errors[1:] {
		msg += "; " + fe.Error()
	}
	return msg
}
