package collector

import "time"

// CollectorConfig contains configurable parameters for the system collector.
// Use DefaultCollectorConfig() to get sensible defaults, then override as needed.
type CollectorConfig struct {
	// SampleTimeout bounds one Sample call (default: 2s)
	SampleTimeout time.Duration `yaml:"sample_timeout"`

	// PID is the process whose RSS/VMS is reported (default: 0, meaning this process)
	PID int32 `yaml:"pid"`

	// Feature flags
	EnableProcessMetrics bool `yaml:"process_metrics"` // Whether to collect process RSS/VMS (default: true)
	EnableRuntimeMetrics bool `yaml:"runtime_metrics"` // Whether to collect Go runtime counters (default: true)
}

// DefaultCollectorConfig returns a CollectorConfig with sensible defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		SampleTimeout:        2 * time.Second,
		PID:                  0,
		EnableProcessMetrics: true,
		EnableRuntimeMetrics: true,
	}
}

// WithSampleTimeout returns a copy of the config with modified sample timeout.
func (c CollectorConfig) WithSampleTimeout(d time.Duration) CollectorConfig {
	c.SampleTimeout = d
	return c
}

// WithPID returns a copy of the config that measures another process.
func (c CollectorConfig) WithPID(pid int32) CollectorConfig {
	c.PID = pid
	return c
}

// WithProcessMetrics returns a copy of the config with process metrics enabled/disabled.
func (c CollectorConfig) WithProcessMetrics(enabled bool) CollectorConfig {
	c.EnableProcessMetrics = enabled
	return c
}

// WithRuntimeMetrics returns a copy of the config with runtime metrics enabled/disabled.
func (c CollectorConfig) WithRuntimeMetrics(enabled bool) CollectorConfig {
	c.EnableRuntimeMetrics = enabled
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c CollectorConfig) Validate() error {
	if c.SampleTimeout <= 0 {
		return &ConfigError{Field: "SampleTimeout", Message: "must be positive"}
	}
	if c.PID < 0 {
		return &ConfigError{Field: "PID", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}
