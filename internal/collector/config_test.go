package collector

import (
	"testing"
	"time"
)

func TestDefaultCollectorConfig(t *testing.T) {
	cfg := DefaultCollectorConfig()

	if cfg.SampleTimeout != 2*time.Second {
		t.Errorf("Expected SampleTimeout 2s, got %v", cfg.SampleTimeout)
	}
	if cfg.PID != 0 {
		t.Errorf("Expected PID 0, got %d", cfg.PID)
	}
	if !cfg.EnableProcessMetrics {
		t.Error("Expected EnableProcessMetrics to be true by default")
	}
	if !cfg.EnableRuntimeMetrics {
		t.Error("Expected EnableRuntimeMetrics to be true by default")
	}
}

func TestCollectorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CollectorConfig
		wantErr bool
	}{
		{
			name:    "valid default config",
			cfg:     DefaultCollectorConfig(),
			wantErr: false,
		},
		{
			name:    "invalid sample timeout",
			cfg:     CollectorConfig{SampleTimeout: 0},
			wantErr: true,
		},
		{
			name:    "negative pid",
			cfg:     CollectorConfig{SampleTimeout: time.Second, PID: -5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCollectorConfig_WithMethods(t *testing.T) {
	cfg := DefaultCollectorConfig()

	newCfg := cfg.WithSampleTimeout(5 * time.Second)
	if newCfg.SampleTimeout != 5*time.Second {
		t.Errorf("WithSampleTimeout failed, got %v", newCfg.SampleTimeout)
	}
	// Original should be unchanged
	if cfg.SampleTimeout != 2*time.Second {
		t.Error("WithSampleTimeout mutated original config")
	}

	newCfg = cfg.WithPID(1234)
	if newCfg.PID != 1234 {
		t.Errorf("WithPID failed, got %d", newCfg.PID)
	}

	newCfg = cfg.WithProcessMetrics(false)
	if newCfg.EnableProcessMetrics {
		t.Error("WithProcessMetrics(false) failed")
	}

	newCfg = cfg.WithRuntimeMetrics(false)
	if newCfg.EnableRuntimeMetrics {
		t.Error("WithRuntimeMetrics(false) failed")
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "TestField",
		Message: "test message",
	}

	expected := "config error: TestField test message"
	if err.Error() != expected {
		t.Errorf("Expected error '%s', got '%s'", expected, err.Error())
	}
}
