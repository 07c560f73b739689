package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"json", func(c *Config) { c.Format = "json" }, false},
		{"bad level", func(c *Config) { c.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Format = "xml" }, true},
		{"bad output", func(c *Config) { c.Output = "syslog" }, true},
		{"none without file", func(c *Config) { c.Output = "none" }, true},
		{"none with file", func(c *Config) { c.Output = "none"; c.File = "x.log" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "memguard.log")
	cfg := DefaultConfig()
	cfg.Output = "none"
	cfg.File = path

	logger, err := New(cfg)
	require.NoError(t, err)

	logger.Info("memory pressure detected", zap.String("pressure_level", "HIGH"))
	logger.Debug("filtered out")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"memory pressure detected"`)
	assert.Contains(t, string(data), `"pressure_level":"HIGH"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "info", Format: "console", Output: "printer"})
	assert.Error(t, err)
}
