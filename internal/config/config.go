// Package config loads the memguard host configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"memguard/internal/collector"
	"memguard/internal/engine"
	"memguard/internal/logging"
	"memguard/internal/monitor"
	"memguard/internal/recovery"
)

// Config is the full host configuration.
type Config struct {
	AgentID    string                    `yaml:"agent_id"`
	Monitor    MonitorConfig             `yaml:"monitor"`
	Thresholds engine.Thresholds         `yaml:"thresholds"`
	Collector  collector.CollectorConfig `yaml:"collector"`
	Recovery   RecoveryConfig            `yaml:"recovery"`
	Storage    StorageConfig             `yaml:"storage"`
	Graph      GraphConfig               `yaml:"graph"`
	Logging    logging.Config            `yaml:"logging"`
	Metrics    MetricsConfig             `yaml:"metrics"`
}

// MonitorConfig controls the loop and the throttle.
type MonitorConfig struct {
	Interval            time.Duration `yaml:"interval"`
	MaxSnapshots        int           `yaml:"max_snapshots"`
	MinRecoveryInterval time.Duration `yaml:"min_recovery_interval"`
	StrategyTimeout     time.Duration `yaml:"strategy_timeout"`
	RestoreOnRelief     bool          `yaml:"restore_on_relief"`
}

type RecoveryConfig struct {
	ReductionFactor float64 `yaml:"reduction_factor"`
}

// StorageConfig enables the DuckDB history store.
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"` // empty means in-memory
	Threads       int    `yaml:"threads"`
	MemoryLimitGB int    `yaml:"memory_limit_gb"`
	MaxConns      int    `yaml:"max_conns"`
}

// GraphConfig enables the Neo4j session graph.
type GraphConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "memguard"
	}
	return &Config{
		AgentID: hostname,
		Monitor: MonitorConfig{
			Interval:            monitor.DefaultInterval,
			MaxSnapshots:        monitor.DefaultMaxSnapshots,
			MinRecoveryInterval: monitor.DefaultMinRecoveryInterval,
			StrategyTimeout:     monitor.DefaultStrategyTimeout,
		},
		Thresholds: engine.DefaultThresholds(),
		Collector:  collector.DefaultCollectorConfig(),
		Recovery: RecoveryConfig{
			ReductionFactor: recovery.DefaultReductionFactor,
		},
		Storage: StorageConfig{
			Path:     "memguard.duckdb",
			MaxConns: 4,
		},
		Graph: GraphConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			ListenAddr: ":9464",
		},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	if c.AgentID == "" {
		errs = append(errs, errors.New("agent_id cannot be empty"))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor.interval must be positive"))
	}
	if c.Monitor.MaxSnapshots < 2 {
		errs = append(errs, errors.New("monitor.max_snapshots must be at least 2"))
	}
	if c.Monitor.MinRecoveryInterval < 0 {
		errs = append(errs, errors.New("monitor.min_recovery_interval must not be negative"))
	}
	if c.Monitor.StrategyTimeout < 0 {
		errs = append(errs, errors.New("monitor.strategy_timeout must not be negative"))
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Collector.Validate(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Recovery.ReductionFactor; f <= 0 || f > 1 {
		errs = append(errs, fmt.Errorf("recovery.reduction_factor must be in (0, 1], got %v", f))
	}
	if c.Storage.MaxConns < 0 {
		errs = append(errs, errors.New("storage.max_conns must not be negative"))
	}
	if c.Graph.Enabled && c.Graph.URI == "" {
		errs = append(errs, errors.New("graph.uri is required when the graph is enabled"))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addr is required when metrics are enabled"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MonitorOptions translates the monitor section into monitor options.
func (c *Config) MonitorOptions() []monitor.Option {
	return []monitor.Option{
		monitor.WithThresholds(c.Thresholds),
		monitor.WithMaxSnapshots(c.Monitor.MaxSnapshots),
		monitor.WithMinRecoveryInterval(c.Monitor.MinRecoveryInterval),
		monitor.WithStrategyTimeout(c.Monitor.StrategyTimeout),
	}
}
